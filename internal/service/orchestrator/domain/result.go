// internal/service/orchestrator/domain/result.go
package domain

// Outcome 区分一次远程调用的三种结果
type Outcome uint8

const (
	OutcomeOK Outcome = iota + 1
	OutcomeRejected
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// CallResult 是每次下游调用的带标签结果。
// 状态机只关心 Succeeded()，日志、指标和 Saga 日志保留完整区分。
type CallResult struct {
	Outcome Outcome
	Reason  string
	Err     error

	// Reference 是下游返回的业务凭证，例如支付流水号
	Reference string
}

func Ok() CallResult {
	return CallResult{Outcome: OutcomeOK}
}

func Rejected(reason string) CallResult {
	return CallResult{Outcome: OutcomeRejected, Reason: reason}
}

func TransportFailure(err error) CallResult {
	r := CallResult{Outcome: OutcomeTransportError, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

func (r CallResult) Succeeded() bool {
	return r.Outcome == OutcomeOK
}

// LineOutcome 是一次扇出中单个订单行的结果，仅存在于内存
type LineOutcome struct {
	ProductID int64
	Quantity  int
	Result    CallResult
}

// AllSucceeded 对扇出结果做 AND 聚合
func AllSucceeded(outcomes []LineOutcome) bool {
	for _, o := range outcomes {
		if !o.Result.Succeeded() {
			return false
		}
	}
	return true
}

// Failed 返回所有失败的订单行
func Failed(outcomes []LineOutcome) []LineOutcome {
	var failed []LineOutcome
	for _, o := range outcomes {
		if !o.Result.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// ChargeRequest 是支付扣款的输入
type ChargeRequest struct {
	OrderID    int64
	CustomerID int64
	Amount     float64
	Mode       string
}

// CompensationAlert 描述一次补偿中释放失败的订单行，供人工对账
type CompensationAlert struct {
	SagaID      string
	OrderID     int64
	FailedLines []LineOutcome
}
