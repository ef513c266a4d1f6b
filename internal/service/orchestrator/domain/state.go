// internal/service/orchestrator/domain/state.go
package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// SagaState 定义了一次 Saga 实例的生命周期状态
type SagaState uint8

const (
	StateReceived      SagaState = iota + 1 // 收到 ORDER_CREATED，唯一的初始状态
	StateCheckingStock                      // 并发检查每个订单行的库存
	StateFailedNoStock                      // 终态：至少一行库存不足或检查出错
	StateReserving                          // 并发扣减每个订单行的库存
	StateFailedReserve                      // 终态：至少一行扣减失败，不做补偿
	StateCharging                           // 调用支付服务
	StateCompensating                       // 支付被拒或出错，回补所有订单行
	StateApproved                           // 终态：支付成功
	StateRejected                           // 终态：补偿后拒绝
)

var stateNames = map[SagaState]string{
	StateReceived:      "RECEIVED",
	StateCheckingStock: "CHECKING_STOCK",
	StateFailedNoStock: "FAILED_NO_STOCK",
	StateReserving:     "RESERVING",
	StateFailedReserve: "FAILED_RESERVE",
	StateCharging:      "CHARGING",
	StateCompensating:  "COMPENSATING",
	StateApproved:      "APPROVED",
	StateRejected:      "REJECTED",
}

var allowedTransitions = map[SagaState][]SagaState{
	StateReceived:      {StateCheckingStock},
	StateCheckingStock: {StateFailedNoStock, StateReserving},
	StateReserving:     {StateFailedReserve, StateCharging},
	StateCharging:      {StateApproved, StateCompensating},
	StateCompensating:  {StateRejected},
}

var ErrInvalidTransition = errors.New("invalid saga state transition")

func (s SagaState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SagaState(%d)", uint8(s))
}

// ParseSagaState 用于从持久化的日志中恢复状态值，空字符串对应"无前驱状态"
func ParseSagaState(name string) (SagaState, error) {
	if name == "" {
		return 0, nil
	}
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown saga state %q", name)
}

func (s SagaState) MarshalText() ([]byte, error) {
	if s == 0 {
		return []byte{}, nil
	}
	name, ok := stateNames[s]
	if !ok {
		return nil, errors.Errorf("unknown saga state %d", uint8(s))
	}
	return []byte(name), nil
}

func (s *SagaState) UnmarshalText(text []byte) error {
	st, err := ParseSagaState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s SagaState) CanTransitionTo(next SagaState) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s SagaState) IsTerminal() bool {
	switch s {
	case StateFailedNoStock, StateFailedReserve, StateApproved, StateRejected:
		return true
	default:
		return false
	}
}

// OutcomeStatus 返回终态对应的结果事件。非终态返回 false。
func (s SagaState) OutcomeStatus() (Status, bool) {
	switch s {
	case StateFailedNoStock, StateFailedReserve:
		return StatusProductDeductFailed, true
	case StateApproved:
		return StatusPaymentApproved, true
	case StateRejected:
		return StatusPaymentRejected, true
	case StateReceived, StateCheckingStock, StateReserving, StateCharging, StateCompensating:
		return statusInvalid, false
	default:
		return statusInvalid, false
	}
}

// Transition 记录一次状态流转
type Transition struct {
	SagaID     string
	OrderID    int64
	From       SagaState
	To         SagaState
	Detail     string
	OccurredAt time.Time
}

// Saga 是一次 ORDER_CREATED 投递对应的编排实例。
// 同一订单的重复投递会得到各自独立的 Saga。
type Saga struct {
	ID          string
	OrderID     int64
	State       SagaState
	StartedAt   time.Time
	Transitions []Transition
}

func NewSaga(id string, orderID int64) *Saga {
	return &Saga{
		ID:        id,
		OrderID:   orderID,
		State:     StateReceived,
		StartedAt: time.Now(),
	}
}

// Advance 校验并执行状态流转
func (s *Saga) Advance(next SagaState, detail string) (Transition, error) {
	if !s.State.CanTransitionTo(next) {
		return Transition{}, errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.State, next)
	}
	t := Transition{
		SagaID:     s.ID,
		OrderID:    s.OrderID,
		From:       s.State,
		To:         next,
		Detail:     detail,
		OccurredAt: time.Now(),
	}
	s.State = next
	s.Transitions = append(s.Transitions, t)
	return t, nil
}
