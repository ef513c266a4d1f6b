// internal/service/orchestrator/domain/alert.go
package domain

import "time"

const AlertTypeCompensationFailed = "COMPENSATION_FAILED"

// AlertLine 是告警中单个释放失败的订单行
type AlertLine struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
}

// AlertMessage 是告警 topic 上的消息格式
type AlertMessage struct {
	Type        string      `json:"type"`
	SagaID      string      `json:"saga_id"`
	OrderID     int64       `json:"order_id"`
	FailedLines []AlertLine `json:"failed_lines"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func NewAlertMessage(alert CompensationAlert, at time.Time) AlertMessage {
	lines := make([]AlertLine, 0, len(alert.FailedLines))
	for _, l := range alert.FailedLines {
		lines = append(lines, AlertLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Outcome:   l.Result.Outcome.String(),
			Reason:    l.Result.Reason,
		})
	}
	return AlertMessage{
		Type:        AlertTypeCompensationFailed,
		SagaID:      alert.SagaID,
		OrderID:     alert.OrderID,
		FailedLines: lines,
		OccurredAt:  at,
	}
}
