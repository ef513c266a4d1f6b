// internal/service/orchestrator/domain/port/payment.go
package port

import (
	"context"

	"phincommerce/internal/service/orchestrator/domain"
)

// PaymentService 是支付服务的出站端口。
// 批准为 Ok，拒绝为 Rejected，其余情况为 TransportFailure。
type PaymentService interface {
	Charge(ctx context.Context, req domain.ChargeRequest) domain.CallResult
}
