package saga

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/service/orchestrator/domain"
)

// ChargePaymentHandler 调用支付服务。拒绝与调用失败都会触发补偿。
type ChargePaymentHandler struct {
	NextHandler
}

func (h *ChargePaymentHandler) Handle(sagaCtx *SagaContext) error {
	ctx, span := sagaCtx.Tracer.Start(sagaCtx.Ctx, "saga.ChargePayment")
	defer span.End()
	defer sagaCtx.observeStep("charge_payment", time.Now())

	snapshot := sagaCtx.Snapshot()
	logger.Ctx(ctx).Info().Str("saga", sagaCtx.Saga.ID).Int64("order", snapshot.ID).Msg("【Saga】=> 步骤 3: 支付扣款...")

	span.SetAttributes(
		attribute.Int64("customer.id", snapshot.CustomerID),
		attribute.Float64("order.total_amount", snapshot.TotalAmount),
		attribute.String("payment.mode", snapshot.PaymentMethod),
	)

	result := sagaCtx.PaymentService.Charge(ctx, domain.ChargeRequest{
		OrderID:    snapshot.ID,
		CustomerID: snapshot.CustomerID,
		Amount:     snapshot.TotalAmount,
		Mode:       snapshot.PaymentMethod,
	})
	sagaCtx.recordCall("payment", "charge", result)

	if result.Succeeded() {
		span.AddEvent("Payment approved")
		if err := sagaCtx.Transition(ctx, domain.StateApproved, result.Reference); err != nil {
			span.RecordError(err)
			return err
		}
		return h.executeNext(sagaCtx)
	}

	if result.Err != nil {
		span.RecordError(result.Err)
	}
	span.SetStatus(codes.Error, "Payment "+result.Outcome.String())
	logger.Ctx(ctx).Warn().
		Str("saga", sagaCtx.Saga.ID).
		Int64("order", snapshot.ID).
		Str("outcome", result.Outcome.String()).
		Str("reason", result.Reason).
		Msg("Payment not approved, compensating reserved stock")

	if err := sagaCtx.Transition(ctx, domain.StateCompensating, result.Outcome.String()+": "+result.Reason); err != nil {
		span.RecordError(err)
		return err
	}

	compCtx, cancel := sagaCtx.detachedContext(ctx)
	sagaCtx.TriggerCompensation(compCtx)
	cancel()

	return sagaCtx.Transition(ctx, domain.StateRejected, "")
}
