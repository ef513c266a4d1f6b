package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/service/orchestrator/domain"
)

// CheckStockHandler 并发检查每个订单行的库存。
// 检查出错与库存不足同样视为不可售。
type CheckStockHandler struct {
	NextHandler
	// Retries 仅对传输错误重试，检查是幂等的 GET
	Retries int
}

func (h *CheckStockHandler) Handle(sagaCtx *SagaContext) error {
	ctx, span := sagaCtx.Tracer.Start(sagaCtx.Ctx, "saga.CheckStock")
	defer span.End()
	defer sagaCtx.observeStep("check_stock", time.Now())

	logger.Ctx(ctx).Info().Str("saga", sagaCtx.Saga.ID).Int64("order", sagaCtx.Saga.OrderID).Msg("【Saga】=> 步骤 1: 检查库存...")

	if err := sagaCtx.Transition(ctx, domain.StateCheckingStock, ""); err != nil {
		span.RecordError(err)
		return err
	}

	lines := sagaCtx.Snapshot().Items
	span.SetAttributes(attribute.Int("order.lines", len(lines)))

	outcomes := sagaCtx.fanOut(ctx, lines, func(ctx context.Context, line domain.OrderLine) domain.CallResult {
		result := h.check(ctx, sagaCtx, line)
		sagaCtx.recordCall("inventory", "check", result)
		return result
	})

	if !domain.AllSucceeded(outcomes) {
		failed := domain.Failed(outcomes)
		logFailedLines(ctx, sagaCtx, "stock check failed", failed)
		span.SetStatus(codes.Error, "Stock check failed")
		return sagaCtx.Transition(ctx, domain.StateFailedNoStock, describeLines(failed))
	}

	span.AddEvent("All items available")
	if err := sagaCtx.Transition(ctx, domain.StateReserving, ""); err != nil {
		span.RecordError(err)
		return err
	}
	return h.executeNext(sagaCtx)
}

func (h *CheckStockHandler) check(ctx context.Context, sagaCtx *SagaContext, line domain.OrderLine) domain.CallResult {
	result := sagaCtx.InventoryService.CheckAvailability(ctx, line.ProductID, line.Quantity)
	for attempt := 0; attempt < h.Retries && result.Outcome == domain.OutcomeTransportError; attempt++ {
		if ctx.Err() != nil {
			break
		}
		logger.Ctx(ctx).Debug().Int64("product", line.ProductID).Int("attempt", attempt+1).Msg("Retrying stock check after transport error")
		result = sagaCtx.InventoryService.CheckAvailability(ctx, line.ProductID, line.Quantity)
	}
	return result
}
