package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/service/orchestrator/domain"
)

// ReserveStockHandler 并发扣减每个订单行的库存。
// 部分失败时不回滚已经扣减成功的行。
type ReserveStockHandler struct {
	NextHandler
}

func (h *ReserveStockHandler) Handle(sagaCtx *SagaContext) error {
	ctx, span := sagaCtx.Tracer.Start(sagaCtx.Ctx, "saga.ReserveStock")
	defer span.End()
	defer sagaCtx.observeStep("reserve_stock", time.Now())

	logger.Ctx(ctx).Info().Str("saga", sagaCtx.Saga.ID).Int64("order", sagaCtx.Saga.OrderID).Msg("【Saga】=> 步骤 2: 扣减库存...")

	lines := sagaCtx.Snapshot().Items
	span.SetAttributes(attribute.Int("order.lines", len(lines)))

	outcomes := sagaCtx.fanOut(ctx, lines, func(ctx context.Context, line domain.OrderLine) domain.CallResult {
		result := sagaCtx.InventoryService.Reserve(ctx, line.ProductID, line.Quantity)
		sagaCtx.recordCall("inventory", "reserve", result)
		return result
	})

	if !domain.AllSucceeded(outcomes) {
		failed := domain.Failed(outcomes)
		logFailedLines(ctx, sagaCtx, "stock reservation failed", failed)
		if reserved := len(outcomes) - len(failed); reserved > 0 {
			logger.Ctx(ctx).Warn().
				Str("saga", sagaCtx.Saga.ID).
				Int64("order", sagaCtx.Saga.OrderID).
				Int("reserved_lines", reserved).
				Msg("Lines reserved before the failure stay reserved; no compensation on reservation failure")
			span.SetAttributes(attribute.Int("saga.lines_left_reserved", reserved))
		}
		span.SetStatus(codes.Error, "Stock reservation failed")
		return sagaCtx.Transition(ctx, domain.StateFailedReserve, describeLines(failed))
	}

	// 全部扣减成功后才注册补偿，补偿对象是快照中的全部订单行
	sagaCtx.AddCompensation(func(compCtx context.Context) {
		releaseAll(compCtx, sagaCtx)
	})

	span.AddEvent("All items reserved successfully")
	if err := sagaCtx.Transition(ctx, domain.StateCharging, ""); err != nil {
		span.RecordError(err)
		return err
	}
	return h.executeNext(sagaCtx)
}
