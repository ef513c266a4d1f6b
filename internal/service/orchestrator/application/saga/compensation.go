package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/service/orchestrator/domain"
)

// releaseAll 为快照中的每个订单行回补库存。尽力而为，不重试，
// 失败的行通过指标和告警事件上报，不影响后续的结果发布。
func releaseAll(ctx context.Context, sagaCtx *SagaContext) []domain.LineOutcome {
	ctx, span := sagaCtx.Tracer.Start(ctx, "saga.compensation.ReleaseStock")
	defer span.End()
	defer sagaCtx.observeStep("compensation", time.Now())

	lines := sagaCtx.Snapshot().Items
	span.SetAttributes(attribute.Int("order.lines", len(lines)))

	outcomes := sagaCtx.fanOut(ctx, lines, func(ctx context.Context, line domain.OrderLine) domain.CallResult {
		result := sagaCtx.InventoryService.Release(ctx, line.ProductID, line.Quantity)
		sagaCtx.recordCall("inventory", "release", result)
		return result
	})

	failed := domain.Failed(outcomes)
	if len(failed) == 0 {
		span.AddEvent("All items released")
		return outcomes
	}

	span.SetStatus(codes.Error, "Compensation incomplete")
	span.SetAttributes(attribute.Int("saga.failed_releases", len(failed)))
	if sagaCtx.Metrics != nil {
		sagaCtx.Metrics.CompensationFailures.Add(float64(len(failed)))
	}
	// 补偿失败需要记录严重错误，并需要人工介入
	logFailedLines(ctx, sagaCtx, "CRITICAL: stock release failed during compensation", failed)

	if sagaCtx.Alerts != nil {
		alert := domain.CompensationAlert{SagaID: sagaCtx.Saga.ID, OrderID: sagaCtx.Saga.OrderID, FailedLines: failed}
		if err := sagaCtx.Alerts.PublishCompensationFailure(ctx, alert); err != nil {
			span.RecordError(err)
			if sagaCtx.Metrics != nil {
				sagaCtx.Metrics.PublishFailures.Inc()
			}
			logger.Ctx(ctx).Error().Err(err).Str("saga", sagaCtx.Saga.ID).Msg("Failed to publish compensation alert")
		}
	}
	return outcomes
}

func (c *SagaContext) recordCall(service, operation string, result domain.CallResult) {
	if c.Metrics != nil {
		c.Metrics.DownstreamCalls.WithLabelValues(service, operation, result.Outcome.String()).Inc()
	}
}

func logFailedLines(ctx context.Context, sagaCtx *SagaContext, msg string, failed []domain.LineOutcome) {
	for _, f := range failed {
		logger.Ctx(ctx).Error().
			Err(f.Result.Err).
			Str("saga", sagaCtx.Saga.ID).
			Int64("order", sagaCtx.Saga.OrderID).
			Int64("product", f.ProductID).
			Int("quantity", f.Quantity).
			Str("outcome", f.Result.Outcome.String()).
			Str("reason", f.Result.Reason).
			Msg(msg)
	}
}

// describeLines 生成写入 Saga 日志的简短描述
func describeLines(outcomes []domain.LineOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("product %d x%d: %s", o.ProductID, o.Quantity, o.Result.Outcome))
	}
	return strings.Join(parts, "; ")
}
