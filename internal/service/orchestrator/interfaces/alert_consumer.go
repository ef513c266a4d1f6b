// internal/service/orchestrator/interfaces/alert_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/mq"
	"phincommerce/internal/service/orchestrator/domain"
)

// AlertConsumerAdapter 监听补偿失败告警并输出结构化日志，供人工对账
type AlertConsumerAdapter struct {
	reader mq.Reader
	topic  string
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewAlertConsumerAdapter(reader mq.Reader, topic string) *AlertConsumerAdapter {
	return &AlertConsumerAdapter{reader: reader, topic: topic}
}

func (a *AlertConsumerAdapter) Start(ctx context.Context) error {
	readCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ Alert consumer started.")
		for {
			msg, err := a.reader.FetchMessage(readCtx)
			if err != nil {
				if readCtx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 Alert consumer shutting down.")
					return
				}
				continue
			}

			_, _ = a.handleMessage(readCtx, msg)

			// 告警只做记录，记录后即视为已处理
			if err := a.reader.CommitMessages(readCtx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit alert")
			}
		}
	}()
	return nil
}

func (a *AlertConsumerAdapter) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if err := a.reader.Close(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to close alert reader")
	}
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ Alert consumer stopped.")
}

func (a *AlertConsumerAdapter) handleMessage(ctx context.Context, msg kafka.Message) (domain.AlertMessage, error) {
	ctx = mq.ExtractTraceContext(ctx, msg.Headers)

	var alert domain.AlertMessage
	if err := json.Unmarshal(msg.Value, &alert); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("alert_type", mq.HeaderValue(msg.Headers, mq.HeaderAlertType)).
			Str("value", string(msg.Value)).
			Msg("🚨 CRITICAL: Unreadable compensation alert")
		return domain.AlertMessage{}, err
	}

	logCompensationAlert(logger.Ctx(ctx), alert)
	return alert, nil
}

func logCompensationAlert(l *zerolog.Logger, alert domain.AlertMessage) {
	for _, line := range alert.FailedLines {
		l.Error().
			Str("reason", "compensation_failed").
			Str("alert_type", alert.Type).
			Str("saga", alert.SagaID).
			Int64("order", alert.OrderID).
			Int64("product_id", line.ProductID).
			Int("quantity", line.Quantity).
			Str("outcome", line.Outcome).
			Str("detail", line.Reason).
			Time("occurred_at", alert.OccurredAt).
			Msg("🚨 CRITICAL: Stock release failed, reconcile manually")
	}
}
