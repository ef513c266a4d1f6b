// internal/service/orchestrator/interfaces/event_consumer.go
package interfaces

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/metrics"
	"phincommerce/internal/pkg/mq"
	"phincommerce/internal/service/orchestrator/domain"
)

const fetchRetryBackoff = time.Second

// EventHandler 是消费者驱动的应用服务入口
type EventHandler interface {
	HandleEvent(ctx context.Context, event *domain.SagaEvent) error
}

// SagaEventConsumer 是一个驱动适配器，监听 orchestrator topic 并驱动应用服务。
// 消息处理完成后才提交 offset；并发度为 1 时严格保证至少一次。
type SagaEventConsumer struct {
	reader  mq.Reader
	topic   string
	handler EventHandler
	metrics *metrics.Metrics
	tracer  trace.Tracer

	sem    *semaphore.Weighted
	slots  int64
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewSagaEventConsumer(reader mq.Reader, topic string, handler EventHandler, m *metrics.Metrics, tracer trace.Tracer, concurrency int) *SagaEventConsumer {
	if concurrency < 1 {
		concurrency = 1
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &SagaEventConsumer{
		reader:  reader,
		topic:   topic,
		handler: handler,
		metrics: m,
		tracer:  tracer,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		slots:   int64(concurrency),
	}
}

// Start 启动拉取循环，立即返回
func (c *SagaEventConsumer) Start(ctx context.Context) error {
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", c.topic).Int64("concurrency", c.slots).Msg("✅ Saga event consumer started.")
		for {
			msg, err := c.reader.FetchMessage(fetchCtx)
			if err != nil {
				if fetchCtx.Err() != nil {
					logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("🛑 Saga event consumer shutting down.")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
				select {
				case <-time.After(fetchRetryBackoff):
				case <-fetchCtx.Done():
				}
				continue
			}

			if err := c.sem.Acquire(fetchCtx, 1); err != nil {
				// 停止过程中拿不到处理槽位，消息未提交，重启后会重新投递
				return
			}
			c.wg.Add(1)
			go func(msg kafka.Message) {
				defer c.wg.Done()
				defer c.sem.Release(1)
				// 正在执行的 Saga 不随拉取循环一起取消
				c.handleMessage(context.WithoutCancel(ctx), msg)
			}(msg)
		}
	}()
	return nil
}

// Stop 停止拉取，等待正在执行的 Saga 结束后关闭 reader
func (c *SagaEventConsumer) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Ctx(ctx).Warn().Str("topic", c.topic).Msg("Timed out waiting for in-flight sagas")
	}

	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to close kafka reader")
	}
	logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("✅ Saga event consumer stopped.")
}

// handleMessage 解析并分发一条消息。无论成功、失败还是格式错误，都会提交 offset。
func (c *SagaEventConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	ctx = mq.ExtractTraceContext(ctx, msg.Headers)
	ctx, span := c.tracer.Start(ctx, "gateway.HandleMessage", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)
	defer span.End()

	defer func() {
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
		}
	}()

	event, err := domain.DecodeEvent(msg.Value)
	if err != nil {
		c.metrics.MalformedEvents.Inc()
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).
			Str("key", string(msg.Key)).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Dropping malformed event")
		return
	}

	span.SetAttributes(attribute.String("event.status", event.Status.String()), attribute.Int64("order.id", event.Snapshot.ID))
	if err := c.handler.HandleEvent(ctx, event); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("status", event.Status.String()).
			Int64("order", event.Snapshot.ID).
			Bool("unknown_status", errors.Is(err, domain.ErrUnknownStatus)).
			Msg("Failed to handle saga event")
	}
}
