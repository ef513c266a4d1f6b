package saga

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/metrics"
	"phincommerce/internal/service/orchestrator/domain"
	"phincommerce/internal/service/orchestrator/domain/port"
)

// SagaContext 在 Saga 流程中传递上下文数据。
type SagaContext struct {
	Ctx    context.Context
	Saga   *domain.Saga
	Event  *domain.SagaEvent
	Tracer trace.Tracer

	InventoryService port.InventoryService
	PaymentService   port.PaymentService
	Alerts           port.AlertPublisher
	Metrics          *metrics.Metrics

	// FanOutLimit 限制单个订单扇出调用的并发数
	FanOutLimit int
	// CompensationTimeout 补偿在脱离 Saga 超时的上下文中执行，使用独立超时
	CompensationTimeout time.Duration
	// OnTransition 在每次状态流转后调用（Saga 日志、实时推送等）
	OnTransition func(ctx context.Context, t domain.Transition)

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

func (c *SagaContext) Snapshot() *domain.OrderSnapshot {
	return c.Event.Snapshot
}

// AddCompensation 注册补偿操作，后注册的先执行
func (c *SagaContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

func (c *SagaContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().
		Str("saga", c.Saga.ID).
		Int64("order", c.Saga.OrderID).
		Msgf("Executing %d compensation functions.", len(c.compensations))
	for _, comp := range c.compensations {
		comp(ctx)
	}
}

// Transition 推进状态机并通知观察者。非法流转是编程错误，直接返回。
func (c *SagaContext) Transition(ctx context.Context, next domain.SagaState, detail string) error {
	t, err := c.Saga.Advance(next, detail)
	if err != nil {
		return err
	}
	trace.SpanFromContext(ctx).AddEvent("saga.transition: " + t.From.String() + " -> " + t.To.String())
	if c.OnTransition != nil {
		c.OnTransition(ctx, t)
	}
	return nil
}

// detachedContext 保留链路信息但不继承 Saga 的超时与取消
func (c *SagaContext) detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	spanContext := trace.SpanContextFromContext(ctx)
	detached := trace.ContextWithRemoteSpanContext(context.Background(), spanContext)
	detached = logger.WithContext(detached, *logger.Ctx(ctx))
	if c.CompensationTimeout > 0 {
		return context.WithTimeout(detached, c.CompensationTimeout)
	}
	return context.WithCancel(detached)
}

// fanOut 为每个订单行并发调用 call，并发数受 FanOutLimit 约束。
// 一行失败不会取消其余调用，所有调用结束后才返回。
func (c *SagaContext) fanOut(ctx context.Context, lines []domain.OrderLine, call func(ctx context.Context, line domain.OrderLine) domain.CallResult) []domain.LineOutcome {
	outcomes := make([]domain.LineOutcome, len(lines))

	var g errgroup.Group
	if c.FanOutLimit > 0 {
		g.SetLimit(c.FanOutLimit)
	}
	for i, line := range lines {
		g.Go(func() error {
			outcomes[i] = domain.LineOutcome{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Result:    call(ctx, line),
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (c *SagaContext) observeStep(step string, started time.Time) {
	if c.Metrics != nil {
		c.Metrics.StepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
	}
}

// Handler 是责任链中的一个 Saga 步骤
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(sagaCtx *SagaContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(sagaCtx *SagaContext) error {
	if h.next != nil {
		return h.next.Handle(sagaCtx)
	}
	return nil
}
