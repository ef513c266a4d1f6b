// internal/service/orchestrator/application/service.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/metrics"
	"phincommerce/internal/service/orchestrator/application/saga"
	"phincommerce/internal/service/orchestrator/domain"
	"phincommerce/internal/service/orchestrator/domain/port"
)

const journalWriteTimeout = 3 * time.Second

// Options 是 Saga 执行的可调参数
type Options struct {
	SagaTimeout         time.Duration
	CompensationTimeout time.Duration
	FanOutLimit         int
	CheckRetries        int
}

// OrchestratorService 驱动订单履约 Saga：检查库存、扣减库存、支付、失败时补偿。
type OrchestratorService struct {
	opts    Options
	tracer  trace.Tracer
	metrics *metrics.Metrics

	inventoryService port.InventoryService
	paymentService   port.PaymentService
	publisher        port.OutcomePublisher
	alerts           port.AlertPublisher
	journal          domain.SagaJournal
	observers        []port.TransitionObserver

	newSagaID func() string
}

func NewOrchestratorService(opts Options, tracer trace.Tracer, m *metrics.Metrics, inventoryService port.InventoryService, paymentService port.PaymentService, publisher port.OutcomePublisher, alerts port.AlertPublisher, journal domain.SagaJournal, observers ...port.TransitionObserver) *OrchestratorService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &OrchestratorService{
		opts: opts, tracer: tracer, metrics: m,
		inventoryService: inventoryService, paymentService: paymentService,
		publisher: publisher, alerts: alerts, journal: journal, observers: observers,
		newSagaID: func() string { return uuid.New().String() },
	}
}

// HandleEvent 是事件网关调用的入口，按状态做穷举分发。
// 只有 ORDER_CREATED 会启动 Saga，其余状态属于其他协作方，直接忽略。
func (s *OrchestratorService) HandleEvent(ctx context.Context, event *domain.SagaEvent) error {
	switch event.Status {
	case domain.StatusOrderCreated:
		_, err := s.RunSaga(ctx, event)
		return err
	case domain.StatusProductDeducted,
		domain.StatusProductDeductFailed,
		domain.StatusProductDeductedFailed,
		domain.StatusProductAdded,
		domain.StatusProductAddFailed,
		domain.StatusPaymentApproved,
		domain.StatusPaymentRejected:
		s.metrics.IgnoredEvents.WithLabelValues(event.Status.String()).Inc()
		logger.Ctx(ctx).Debug().Str("status", event.Status.String()).Int64("order", event.Snapshot.ID).Msg("Ignoring event not addressed to the orchestrator")
		return nil
	default:
		return errors.Wrapf(domain.ErrUnknownStatus, "dispatch %s", event.Status)
	}
}

// RunSaga 为一次 ORDER_CREATED 投递执行完整的 Saga。
// 每次调用都是独立实例：同一事件投递两次会扣两次库存、扣两次款。
func (s *OrchestratorService) RunSaga(ctx context.Context, event *domain.SagaEvent) (*domain.Saga, error) {
	if event.Status != domain.StatusOrderCreated {
		return nil, errors.Errorf("saga can only start from %s, got %s", domain.StatusOrderCreated, event.Status)
	}
	snapshot := event.Snapshot
	sagaInstance := domain.NewSaga(s.newSagaID(), snapshot.ID)

	ctx, span := s.tracer.Start(ctx, "app.RunSaga", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("saga.id", sagaInstance.ID),
		attribute.Int64("order.id", snapshot.ID),
		attribute.Int64("customer.id", snapshot.CustomerID),
		attribute.Int("order.lines", len(snapshot.Items)),
	)

	ctx = logger.WithContext(ctx, logger.Ctx(ctx).With().Str("saga", sagaInstance.ID).Int64("order", snapshot.ID).Logger())

	if !snapshot.TotalMatchesLines() {
		logger.Ctx(ctx).Warn().
			Float64("total_amount", snapshot.TotalAmount).
			Float64("lines_total", snapshot.LinesTotal()).
			Msg("Order total does not match its lines; charging the stated total")
	}

	// 为每个 Saga 设置独立的超时时间
	processingCtx := ctx
	if s.opts.SagaTimeout > 0 {
		var cancel context.CancelFunc
		processingCtx, cancel = context.WithTimeout(ctx, s.opts.SagaTimeout)
		defer cancel()
	}

	s.record(ctx, domain.Transition{
		SagaID: sagaInstance.ID, OrderID: snapshot.ID,
		To: domain.StateReceived, OccurredAt: sagaInstance.StartedAt,
	})

	sagaCtx := &saga.SagaContext{
		Ctx:                 processingCtx,
		Saga:                sagaInstance,
		Event:               event,
		Tracer:              s.tracer,
		InventoryService:    s.inventoryService,
		PaymentService:      s.paymentService,
		Alerts:              s.alerts,
		Metrics:             s.metrics,
		FanOutLimit:         s.opts.FanOutLimit,
		CompensationTimeout: s.opts.CompensationTimeout,
		OnTransition:        s.record,
	}

	logger.Ctx(ctx).Info().Int64("customer", snapshot.CustomerID).Int("lines", len(snapshot.Items)).Msg("Starting order fulfillment saga")

	if err := s.buildChain().Handle(sagaCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Saga chain failed")
		logger.Ctx(ctx).Error().Err(err).Str("state", sagaInstance.State.String()).Msg("Saga aborted")
		return sagaInstance, err
	}

	outcome, ok := sagaInstance.State.OutcomeStatus()
	if !ok {
		err := errors.Errorf("saga finished in non-terminal state %s", sagaInstance.State)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sagaInstance, err
	}
	s.metrics.Outcomes.WithLabelValues(sagaInstance.State.String()).Inc()
	span.SetAttributes(attribute.String("saga.final_state", sagaInstance.State.String()))

	// 结果发布是 fire-and-forget：失败只记录，不重试，也不回滚已提交的副作用
	if err := s.publisher.Publish(ctx, sagaInstance.ID, event.OutcomeEvent(outcome)); err != nil {
		s.metrics.PublishFailures.Inc()
		span.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", true)))
		logger.Ctx(ctx).Error().Err(err).Str("outcome", outcome.String()).Msg("CRITICAL: failed to publish saga outcome")
		return sagaInstance, nil
	}

	logger.Ctx(ctx).Info().Str("state", sagaInstance.State.String()).Str("outcome", outcome.String()).Msg("Saga finished")
	return sagaInstance, nil
}

// record 写入 Saga 日志并推送给观察者。日志写入失败不影响 Saga。
func (s *OrchestratorService) record(ctx context.Context, t domain.Transition) {
	for _, o := range s.observers {
		o.Observe(t)
	}
	if s.journal == nil {
		return
	}
	// Saga 超时后仍需要记录后续流转
	writeCtx, cancel := context.WithTimeout(trace.ContextWithRemoteSpanContext(context.Background(), trace.SpanContextFromContext(ctx)), journalWriteTimeout)
	defer cancel()
	if err := s.journal.Record(writeCtx, t); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("to", t.To.String()).Msg("Failed to write saga journal")
	}
}

// History 返回某个订单的全部 Saga 流转记录
func (s *OrchestratorService) History(ctx context.Context, orderID int64) ([]domain.Transition, error) {
	if s.journal == nil {
		return nil, domain.ErrSagaNotFound
	}
	return s.journal.History(ctx, orderID)
}

func (s *OrchestratorService) buildChain() saga.Handler {
	chain := &saga.CheckStockHandler{Retries: s.opts.CheckRetries}
	chain.
		SetNext(new(saga.ReserveStockHandler)).
		SetNext(new(saga.ChargePaymentHandler))
	return chain
}
