package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"phincommerce/internal/service/orchestrator/domain"
)

type lineCall struct {
	ProductID int64
	Quantity  int
}

// fakeInventory 按商品返回预设结果，未设置的商品默认成功
type fakeInventory struct {
	mu       sync.Mutex
	check    map[int64]domain.CallResult
	reserve  map[int64]domain.CallResult
	release  map[int64]domain.CallResult
	checks   []lineCall
	reserves []lineCall
	releases []lineCall

	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		check:   make(map[int64]domain.CallResult),
		reserve: make(map[int64]domain.CallResult),
		release: make(map[int64]domain.CallResult),
	}
}

func (f *fakeInventory) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeInventory) do(ctx context.Context, calls *[]lineCall, results map[int64]domain.CallResult, productID int64, quantity int) domain.CallResult {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	*calls = append(*calls, lineCall{productID, quantity})
	if err := ctx.Err(); err != nil {
		return domain.TransportFailure(err)
	}
	if r, ok := results[productID]; ok {
		return r
	}
	return domain.Ok()
}

func (f *fakeInventory) CheckAvailability(ctx context.Context, productID int64, quantity int) domain.CallResult {
	return f.do(ctx, &f.checks, f.check, productID, quantity)
}

func (f *fakeInventory) Reserve(ctx context.Context, productID int64, quantity int) domain.CallResult {
	return f.do(ctx, &f.reserves, f.reserve, productID, quantity)
}

func (f *fakeInventory) Release(ctx context.Context, productID int64, quantity int) domain.CallResult {
	return f.do(ctx, &f.releases, f.release, productID, quantity)
}

func (f *fakeInventory) calls() (checks, reserves, releases []lineCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]lineCall(nil), f.checks...), append([]lineCall(nil), f.reserves...), append([]lineCall(nil), f.releases...)
}

type fakePayment struct {
	mu      sync.Mutex
	result  domain.CallResult
	charges []domain.ChargeRequest

	// hang 为 true 时一直阻塞到 ctx 结束，模拟支付服务无响应
	hang bool
}

func (f *fakePayment) Charge(ctx context.Context, req domain.ChargeRequest) domain.CallResult {
	f.mu.Lock()
	f.charges = append(f.charges, req)
	hang, result := f.hang, f.result
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return domain.TransportFailure(ctx.Err())
	}
	return result
}

type publishedEvent struct {
	SagaID string
	Event  *domain.SagaEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, sagaID string, event *domain.SagaEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{SagaID: sagaID, Event: event})
	return f.err
}

type fakeAlerts struct {
	mu     sync.Mutex
	err    error
	alerts []domain.CompensationAlert
}

func (f *fakeAlerts) PublishCompensationFailure(_ context.Context, alert domain.CompensationAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

type fakeJournal struct {
	mu          sync.Mutex
	err         error
	transitions []domain.Transition
}

func (f *fakeJournal) Record(_ context.Context, t domain.Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.transitions = append(f.transitions, t)
	return nil
}

func (f *fakeJournal) History(_ context.Context, orderID int64) ([]domain.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transition
	for _, t := range f.transitions {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrSagaNotFound
	}
	return out, nil
}

type recordingObserver struct {
	mu  sync.Mutex
	got []domain.Transition
}

func (o *recordingObserver) Observe(t domain.Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, t)
}
