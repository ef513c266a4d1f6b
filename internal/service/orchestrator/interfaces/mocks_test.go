package interfaces

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"phincommerce/internal/service/orchestrator/domain"
)

// fakeReader 依次返回预置消息，取完后阻塞到 ctx 结束
type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	closed    bool
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return r.commitErr
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeEventHandler struct {
	mu     sync.Mutex
	err    error
	events []*domain.SagaEvent
}

func (h *fakeEventHandler) HandleEvent(_ context.Context, event *domain.SagaEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *fakeEventHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

type fakeHistory struct {
	transitions []domain.Transition
	err         error
}

func (f *fakeHistory) History(_ context.Context, orderID int64) ([]domain.Transition, error) {
	if f.err != nil {
		return nil, f.err
	}
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
