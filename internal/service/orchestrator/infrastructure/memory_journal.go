package infrastructure

import (
	"context"
	"sync"

	"phincommerce/internal/service/orchestrator/domain"
)

// MemoryJournal 是进程内的 Saga 日志，重启即丢失。每个订单最多保留 maxPerOrder 条。
type MemoryJournal struct {
	mu          sync.RWMutex
	byOrder     map[int64][]domain.Transition
	maxPerOrder int
}

func NewMemoryJournal(maxPerOrder int) *MemoryJournal {
	if maxPerOrder <= 0 {
		maxPerOrder = 256
	}
	return &MemoryJournal{byOrder: make(map[int64][]domain.Transition), maxPerOrder: maxPerOrder}
}

func (j *MemoryJournal) Record(_ context.Context, t domain.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries := append(j.byOrder[t.OrderID], t)
	if len(entries) > j.maxPerOrder {
		entries = entries[len(entries)-j.maxPerOrder:]
	}
	j.byOrder[t.OrderID] = entries
	return nil
}

func (j *MemoryJournal) History(_ context.Context, orderID int64) ([]domain.Transition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	entries, ok := j.byOrder[orderID]
	if !ok {
		return nil, domain.ErrSagaNotFound
	}
	out := make([]domain.Transition, len(entries))
	copy(out, entries)
	return out, nil
}
