// internal/service/orchestrator/domain/repository.go
package domain

import (
	"context"

	"github.com/pkg/errors"
)

var ErrSagaNotFound = errors.New("saga journal not found")

// SagaJournal 按订单号记录 Saga 状态流转，仅用于审计与排障，
// 不参与去重也不用于崩溃恢复。
type SagaJournal interface {
	Record(ctx context.Context, t Transition) error
	History(ctx context.Context, orderID int64) ([]Transition, error)
}
