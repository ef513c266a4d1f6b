package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"phincommerce/internal/service/orchestrator/domain"
)

// GormJournal 是 domain.SagaJournal 的 GORM 实现
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal 创建仓储并同步表结构
func NewGormJournal(db *gorm.DB) (*GormJournal, error) {
	if err := db.AutoMigrate(&SagaTransitionModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate saga_transition")
	}
	return &GormJournal{db: db}, nil
}

func (r *GormJournal) Record(ctx context.Context, t domain.Transition) error {
	return r.db.WithContext(ctx).Create(ToSagaTransitionModel(t)).Error
}

func (r *GormJournal) History(ctx context.Context, orderID int64) ([]domain.Transition, error) {
	var models []SagaTransitionModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, domain.ErrSagaNotFound
	}

	out := make([]domain.Transition, 0, len(models))
	for i := range models {
		t, err := ToDomainTransition(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
