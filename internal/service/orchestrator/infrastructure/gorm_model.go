package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// SagaTransitionModel 对应数据库中的 saga_transition 表
type SagaTransitionModel struct {
	gorm.Model
	SagaID     string `gorm:"type:char(36);index"`
	OrderID    int64  `gorm:"index"`
	FromState  string `gorm:"type:varchar(32)"`
	ToState    string `gorm:"type:varchar(32)"`
	Detail     string `gorm:"type:text"`
	OccurredAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (SagaTransitionModel) TableName() string {
	return "saga_transition"
}
