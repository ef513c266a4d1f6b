// internal/service/orchestrator/domain/port/publisher.go
package port

import (
	"context"

	"phincommerce/internal/service/orchestrator/domain"
)

// OutcomePublisher 将 Saga 的终态结果发布给订单记录服务
type OutcomePublisher interface {
	Publish(ctx context.Context, sagaID string, event *domain.SagaEvent) error
}

// AlertPublisher 上报补偿失败，供运维人工对账
type AlertPublisher interface {
	PublishCompensationFailure(ctx context.Context, alert domain.CompensationAlert) error
}

// TransitionObserver 接收实时的状态流转（例如推送给 websocket 客户端）
type TransitionObserver interface {
	Observe(t domain.Transition)
}
