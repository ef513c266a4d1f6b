package infrastructure

import (
	"phincommerce/internal/service/orchestrator/domain"
)

// ToSagaTransitionModel 领域对象 -> 数据库模型
func ToSagaTransitionModel(t domain.Transition) *SagaTransitionModel {
	from, _ := t.From.MarshalText()
	to, _ := t.To.MarshalText()
	return &SagaTransitionModel{
		SagaID:     t.SagaID,
		OrderID:    t.OrderID,
		FromState:  string(from),
		ToState:    string(to),
		Detail:     t.Detail,
		OccurredAt: t.OccurredAt,
	}
}

// ToDomainTransition 数据库模型 -> 领域对象
func ToDomainTransition(m *SagaTransitionModel) (domain.Transition, error) {
	from, err := domain.ParseSagaState(m.FromState)
	if err != nil {
		return domain.Transition{}, err
	}
	to, err := domain.ParseSagaState(m.ToState)
	if err != nil {
		return domain.Transition{}, err
	}
	return domain.Transition{
		SagaID:     m.SagaID,
		OrderID:    m.OrderID,
		From:       from,
		To:         to,
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt,
	}, nil
}
