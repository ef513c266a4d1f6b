package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionModelMapping(t *testing.T) {
	for _, tr := range sampleTransitions("saga-1", 7) {
		model := ToSagaTransitionModel(tr)
		assert.Equal(t, tr.To.String(), model.ToState)

		back, err := ToDomainTransition(model)
		require.NoError(t, err)
		assert.Equal(t, tr, back)
	}

	model := ToSagaTransitionModel(sampleTransitions("saga-1", 7)[0])
	assert.Empty(t, model.FromState, "initial transition has no predecessor")

	model.ToState = "SHIPPED"
	_, err := ToDomainTransition(model)
	assert.Error(t, err)
}

func TestMySQLOptions_DSN(t *testing.T) {
	dsn := MySQLOptions{Host: "db.internal", Port: 3307, User: "saga", Password: "p@ss:word", Database: "phincommerce"}.DSN()

	assert.Contains(t, dsn, "saga:p@ss:word@tcp(db.internal:3307)/phincommerce?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestSagaTransitionModel_TableName(t *testing.T) {
	assert.Equal(t, "saga_transition", SagaTransitionModel{}.TableName())
}
