package interfaces

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"phincommerce/internal/service/orchestrator/domain"
)

func alertMessage(t *testing.T) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(domain.AlertMessage{
		Type:        domain.AlertTypeCompensationFailed,
		SagaID:      "saga-1",
		OrderID:     1,
		FailedLines: []domain.AlertLine{{ProductID: 10, Quantity: 2, Outcome: "transport_error", Reason: "connection reset"}},
		OccurredAt:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return kafka.Message{Topic: "orchestrator-alerts", Value: payload}
}

func TestAlertConsumer_HandleMessage(t *testing.T) {
	a := NewAlertConsumerAdapter(&fakeReader{}, "orchestrator-alerts")

	alert, err := a.handleMessage(context.Background(), alertMessage(t))

	require.NoError(t, err)
	assert.Equal(t, "saga-1", alert.SagaID)
	require.Len(t, alert.FailedLines, 1)
	assert.Equal(t, int64(10), alert.FailedLines[0].ProductID)

	_, err = a.handleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}

func TestAlertConsumer_CommitsEveryAlert(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{alertMessage(t), {Value: []byte("{")}}}
	a := NewAlertConsumerAdapter(reader, "orchestrator-alerts")

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commitCount() == 2 }, time.Second, 5*time.Millisecond)
	a.Stop(context.Background())

	assert.True(t, reader.closed)
}
