package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"phincommerce/internal/pkg/metrics"
	"phincommerce/internal/service/orchestrator/domain"
)

func newMux(history HistoryReader, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	NewSagaHandler(history, nil, reg).RegisterRoutes(mux)
	return mux
}

func TestSagaHistoryHandler(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	history := &fakeHistory{transitions: []domain.Transition{
		{SagaID: "a", OrderID: 1, To: domain.StateReceived, OccurredAt: at},
		{SagaID: "a", OrderID: 1, From: domain.StateReceived, To: domain.StateCheckingStock, OccurredAt: at},
		{SagaID: "b", OrderID: 1, To: domain.StateReceived, OccurredAt: at},
		{SagaID: "a", OrderID: 1, From: domain.StateCheckingStock, To: domain.StateFailedNoStock, Detail: "product 11 x1: rejected", OccurredAt: at},
	}}
	mux := newMux(history, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sagas/1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.OrderID)
	require.Len(t, resp.Sagas, 2)

	assert.Equal(t, "a", resp.Sagas[0].SagaID)
	assert.Equal(t, "FAILED_NO_STOCK", resp.Sagas[0].State)
	assert.True(t, resp.Sagas[0].Terminal)
	require.Len(t, resp.Sagas[0].Transitions, 3)
	assert.Empty(t, resp.Sagas[0].Transitions[0].From)
	assert.Equal(t, "product 11 x1: rejected", resp.Sagas[0].Transitions[2].Detail)

	assert.Equal(t, "b", resp.Sagas[1].SagaID)
	assert.Equal(t, "RECEIVED", resp.Sagas[1].State)
	assert.False(t, resp.Sagas[1].Terminal)
}

func TestSagaHistoryHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		history *fakeHistory
		path    string
		code    int
	}{
		{"unknown order", &fakeHistory{}, "/api/v1/sagas/404", http.StatusNotFound},
		{"bad id", &fakeHistory{}, "/api/v1/sagas/abc", http.StatusBadRequest},
		{"zero id", &fakeHistory{}, "/api/v1/sagas/0", http.StatusBadRequest},
		{"journal down", &fakeHistory{err: errors.New("redis: connection refused")}, "/api/v1/sagas/1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newMux(tt.history, prometheus.NewRegistry()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestSagaHandler_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.MalformedEvents.Inc()
	mux := newMux(&fakeHistory{}, reg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "saga_malformed_events_total 1"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sagas/1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
