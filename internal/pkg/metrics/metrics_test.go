package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Outcomes.WithLabelValues("APPROVED").Inc()
	m.DownstreamCalls.WithLabelValues("inventory", "check", "ok").Add(2)
	m.StepDuration.WithLabelValues("check_stock").Observe(0.1)
	m.CompensationFailures.Inc()

	expected := `
# HELP saga_outcomes_total Sagas finished, by terminal state.
# TYPE saga_outcomes_total counter
saga_outcomes_total{outcome="APPROVED"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "saga_outcomes_total"))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DownstreamCalls.WithLabelValues("inventory", "check", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompensationFailures))

	assert.Panics(t, func() { New(reg) }, "duplicate registration")
}

func TestNewNop_Independent(t *testing.T) {
	a, b := NewNop(), NewNop()
	a.MalformedEvents.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.MalformedEvents))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.MalformedEvents))
}
