// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "saga"

// Metrics 汇总编排器的 Prometheus 指标
type Metrics struct {
	Outcomes             *prometheus.CounterVec
	StepDuration         *prometheus.HistogramVec
	DownstreamCalls      *prometheus.CounterVec
	CompensationFailures prometheus.Counter
	PublishFailures      prometheus.Counter
	MalformedEvents      prometheus.Counter
	IgnoredEvents        *prometheus.CounterVec
}

// New 创建并注册全部指标。测试中传入独立的 Registry。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Sagas finished, by terminal state.",
		}, []string{"outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each saga step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		DownstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_calls_total",
			Help:      "Calls to inventory and payment services, by result.",
		}, []string{"service", "operation", "result"}),
		CompensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensation_failures_total",
			Help:      "Release calls that failed during compensation.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Outcome or alert events that could not be published.",
		}),
		MalformedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_events_total",
			Help:      "Inbound events dropped because they could not be decoded.",
		}),
		IgnoredEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_events_total",
			Help:      "Inbound events with a status the orchestrator does not act on.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.Outcomes,
		m.StepDuration,
		m.DownstreamCalls,
		m.CompensationFailures,
		m.PublishFailures,
		m.MalformedEvents,
		m.IgnoredEvents,
	)
	return m
}

// NewNop 返回一个不注册到任何 Registry 的实例
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
