// Package metrics exports Prometheus instruments for tool calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tools counts tool calls and observes their latency, labelled by tool and
// outcome ("success" or the error kind).
type Tools struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTools creates the instruments and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewTools(reg prometheus.Registerer) *Tools {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Tools{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sfclause",
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sfclause",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call latency, including login.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"tool", "outcome"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

// ObserveCall records one finished call.
func (m *Tools) ObserveCall(tool, outcome string, elapsed time.Duration) {
	m.calls.WithLabelValues(tool, outcome).Inc()
	m.duration.WithLabelValues(tool, outcome).Observe(elapsed.Seconds())
}
