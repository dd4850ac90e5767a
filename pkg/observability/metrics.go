// Package observability wraps reasoning nodes with logging, tracing and
// metrics, and fans session events out to the log and the event bus.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	NodeDuration *prometheus.HistogramVec
	Events       *prometheus.CounterVec
}

// NewMetrics registers the agent collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_node_duration_seconds",
				Help:    "Reasoning node execution time in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"node", "status"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_session_events_total",
				Help: "Session lifecycle events by type",
			},
			[]string{"event"},
		),
	}
}
