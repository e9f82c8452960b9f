// Package http provides the operational HTTP surface: Prometheus metrics,
// health, and the gate check endpoint.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for reviewgate.
// Pass to components that need to record metrics.
type Metrics struct {
	ChecksTotal   *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ChecksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reviewgate",
				Name:      "checks_total",
				Help:      "Total number of enforcement checks processed",
			},
			[]string{"gate", "status"}, // gate=strict/enforced/shelve
		),
		CheckDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reviewgate",
				Name:      "check_duration_seconds",
				Help:      "Enforcement check duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"gate"},
		),
	}
}

// RecordCheck records one enforcement check outcome. Implements the
// service.CheckRecorder port.
func (m *Metrics) RecordCheck(gate string, status string, seconds float64) {
	m.ChecksTotal.WithLabelValues(gate, status).Inc()
	m.CheckDuration.WithLabelValues(gate).Observe(seconds)
}
