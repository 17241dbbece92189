// Package metrics exposes Prometheus metrics for purges.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"selective-purge/purge"
)

// Metrics implements purge.Recorder.
type Metrics struct {
	MessagesDeleted *prometheus.CounterVec
	BatchCalls      *prometheus.CounterVec
	BatchSize       prometheus.Histogram
	PurgesTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purge_messages_deleted_total",
				Help: "Total number of deleted messages by event.",
			},
			[]string{"event"},
		),
		BatchCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purge_delete_calls_total",
				Help: "Total number of delete calls by status.",
			},
			[]string{"status"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "purge_delete_batch_size",
				Help:    "Number of messages per delete call.",
				Buckets: []float64{1, 2, 10, 25, 50, 75, 99, 100},
			},
		),
		PurgesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purge_runs_total",
				Help: "Total number of purges by event and status.",
			},
			[]string{"event", "status"},
		),
		registry: reg,
	}

	reg.MustRegister(m.MessagesDeleted)
	reg.MustRegister(m.BatchCalls)
	reg.MustRegister(m.BatchSize)
	reg.MustRegister(m.PurgesTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveBatch(size int, err error) {
	m.BatchCalls.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.BatchSize.Observe(float64(size))
	}
}

func (m *Metrics) ObservePurge(event purge.AuditEvent, result purge.Result, err error) {
	m.PurgesTotal.WithLabelValues(string(event), status(err)).Inc()
	if result.Deleted > 0 {
		m.MessagesDeleted.WithLabelValues(string(event)).Add(float64(result.Deleted))
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, purge.ErrUsage):
		return "usage"
	case errors.Is(err, purge.ErrPermission):
		return "forbidden"
	}
	var pe *purge.PurgeError
	if errors.As(err, &pe) && pe.Partial() {
		return "partial"
	}
	return "error"
}
