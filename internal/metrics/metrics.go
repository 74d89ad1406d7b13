// Package metrics exposes the service's Prometheus instrumentation: a
// counter per transform outcome, search traffic by status, and the size
// of the index.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	TransformOutcomes *prometheus.CounterVec // by source and outcome
	SearchRequests    *prometheus.CounterVec // by status class
	IndexedDocuments  prometheus.Gauge
	QueueJobs         *prometheus.CounterVec // by job kind and outcome
}

// New builds and registers the service metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TransformOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gide",
			Subsystem: "transform",
			Name:      "records_total",
			Help:      "Transformed records by source and outcome",
		}, []string{"source", "outcome"}),

		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gide",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Search requests by result status",
		}, []string{"status"}),

		IndexedDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gide",
			Subsystem: "index",
			Name:      "documents",
			Help:      "Documents currently held by the index",
		}),

		QueueJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gide",
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Queue jobs by kind and outcome",
		}, []string{"kind", "outcome"}),
	}

	m.registry.MustRegister(
		m.TransformOutcomes,
		m.SearchRequests,
		m.IndexedDocuments,
		m.QueueJobs,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
