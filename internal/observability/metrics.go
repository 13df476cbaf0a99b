// Package observability provides the prometheus metrics for the processing
// pipeline and web server.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	ImagesProcessed   prometheus.Counter
	ImagesDiscarded   prometheus.Counter
	DetectionsTotal   *prometheus.CounterVec
	PassDuration      prometheus.Histogram
	ResultsEvicted    prometheus.Counter
	IngestTotal       prometheus.Counter
	BroadcastsTotal   prometheus.Counter
	PassFailures      prometheus.Counter
}

// NewMetrics creates a new instance of Metrics with all collectors
// registered on a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ImagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestwatch_images_processed_total",
			Help: "Number of backlog images fully processed.",
		}),
		ImagesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestwatch_images_discarded_total",
			Help: "Number of backlog images discarded without detections.",
		}),
		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pestwatch_detections_total",
			Help: "Number of recorded detections by category.",
		}, []string{"category"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pestwatch_pass_duration_seconds",
			Help:    "Duration of complete backlog drain passes.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ResultsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestwatch_results_evicted_total",
			Help: "Number of result images removed by retention.",
		}),
		IngestTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestwatch_ingest_total",
			Help: "Number of camera captures accepted.",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestwatch_broadcasts_total",
			Help: "Number of live update broadcasts sent.",
		}),
		PassFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestwatch_pass_failures_total",
			Help: "Number of backlog passes aborted by store failures.",
		}),
	}

	collectors := []prometheus.Collector{
		m.ImagesProcessed, m.ImagesDiscarded, m.DetectionsTotal,
		m.PassDuration, m.ResultsEvicted, m.IngestTotal,
		m.BroadcastsTotal, m.PassFailures,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
