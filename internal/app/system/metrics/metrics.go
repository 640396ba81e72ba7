// Package metrics exposes the service's Prometheus instruments.
//
// All recording methods are safe on a nil *Metrics so callers and tests
// can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stratasheet"

// Ingestion outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation_error"
	OutcomeParse      = "parse_error"
	OutcomeProcessing = "processing_error"
)

// Metrics groups the instruments.
type Metrics struct {
	registry *prometheus.Registry

	ingestions     *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestRows     prometheus.Histogram
	orphanBlobs    prometheus.Counter
	orphansCleaned prometheus.Counter
	aiSummaries    *prometheus.CounterVec
}

// New registers the instruments on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingestions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Spreadsheet uploads by format and outcome.",
		}, []string{"format", "outcome"}),
		ingestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time to parse, summarize and persist an upload.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"format"}),
		ingestRows: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_rows",
			Help:      "Data rows per successful upload.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		orphanBlobs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_blobs_total",
			Help:      "Stored blobs left without a dataset record.",
		}),
		orphansCleaned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_blobs_cleaned_total",
			Help:      "Orphaned blobs removed by the cleanup task.",
		}),
		aiSummaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_summaries_total",
			Help:      "AI summary requests by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveIngest records one finished ingestion.
func (m *Metrics) ObserveIngest(format, outcome string, took time.Duration, rows int) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(format, outcome).Inc()
	m.ingestDuration.WithLabelValues(format).Observe(took.Seconds())
	if outcome == OutcomeSuccess {
		m.ingestRows.Observe(float64(rows))
	}
}

// OrphanBlob counts a blob that could not be removed after a failed insert.
func (m *Metrics) OrphanBlob() {
	if m == nil {
		return
	}
	m.orphanBlobs.Inc()
}

// OrphansCleaned counts blobs removed by the cleanup task.
func (m *Metrics) OrphansCleaned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orphansCleaned.Add(float64(n))
}

// AISummary counts an AI summary request.
func (m *Metrics) AISummary(outcome string) {
	if m == nil {
		return
	}
	m.aiSummaries.WithLabelValues(outcome).Inc()
}
