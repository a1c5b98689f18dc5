package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "burnscan"

// Metrics holds the Prometheus counters, histograms, and gauges for burned-area analyses.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec   // labels: variant, outcome={succeeded,failed}
	StageDuration  *prometheus.HistogramVec // labels: stage
	RunDuration    prometheus.Histogram
	RunsInProgress prometheus.Gauge

	ExtractedImages    prometheus.Counter
	BurnedAreaHectares prometheus.Histogram

	// Catalog metrics.
	CatalogRequests *prometheus.CounterVec // labels: outcome={success,error}
	CatalogCache    *prometheus.CounterVec // labels: result={hit,miss}

	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.RunsTotal,
		m.StageDuration,
		m.RunDuration,
		m.RunsInProgress,
		m.ExtractedImages,
		m.BurnedAreaHectares,
		m.CatalogRequests,
		m.CatalogCache,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      help("Completed analyses by variant and outcome."),
		}, []string{"variant", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      help("Duration of each pipeline stage."),
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      help("Duration of a complete analysis."),
			Buckets:   []float64{1, 10, 30, 60, 180, 600, 1800, 3600},
		}),
		RunsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_progress",
			Help:      help("Analyses currently executing."),
		}),
		ExtractedImages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_images_total",
			Help:      help("Band images extracted from product archives."),
		}),
		BurnedAreaHectares: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "burned_area_hectares",
			Help:      help("Burned area detected per successful analysis."),
			Buckets:   []float64{1, 10, 100, 500, 1000, 5000, 10000, 50000},
		}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      help("Product catalog requests by outcome."),
		}, []string{"outcome"}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      help("Catalog search cache lookups by result."),
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      help("Analysis completion events by outcome."),
		}, []string{"outcome"}),
	}
}
