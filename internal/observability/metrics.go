// Package observability defines the Prometheus metrics of the map service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quakemap"

// Metrics holds the Prometheus counters and histograms for feeds, the render
// pipeline and the tile cache.
type Metrics struct {
	// Feed metrics.
	FeedRequests *prometheus.CounterVec   // labels: feed, outcome={success,error}
	FeedDuration *prometheus.HistogramVec // labels: feed
	FeedFeatures *prometheus.GaugeVec     // labels: feed

	// Pipeline metrics.
	PipelineRuns     *prometheus.CounterVec // labels: outcome={complete,partial}
	PipelineDuration prometheus.Histogram
	SkippedFeatures  prometheus.Counter

	// Tile cache metrics.
	TileRequests *prometheus.CounterVec // labels: layer, result={hit,miss,fallback}
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Feed fetches by feed and outcome, counted once per fetch regardless of retries.",
		}, []string{"feed", "outcome"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "Duration of a feed fetch including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feed"}),
		FeedFeatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_features",
			Help:      "Number of features returned by the last successful fetch.",
		}, []string{"feed"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Snapshot builds by outcome.",
		}, []string{"outcome"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a complete snapshot build.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SkippedFeatures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_features_total",
			Help:      "Seismic features dropped because they had no usable point geometry.",
		}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "Tile requests by layer and cache result.",
		}, []string{"layer", "result"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedRequests,
		m.FeedDuration,
		m.FeedFeatures,
		m.PipelineRuns,
		m.PipelineDuration,
		m.SkippedFeatures,
		m.TileRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
