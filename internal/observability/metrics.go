package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	// Feed metrics.
	FeedFetches       *prometheus.CounterVec   // labels: feed={events,boundaries}, outcome={success,error}
	FeedFetchDuration *prometheus.HistogramVec // labels: feed
	SkippedFeatures   *prometheus.CounterVec   // labels: feed

	// Render metrics.
	EventsRendered     prometheus.Gauge
	BoundariesRendered prometheus.Gauge
	RefreshDuration    prometheus.Histogram
	SchedulerRunning   prometheus.Gauge

	// Tile proxy metrics.
	TileRequests *prometheus.CounterVec // labels: layer, result={hit,miss,error}

	// Sinks and enrichment.
	MarkersPublished prometheus.Counter
	GeocodeRequests  *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.SkippedFeatures,
		m.EventsRendered,
		m.BoundariesRendered,
		m.RefreshDuration,
		m.SchedulerRunning,
		m.TileRequests,
		m.MarkersPublished,
		m.GeocodeRequests,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "feed_fetch_total",
			Help:      "Feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quakemap",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a feed fetch including decode.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feed"}),
		SkippedFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "skipped_features_total",
			Help:      "Features dropped by the parser because of missing or invalid geometry.",
		}, []string{"feed"}),
		EventsRendered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakemap",
			Name:      "events_rendered",
			Help:      "Markers in the current earthquake layer.",
		}),
		BoundariesRendered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakemap",
			Name:      "boundaries_rendered",
			Help:      "Paths in the current plate boundary layer.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quakemap",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a full fetch-and-compose refresh.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakemap",
			Name:      "scheduler_running",
			Help:      "1 while the refresh scheduler is active, 0 after shutdown.",
		}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "tile_requests_total",
			Help:      "Base layer tile requests by layer and cache result.",
		}, []string{"layer", "result"}),
		MarkersPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "markers_published_total",
			Help:      "Styled markers written to the Kafka sink.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakemap",
			Name:      "geocode_enabled",
			Help:      "1 when place enrichment is enabled, 0 otherwise.",
		}),
	}
}
