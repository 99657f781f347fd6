package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dispatch_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the polling pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Cycle metrics.
	Cycles             *prometheus.CounterVec // labels: outcome={committed,fetch_failed,parse_failed,reconcile_failed}
	CycleDuration      prometheus.Histogram
	LastCommittedCycle prometheus.Gauge

	// Feed metrics.
	FetchAttempts *prometheus.CounterVec // labels: outcome={success,error}
	RowsParsed    prometheus.Counter
	RowsDropped   prometheus.Counter

	// Lifecycle metrics.
	Transitions      *prometheus.CounterVec // labels: action={insert,update,resolve,suppress}
	ChangesPublished prometheus.Counter
	PublishErrors    prometheus.Counter

	// Geocoding metrics.
	GeocodeLookups     *prometheus.CounterVec   // labels: outcome={resolved,unresolved,error}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeFallback    *prometheus.CounterVec   // labels: outcome={success,error,empty,low_relevance}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.PipelineRunning,
		m.Cycles,
		m.CycleDuration,
		m.LastCommittedCycle,
		m.FetchAttempts,
		m.RowsParsed,
		m.RowsDropped,
		m.Transitions,
		m.ChangesPublished,
		m.PublishErrors,
		m.GeocodeLookups,
		m.GeocodeCache,
		m.GeocodeFallback,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
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
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the poll scheduler is active, 0 when shut down."),
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      help("Polling cycles by outcome."),
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      help("Duration of a complete fetch-parse-reconcile cycle."),
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}),
		LastCommittedCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_committed_cycle_timestamp_seconds",
			Help:      help("Unix time of the last committed cycle."),
		}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      help("Feed page fetch attempts by outcome."),
		}, []string{"outcome"}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      help("Feed rows accepted by the parser."),
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      help("Feed rows discarded for having the wrong cell count."),
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_transitions_total",
			Help:      help("Committed incident lifecycle actions."),
		}, []string{"action"}),
		ChangesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_published_total",
			Help:      help("Lifecycle changes written to the change feed topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_publish_errors_total",
			Help:      help("Failed change feed writes."),
		}),
		GeocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      help("Intersection pair resolutions by outcome."),
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Geocode cache lookups by result."),
		}, []string{"result"}),
		GeocodeFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_fallback_total",
			Help:      help("Mapbox fallback lookups by outcome."),
		}, []string{"outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      help("Mapbox API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_fallback_enabled",
			Help:      help("1 when the Mapbox fallback is enabled, 0 otherwise."),
		}),
	}
}
