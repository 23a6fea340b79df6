package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cad_nav"

// Metrics holds the Prometheus counters, histograms, and gauges for the navigation service.
type Metrics struct {
	// Destination search metrics.
	Search *prometheus.CounterVec // labels: path={local,geocoder,fallback}, outcome={found,empty,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: layer={lru,redis}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider

	// Routing metrics.
	RouteRequests    *prometheus.CounterVec // labels: outcome={success,error,stale}
	RouteAPIDuration prometheus.Histogram

	PositionUpdates     *prometheus.CounterVec // labels: outcome={recorded,duplicate,fallback,error}
	NarrationUtterances *prometheus.CounterVec // labels: outcome={spoken,interrupted,error,unavailable}

	NavigationActive prometheus.Gauge
	WSClients        prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Search: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Destination searches by resolution path and outcome.",
		}, []string{"path", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		RouteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Route computations by outcome.",
		}, []string{"outcome"}),
		RouteAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_api_duration_seconds",
			Help:      "Routing API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PositionUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_updates_total",
			Help:      "Position tracker updates by outcome.",
		}, []string{"outcome"}),
		NarrationUtterances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narration_utterances_total",
			Help:      "Narrator utterances by outcome.",
		}, []string{"outcome"}),
		NavigationActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "navigation_active",
			Help:      "1 while a navigation session is active, 0 otherwise.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected map clients.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Search,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.RouteRequests,
		m.RouteAPIDuration,
		m.PositionUpdates,
		m.NarrationUtterances,
		m.NavigationActive,
		m.WSClients,
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
