package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	markerRebuilds      prometheus.Counter
	markersRendered     prometheus.Gauge
	geocodeRequests     *prometheus.CounterVec
	syncRunsTotal       prometheus.Counter
	syncRunDuration     prometheus.Histogram
	mapSessions         prometheus.Gauge
	sessionsEvicted     *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP, map, geocode and sync
// metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by propmap-api",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "propmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by propmap-api",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	markerRebuilds := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "propmap",
		Name:      "marker_rebuilds_total",
		Help:      "Number of marker layer rebuilds across map sessions",
	})

	markersRendered := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "propmap",
		Name:      "markers_rendered",
		Help:      "Markers produced by the most recent marker layer rebuild",
	})

	geocodeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propmap",
		Name:      "geocode_requests_total",
		Help:      "Geocoding lookups by outcome",
	}, []string{"result"})

	syncRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "propmap",
		Name:      "sync_runs_total",
		Help:      "Total number of backend property sync runs",
	})

	syncRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "propmap",
		Name:      "sync_run_duration_seconds",
		Help:      "Duration of backend property sync runs",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	mapSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "propmap",
		Name:      "map_sessions",
		Help:      "Map sessions currently mounted",
	})

	sessionsEvicted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propmap",
		Name:      "map_sessions_evicted_total",
		Help:      "Map sessions removed without an explicit delete, by reason",
	}, []string{"reason"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		markerRebuilds,
		markersRendered,
		geocodeRequests,
		syncRunsTotal,
		syncRunDuration,
		mapSessions,
		sessionsEvicted,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		markerRebuilds:      markerRebuilds,
		markersRendered:     markersRendered,
		geocodeRequests:     geocodeRequests,
		syncRunsTotal:       syncRunsTotal,
		syncRunDuration:     syncRunDuration,
		mapSessions:         mapSessions,
		sessionsEvicted:     sessionsEvicted,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveMarkerRebuild records one marker layer rebuild producing n markers.
func (m *Metrics) ObserveMarkerRebuild(n int) {
	if m == nil {
		return
	}
	m.markerRebuilds.Inc()
	m.markersRendered.Set(float64(n))
}

// IncGeocode counts a geocoding lookup. result is one of hit, miss, error
// or empty.
func (m *Metrics) IncGeocode(result string) {
	if m == nil {
		return
	}
	m.geocodeRequests.WithLabelValues(result).Inc()
}

// IncSyncRun increments the sync run counter.
func (m *Metrics) IncSyncRun() {
	if m == nil {
		return
	}
	m.syncRunsTotal.Inc()
}

// ObserveSyncRunDuration observes a sync run duration.
func (m *Metrics) ObserveSyncRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.syncRunDuration.Observe(duration.Seconds())
}

// SetMapSessions records the number of mounted map sessions.
func (m *Metrics) SetMapSessions(n int) {
	if m == nil {
		return
	}
	m.mapSessions.Set(float64(n))
}

// IncSessionEvicted counts a session removed for reason (idle or shutdown).
func (m *Metrics) IncSessionEvicted(reason string) {
	if m == nil {
		return
	}
	m.sessionsEvicted.WithLabelValues(reason).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
