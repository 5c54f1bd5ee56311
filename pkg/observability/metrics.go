package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access-control metrics
	PermissionChecksTotal *prometheus.CounterVec // outcome: granted|unauthorized|forbidden|error
	RoleCacheHitsTotal    prometheus.Counter
	RoleCacheMissesTotal  prometheus.Counter

	// Cascade metrics
	CascadeRecomputesTotal  *prometheus.CounterVec // level: factor|project, outcome: updated|unchanged
	CascadeInvariantsTotal  *prometheus.CounterVec // level: factor|project
	ReconcilerRepairsTotal  *prometheus.CounterVec // level: factor|project
	ReconcilerRunsTotal     *prometheus.CounterVec // outcome: ok|error
	ReconcilerRunDuration   prometheus.Histogram

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acredia_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "acredia_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acredia_permission_checks_total",
				Help: "Total number of permission gate checks by outcome",
			},
			[]string{"outcome"},
		),
		RoleCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "acredia_role_cache_hits_total",
				Help: "Total number of role cache hits",
			},
		),
		RoleCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "acredia_role_cache_misses_total",
				Help: "Total number of role cache misses",
			},
		),
		CascadeRecomputesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acredia_cascade_recomputes_total",
				Help: "Derived-field recomputations by hierarchy level and outcome",
			},
			[]string{"level", "outcome"},
		),
		CascadeInvariantsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acredia_cascade_invariant_violations_total",
				Help: "Derived-field computations that produced an out-of-range value",
			},
			[]string{"level"},
		),
		ReconcilerRepairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acredia_reconciler_repairs_total",
				Help: "Derived fields repaired by the scheduled reconciler",
			},
			[]string{"level"},
		),
		ReconcilerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acredia_reconciler_runs_total",
				Help: "Reconciler runs by outcome",
			},
			[]string{"outcome"},
		),
		ReconcilerRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "acredia_reconciler_run_duration_seconds",
				Help:    "Duration of full reconciler sweeps",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "acredia_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "acredia_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.CascadeRecomputesTotal,
		m.CascadeInvariantsTotal,
		m.ReconcilerRepairsTotal,
		m.ReconcilerRunsTotal,
		m.ReconcilerRunDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler serving the given registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
