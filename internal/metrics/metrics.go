package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	// Reconciliation metrics
	ReconcileRuns     *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	MatchesByType     *prometheus.CounterVec
	GuardSkips        *prometheus.CounterVec
	MappingsWritten   prometheus.Counter
	UnmatchedRefcodes prometheus.Counter

	// Dashboard metrics
	DashboardLatency   *prometheus.HistogramVec
	TransactionsScored prometheus.Counter

	// Rollup cache metrics
	RollupCacheHits   prometheus.Counter
	RollupCacheMisses prometheus.Counter

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
	RateLimitHits *prometheus.CounterVec

	// System metrics
	DBConnections *prometheus.GaugeVec
	RedisLatency  *prometheus.HistogramVec
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		// Reconciliation metrics
		ReconcileRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_runs_total",
				Help:      "Total reconciliation runs by outcome",
			},
			[]string{"status"},
		),
		ReconcileDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Reconciliation run duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
		),
		MatchesByType: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribution_matches_total",
				Help:      "Refcode matches by match type",
			},
			[]string{"match_type"},
		),
		GuardSkips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribution_guard_skips_total",
				Help:      "Mapping writes skipped by the guard",
			},
			[]string{"reason"},
		),
		MappingsWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribution_mappings_written_total",
				Help:      "Attribution mappings created or superseded",
			},
		),
		UnmatchedRefcodes: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribution_unmatched_refcodes_total",
				Help:      "Refcodes no matcher tier could resolve",
			},
		),

		// Dashboard metrics
		DashboardLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dashboard_compute_seconds",
				Help:      "Dashboard metric computation latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"filtered"},
		),
		TransactionsScored: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_scored_total",
				Help:      "Transactions passed through metric aggregation",
			},
		),

		// Rollup cache metrics
		RollupCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollup_cache_hits_total",
				Help:      "Daily rollup reads served from Redis",
			},
		),
		RollupCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollup_cache_misses_total",
				Help:      "Daily rollup reads recomputed from storage",
			},
		),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		HTTPLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"path"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint", "ip"},
		),

		// System metrics
		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		RedisLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_latency_seconds",
				Help:      "Redis operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordReconcileRun records a completed reconciliation run.
func (m *Metrics) RecordReconcileRun(status string, duration time.Duration) {
	m.ReconcileRuns.WithLabelValues(status).Inc()
	m.ReconcileDuration.Observe(duration.Seconds())
}

// RecordMatch records a resolved refcode by match type.
func (m *Metrics) RecordMatch(matchType string) {
	m.MatchesByType.WithLabelValues(matchType).Inc()
}

// RecordGuardSkip records a mapping write the guard refused.
func (m *Metrics) RecordGuardSkip(reason string) {
	m.GuardSkips.WithLabelValues(reason).Inc()
}

// RecordMappingWritten records a mapping create or supersede.
func (m *Metrics) RecordMappingWritten() {
	m.MappingsWritten.Inc()
}

// RecordUnmatched records a refcode that resolved to nothing.
func (m *Metrics) RecordUnmatched() {
	m.UnmatchedRefcodes.Inc()
}

// RecordDashboardCompute records a dashboard aggregation pass.
func (m *Metrics) RecordDashboardCompute(filtered bool, txCount int, latency time.Duration) {
	label := "false"
	if filtered {
		label = "true"
	}
	m.DashboardLatency.WithLabelValues(label).Observe(latency.Seconds())
	m.TransactionsScored.Add(float64(txCount))
}

// RecordRollupCacheHit records a rollup read served from cache.
func (m *Metrics) RecordRollupCacheHit() {
	m.RollupCacheHits.Inc()
}

// RecordRollupCacheMiss records a rollup read that fell through to storage.
func (m *Metrics) RecordRollupCacheMiss() {
	m.RollupCacheMisses.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(path, method, status string, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(path, method, status).Inc()
	m.HTTPLatency.WithLabelValues(path).Observe(latency.Seconds())
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint, ip string) {
	m.RateLimitHits.WithLabelValues(endpoint, ip).Inc()
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}
