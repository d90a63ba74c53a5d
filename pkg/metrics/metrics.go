package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Evaluation metrics
	FlagEvaluations         *prometheus.CounterVec
	ExperimentAssignments   *prometheus.CounterVec
	AssignmentUpsertFailure prometheus.Counter
	EvaluationLogFailures   prometheus.Counter
	EvaluationLogsPruned    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	StorageErrors   *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with all metrics registered on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),

		// Evaluation metrics
		FlagEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flag_evaluations_total",
				Help: "Total number of flag evaluations by outcome",
			},
			[]string{"reason"},
		),
		ExperimentAssignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "experiment_assignments_total",
				Help: "Total number of experiment variants served",
			},
			[]string{"source"}, // existing, new
		),
		AssignmentUpsertFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "assignment_upsert_failures_total",
			Help: "Total number of failed assignment batch upserts",
		}),
		EvaluationLogFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_log_failures_total",
			Help: "Total number of evaluation log writes that failed",
		}),
		EvaluationLogsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_logs_pruned_total",
			Help: "Total number of evaluation log rows removed by retention",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of failed storage operations",
			},
			[]string{"operation"},
		),

		// Cache metrics
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw URL

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// The Record* helpers are safe on a nil *Metrics so services can run without
// instrumentation.

// RecordFlagEvaluation increments the evaluation counter for reason
func (m *Metrics) RecordFlagEvaluation(reason string) {
	if m == nil {
		return
	}
	m.FlagEvaluations.WithLabelValues(reason).Inc()
}

// RecordAssignment increments served assignments by source (existing or new)
func (m *Metrics) RecordAssignment(source string) {
	if m == nil {
		return
	}
	m.ExperimentAssignments.WithLabelValues(source).Inc()
}

// RecordAssignmentUpsertFailure increments failed upserts
func (m *Metrics) RecordAssignmentUpsertFailure() {
	if m == nil {
		return
	}
	m.AssignmentUpsertFailure.Inc()
}

// RecordEvaluationLogFailure increments failed audit writes
func (m *Metrics) RecordEvaluationLogFailure() {
	if m == nil {
		return
	}
	m.EvaluationLogFailures.Inc()
}

// RecordEvaluationLogsPruned adds n pruned audit rows
func (m *Metrics) RecordEvaluationLogsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.EvaluationLogsPruned.Add(float64(n))
}

// RecordDBQuery records database query duration and failures
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.StorageErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
