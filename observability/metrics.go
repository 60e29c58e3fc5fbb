package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Resolution metrics
	QueryRequestsTotal *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	QueryErrorsTotal   *prometheus.CounterVec

	// Formula metrics
	FormulaEvalTotal    *prometheus.CounterVec
	FormulaEvalDuration *prometheus.HistogramVec
	FormulaDepth        prometheus.Histogram

	// Catalog metrics
	CatalogReloadsTotal *prometheus.CounterVec
	CatalogEntries      *prometheus.GaugeVec

	// External API metrics (LLM parser)
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// depthBuckets cover the bounded formula recursion depth
var depthBuckets = []float64{0, 1, 2, 3, 4}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		QueryRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "query",
				Name:      "requests_total",
				Help:      "Total number of metric query requests by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "metric_agent",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Duration of metric query resolution in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"outcome"},
		),
		QueryErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "query",
				Name:      "errors_total",
				Help:      "Total number of resolution failures by error type",
			},
			[]string{"error_type"},
		),

		FormulaEvalTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "formula",
				Name:      "evaluations_total",
				Help:      "Total number of formula graph evaluations by status",
			},
			[]string{"status"},
		),
		FormulaEvalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "metric_agent",
				Subsystem: "formula",
				Name:      "duration_seconds",
				Help:      "Duration of formula graph evaluations in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"status"},
		),
		FormulaDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "metric_agent",
				Subsystem: "formula",
				Name:      "recursion_depth",
				Help:      "Depth reached while recursively resolving base metrics",
				Buckets:   depthBuckets,
			},
		),

		CatalogReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "catalog",
				Name:      "reloads_total",
				Help:      "Total number of catalog cache rebuilds by status",
			},
			[]string{"status"},
		),
		CatalogEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "metric_agent",
				Subsystem: "catalog",
				Name:      "entries",
				Help:      "Number of entries in the current catalog snapshot",
			},
			[]string{"kind"},
		),

		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "metric_agent",
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "metric_agent",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "metric_agent",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "metric_agent",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metric_agent",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// InitMetricsWithRegistry initializes the global metrics against a custom
// registry, for tests that need isolation from the default registerer
func InitMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	globalMetrics = NewMetrics(reg)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics(prometheus.NewRegistry())
	}
	return globalMetrics
}

// RecordQuery records a completed resolution with its outcome
// (direct, formula, clarification, error)
func (m *Metrics) RecordQuery(outcome string, duration time.Duration) {
	m.QueryRequestsTotal.WithLabelValues(outcome).Inc()
	m.QueryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordQueryError records a resolution failure by taxonomy type
func (m *Metrics) RecordQueryError(errorType string) {
	m.QueryErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordFormulaEval records a formula graph evaluation
func (m *Metrics) RecordFormulaEval(status string, duration time.Duration) {
	m.FormulaEvalTotal.WithLabelValues(status).Inc()
	m.FormulaEvalDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFormulaDepth records the recursion depth reached while resolving base metrics
func (m *Metrics) RecordFormulaDepth(depth int) {
	m.FormulaDepth.Observe(float64(depth))
}

// RecordCatalogReload records a catalog rebuild attempt
func (m *Metrics) RecordCatalogReload(status string) {
	m.CatalogReloadsTotal.WithLabelValues(status).Inc()
}

// SetCatalogEntries records the size of the current snapshot
func (m *Metrics) SetCatalogEntries(kind string, n int) {
	m.CatalogEntries.WithLabelValues(kind).Set(float64(n))
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordDBQuery records a database query with its duration
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCircuitBreakerState records a circuit breaker state change
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer measures elapsed time for observation helpers
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveExternalAPI records the elapsed time as an external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	GetMetrics().ExternalAPIDuration.WithLabelValues(service, operation).Observe(t.Elapsed().Seconds())
}
