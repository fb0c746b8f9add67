// Package prometheus provides a Prometheus implementation of the metrics interface.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rohan-js/automated-api-testing-framework/metrics"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	// Request metrics
	requestsTotal      *prometheus.CounterVec
	requestFailedTotal *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec

	// Snapshot metrics
	snapshotsTotal      prometheus.Counter
	snapshotFailedTotal *prometheus.CounterVec
	snapshotDuration    prometheus.Histogram

	// Check metrics
	invariantsTotal *prometheus.CounterVec
	fuzzCasesTotal  *prometheus.CounterVec
	retryCallsTotal *prometheus.CounterVec

	// Phase metrics
	phaseDuration *prometheus.HistogramVec
}

var _ metrics.Metrics = (*PrometheusMetrics)(nil)

// Config holds configuration for PrometheusMetrics.
type Config struct {
	// Namespace is the prefix for all metrics (e.g., "apitest")
	Namespace string
	// Subsystem is an optional subsystem name
	Subsystem string
	// Registry is the Prometheus registry to use. If nil, the default registry is used.
	Registry prometheus.Registerer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace: "apitest",
		Subsystem: "",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// New creates a new PrometheusMetrics instance with the given configuration.
func New(cfg Config) *PrometheusMetrics {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(cfg.Registry)

	return &PrometheusMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP exchanges issued against the target",
		}, []string{"endpoint", "method", "status"}),

		requestFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_failed_total",
			Help:      "Total number of exchanges that failed before a response was received",
		}, []string{"endpoint", "method", "reason"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP exchange duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"endpoint", "method"}),

		snapshotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshots_total",
			Help:      "Total number of state snapshots captured",
		}),

		snapshotFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_failed_total",
			Help:      "Total number of state captures that failed",
		}, []string{"reason"}),

		snapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_duration_seconds",
			Help:      "State capture duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),

		invariantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "invariants_total",
			Help:      "Total number of invariant checks evaluated",
		}, []string{"invariant", "result"}),

		fuzzCasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fuzz_cases_total",
			Help:      "Total number of fuzz cases executed",
		}, []string{"case", "result"}),

		retryCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "retry_calls_total",
			Help:      "Total number of calls issued by retry simulations",
		}, []string{"endpoint"}),

		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "phase_duration_seconds",
			Help:      "Suite phase duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"phase"}),
	}
}

// RequestCompleted records a finished HTTP exchange.
func (m *PrometheusMetrics) RequestCompleted(endpoint, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// RequestFailed records an exchange that produced no response.
func (m *PrometheusMetrics) RequestFailed(endpoint, method, reason string) {
	m.requestFailedTotal.WithLabelValues(endpoint, method, reason).Inc()
}

// SnapshotCaptured records a successful state capture.
func (m *PrometheusMetrics) SnapshotCaptured(duration time.Duration) {
	m.snapshotsTotal.Inc()
	m.snapshotDuration.Observe(duration.Seconds())
}

// SnapshotFailed records a failed state capture.
func (m *PrometheusMetrics) SnapshotFailed(reason string) {
	m.snapshotFailedTotal.WithLabelValues(reason).Inc()
}

// InvariantChecked records an invariant verdict.
func (m *PrometheusMetrics) InvariantChecked(name string, passed bool) {
	m.invariantsTotal.WithLabelValues(name, resultLabel(passed)).Inc()
}

// FuzzCaseCompleted records a finished fuzz case.
func (m *PrometheusMetrics) FuzzCaseCompleted(caseName string, passed bool) {
	m.fuzzCasesTotal.WithLabelValues(caseName, resultLabel(passed)).Inc()
}

// RetrySimulated records the calls issued by one retry simulation.
func (m *PrometheusMetrics) RetrySimulated(endpoint string, calls int) {
	m.retryCallsTotal.WithLabelValues(endpoint).Add(float64(calls))
}

// PhaseCompleted records the duration of a finished phase.
func (m *PrometheusMetrics) PhaseCompleted(phase string, duration time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

func resultLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
