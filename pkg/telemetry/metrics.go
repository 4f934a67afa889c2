package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for completed executions and backend calls.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics provides Prometheus metrics for pipeline executions.
// A Metrics built from a disabled config records nothing.
type Metrics struct {
	config MetricsConfig

	// Execution metrics
	executionsStarted   *prometheus.CounterVec
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec
	executionsInFlight  prometheus.Gauge

	// Failure metrics
	stageFailures *prometheus.CounterVec

	// Backend metrics
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		executionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_started_total",
				Help:      "Total number of operation executions started",
			},
			[]string{"operation"},
		),
		executionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of operation executions completed",
			},
			[]string{"operation", "outcome"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of handler execution in seconds",
				Buckets:   buckets,
			},
			[]string{"operation", "outcome"},
		),
		executionsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executions_in_flight",
				Help:      "Current number of executing handlers",
			},
		),

		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of executions ended by a failing stage",
			},
			[]string{"operation", "stage", "kind"},
		),

		backendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Total number of backend calls",
			},
			[]string{"host", "outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Duration of backend calls in seconds",
				Buckets:   buckets,
			},
			[]string{"host"},
		),
	}

	registry.MustRegister(
		m.executionsStarted,
		m.executionsCompleted,
		m.executionDuration,
		m.executionsInFlight,
		m.stageFailures,
		m.backendCalls,
		m.backendDuration,
	)

	return m, nil
}

// Enabled reports whether the collector records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordExecutionStarted counts a handler execution for operation.
func (m *Metrics) RecordExecutionStarted(operation string) {
	if !m.Enabled() {
		return
	}
	m.executionsStarted.WithLabelValues(operation).Inc()
	m.executionsInFlight.Inc()
}

// RecordExecutionCompleted records the outcome and duration of a handler execution.
func (m *Metrics) RecordExecutionCompleted(operation, outcome string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.executionsCompleted.WithLabelValues(operation, outcome).Inc()
	m.executionDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
	m.executionsInFlight.Dec()
}

// RecordStageFailure counts an execution that stage ended with a failure of kind.
func (m *Metrics) RecordStageFailure(operation, stage, kind string) {
	if !m.Enabled() {
		return
	}
	m.stageFailures.WithLabelValues(operation, stage, kind).Inc()
}

// RecordBackendCall records a backend call to host with its outcome and duration.
func (m *Metrics) RecordBackendCall(host, outcome string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.backendCalls.WithLabelValues(host, outcome).Inc()
	m.backendDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics endpoint.
// Serve errors after startup are passed to onError when it is not nil.
func (m *Metrics) StartMetricsServer(onError func(error)) error {
	if !m.Enabled() {
		return nil
	}
	if m.server != nil {
		return fmt.Errorf("metrics server already started")
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(fmt.Errorf("metrics server error: %w", err))
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
