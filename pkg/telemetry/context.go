package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry combines logging, tracing, metrics and events for one process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// Option customizes how NewTelemetry builds its components.
type Option func(*options)

type options struct {
	logWriter io.Writer
	provider  *sdktrace.TracerProvider
}

// WithLogWriter sends log output to w instead of the configured output.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithTracerProvider uses provider instead of building one from the tracing config.
func WithTracerProvider(provider *sdktrace.TracerProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		logger *Logger
		err    error
	)
	if o.logWriter != nil {
		logger, err = NewLoggerWithWriter(cfg.Logging, o.logWriter)
	} else {
		logger, err = NewLogger(cfg.Logging)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.WithField("service", cfg.ServiceName)

	var tracer *Tracer
	if o.provider != nil {
		tracer = NewTracerWithProvider(o.provider, cfg.ServiceName, cfg.Tracing)
	} else {
		tracer, err = NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment, cfg.ResourceAttributes)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
// Server errors after startup are logged.
func (t *Telemetry) StartMetricsServer() error {
	logger := t.Logger.NewComponentLogger("metrics")
	return t.Metrics.StartMetricsServer(func(err error) {
		logger.WithError(err).Error("Metrics server stopped")
	})
}

// Flush forces all pending spans to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// Shutdown stops all telemetry components, flushing pending data.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
		t.Metrics.Shutdown(ctx),
	)
}
