// Package telemetry provides observability for layerkit pipelines.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and execution events into one
// Telemetry value that plugs into the engine as middleware.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Wire it into an engine:
//
//	eng, err := engine.New(engine.Config{
//	    Operations:     ops,
//	    Inbound:        []middleware.Inbound{telemetry.InboundLogging(tel.Logger)},
//	    Execution:      []middleware.Execution{tel.ExecutionMiddleware()},
//	    Outbound:       []middleware.Outbound{telemetry.OutboundLogging(tel.Logger)},
//	    Logger:         tel.Logger.Zerolog(),
//	    OnStageFailure: tel.StageObserver(),
//	    Intercept:      tel.Interceptor(),
//	})
//
// The interceptor opens an "operation.pipeline" span per call. Execution and
// backend spans nest under it and stage failures are recorded on it as
// stage.failed events.
//
// Backend calls are instrumented by wrapping the transport handed to callers:
//
//	t := tel.Transport(transport.NewHTTPTransport())
//
// # Structured Logging
//
// Loggers carry the operation and correlation IDs of the execution they
// belong to:
//
//	logger := tel.Logger.NewComponentLogger("users").WithExecution(ec)
//	logger.Info("Creating user")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// ExecutionMiddleware opens an "operation.execute" span around each handler
// and Transport opens a client span per backend call. HTTPTransport injects
// the W3C trace context so backends join the trace.
//
// Supported exporters: "otlp" (gRPC collector), "stdout" (development) and
// "none" (spans are created but not exported).
//
// # Metrics
//
// Key metrics exposed (namespace defaults to "layerkit"):
//
//   - layerkit_executions_started_total{operation}
//   - layerkit_executions_completed_total{operation,outcome}
//   - layerkit_execution_duration_seconds{operation,outcome}
//   - layerkit_executions_in_flight
//   - layerkit_stage_failures_total{operation,stage,kind}
//   - layerkit_backend_calls_total{host,outcome}
//   - layerkit_backend_call_duration_seconds{host}
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics) once
// StartMetricsServer is called.
//
// # Events
//
// Execution events (execution.started, execution.completed,
// execution.failed, stage.failed) are published to subscribers:
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s %s\n", event.Type, event.CorrelationID)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// # Graceful Shutdown
//
// Always shut down telemetry to deliver buffered events and export pending
// spans:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	_ = tel.Shutdown(ctx)
package telemetry
