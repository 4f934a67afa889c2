package telemetry

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/trace"

	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/engine"
	"github.com/layerkit/layerkit/pkg/middleware"
	"github.com/layerkit/layerkit/pkg/transport"
)

// InboundLogging logs every client request entering the pipeline.
func InboundLogging(l *Logger) middleware.Inbound {
	logger := l.NewComponentLogger("inbound")
	return func(ctx context.Context, req core.ClientRequest, next middleware.Next[core.ClientRequest, core.ClientRequest]) core.ClientRequest {
		ec, _ := middleware.ExecutionContextFrom(ctx)
		logger.WithExecution(ec).zlog.Debug().
			Str("request_type", fmt.Sprintf("%T", req)).
			Msg("Request received")
		return next(ctx, req)
	}
}

// OutboundLogging logs every client response leaving the pipeline.
func OutboundLogging(l *Logger) middleware.Outbound {
	logger := l.NewComponentLogger("outbound")
	return func(ctx context.Context, resp core.ClientResponse, next middleware.Next[core.ClientResponse, core.ClientResponse]) core.ClientResponse {
		ec, _ := middleware.ExecutionContextFrom(ctx)
		log := logger.WithExecution(ec)
		out := next(ctx, resp)
		event := log.zlog.Debug().Str("response_type", fmt.Sprintf("%T", out))
		if ec != nil {
			event = event.Dur("took", ec.Elapsed())
		}
		event.Msg("Response sent")
		return out
	}
}

// ExecutionMiddleware instruments every handler execution with a span,
// execution metrics, execution events and a completion log line.
func (t *Telemetry) ExecutionMiddleware() middleware.Execution {
	logger := t.Logger.NewComponentLogger("execution")
	return func(ctx context.Context, cmd core.Command, next middleware.Next[core.Command, middleware.HandlerResult]) middleware.HandlerResult {
		ec, _ := middleware.ExecutionContextFrom(ctx)
		opID, corrID := executionIDs(ec)
		log := logger.WithExecution(ec)

		ctx, span := t.Tracer.StartExecutionSpan(ctx, opID, corrID)
		defer span.End()
		ctx = log.WithContext(ctx)

		t.Metrics.RecordExecutionStarted(opID)
		t.publish(log, t.Events.PublishExecutionStarted(opID, corrID))

		timer := NewTimer()
		res := next(ctx, cmd)
		took := timer.Duration()

		f, failed := res.Failure()
		if !failed {
			RecordSuccess(span)
			t.Metrics.RecordExecutionCompleted(opID, OutcomeSuccess, took)
			t.publish(log, t.Events.PublishExecutionCompleted(opID, corrID, took))
			log.zlog.Info().Dur("took", took).Msg("Handler completed")
			return res
		}

		kind := failureKind(f)
		span.SetAttributes(AttrFailureKind.String(kind))
		RecordError(span, f)
		t.Metrics.RecordExecutionCompleted(opID, OutcomeFailure, took)
		t.publish(log, t.Events.PublishExecutionFailed(opID, corrID, kind, failureMessage(f)))
		log.zlog.Warn().
			Str("failure_kind", kind).
			Str("reason", failureMessage(f)).
			Dur("took", took).
			Msg("Handler failed")
		return res
	}
}

// Interceptor returns an engine.Interceptor that opens a pipeline span around
// every call. Execution and backend spans nest under it, and StageObserver
// records the failing stage on it.
func (t *Telemetry) Interceptor() engine.Interceptor {
	return func(ctx context.Context, ec *middleware.ExecutionContext, run func(context.Context) core.Result[core.Failure, core.ClientResponse]) core.Result[core.Failure, core.ClientResponse] {
		opID, corrID := executionIDs(ec)
		ctx, span := t.Tracer.StartPipelineSpan(ctx, opID, corrID)
		defer span.End()

		res := run(ctx)
		if f, failed := res.Failure(); failed {
			span.SetAttributes(AttrFailureKind.String(failureKind(f)))
			RecordError(span, f)
		} else {
			RecordSuccess(span)
		}
		return res
	}
}

// StageObserver returns an engine.StageObserver that counts and reports the
// stage that ended each failed execution. The stage is added as an event to
// the span on ctx, which is the pipeline span when Interceptor is installed.
func (t *Telemetry) StageObserver() engine.StageObserver {
	logger := t.Logger.NewComponentLogger("engine")
	return func(ctx context.Context, ec *middleware.ExecutionContext, stage engine.Stage, f core.Failure) {
		opID, corrID := executionIDs(ec)
		kind := failureKind(f)
		log := logger.WithExecution(ec)

		t.Metrics.RecordStageFailure(opID, stage.String(), kind)
		trace.SpanFromContext(ctx).AddEvent(EventTypeStageFailed, trace.WithAttributes(
			AttrStage.String(stage.String()),
			AttrFailureKind.String(kind),
		))
		t.publish(log, t.Events.PublishStageFailed(opID, corrID, stage.String(), kind, failureMessage(f)))

		log.zlog.Info().
			Str("stage", stage.String()).
			Str("failure_kind", kind).
			Str("reason", failureMessage(f)).
			Msg("Execution ended by failing stage")
	}
}

// Transport wraps next so every backend call gets a client span and backend
// call metrics.
func (t *Telemetry) Transport(next transport.Transport) transport.Transport {
	logger := t.Logger.NewComponentLogger("backend")
	return transport.TransportFunc(func(ctx context.Context, ep transport.Endpoint, request any, response any) core.Failure {
		host := endpointHost(ep)

		ctx, span := t.Tracer.StartBackendSpan(ctx, host, string(ep.Method), ep.Path)
		defer span.End()

		timer := NewTimer()
		f := next.Do(ctx, ep, request, response)
		took := timer.Duration()

		if f == nil {
			RecordSuccess(span)
			t.Metrics.RecordBackendCall(host, OutcomeSuccess, took)
			return nil
		}

		if bf, ok := f.(core.BackendFailure); ok {
			span.SetAttributes(AttrBackendStatus.Int(bf.StatusCode))
		}
		span.SetAttributes(AttrFailureKind.String(failureKind(f)))
		RecordError(span, f)
		t.Metrics.RecordBackendCall(host, OutcomeFailure, took)

		logger.zlog.Debug().
			Str("host", host).
			Str("endpoint", ep.String()).
			Str("failure_kind", failureKind(f)).
			Dur("took", took).
			Msg("Backend call failed")
		return f
	})
}

func (t *Telemetry) publish(log *Logger, err error) {
	if err != nil {
		log.zlog.Warn().Err(err).Msg("Failed to publish event")
	}
}

func executionIDs(ec *middleware.ExecutionContext) (operationID, correlationID string) {
	if ec == nil {
		return "unknown", ""
	}
	return ec.OperationID.String(), ec.CorrelationID
}

func failureKind(f core.Failure) string {
	if f == nil {
		return "unknown"
	}
	return string(f.Kind())
}

func failureMessage(f core.Failure) string {
	if f == nil {
		return "no failure reported"
	}
	return f.Error()
}

// endpointHost returns the host part of a resolved endpoint path.
func endpointHost(ep transport.Endpoint) string {
	u, err := url.Parse(ep.Path)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
