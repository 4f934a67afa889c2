package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/layerkit/layerkit/pkg/backend"
	"github.com/layerkit/layerkit/pkg/conversion"
	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/middleware"
	"github.com/layerkit/layerkit/pkg/operation"
)

// Engine runs client requests through registered operations.
// It is safe for concurrent use once New returns.
type Engine struct {
	conversions *conversion.Registry
	operations  *operation.Registry
	callers     *backend.Registry

	inbound   *middleware.Chain[core.ClientRequest, core.ClientRequest]
	execution *middleware.Chain[core.Command, middleware.HandlerResult]
	outbound  *middleware.Chain[core.ClientResponse, core.ClientResponse]

	logger         zerolog.Logger
	onStageFailure StageObserver
	intercept      Interceptor
}

// New assembles an engine from cfg and freezes its registries.
func New(cfg Config) (*Engine, error) {
	var (
		convOpts []conversion.Option
		opOpts   []operation.Option
		callOpts []backend.Option
	)
	if cfg.AllowOverwrite {
		convOpts = append(convOpts, conversion.WithOverwrite())
		opOpts = append(opOpts, operation.WithOverwrite())
		callOpts = append(callOpts, backend.WithOverwrite())
	}

	conversions := cfg.Conversions
	switch {
	case conversions == nil:
		conversions = conversion.NewRegistry(convOpts...)
	case cfg.AllowOverwrite:
		conversions.AllowOverwrite()
	}

	e := &Engine{
		conversions:    conversions,
		operations:     operation.NewRegistry(opOpts...),
		callers:        backend.NewRegistry(callOpts...),
		inbound:        middleware.NewChain(cfg.Inbound...),
		execution:      middleware.NewChain(cfg.Execution...),
		outbound:       middleware.NewChain(cfg.Outbound...),
		logger:         cfg.Logger.With().Str("component", "engine").Logger(),
		onStageFailure: cfg.OnStageFailure,
		intercept:      cfg.Intercept,
	}

	for _, reg := range cfg.Converters {
		if err := reg.Apply(e.conversions); err != nil {
			return nil, fmt.Errorf("failed to register converter: %w", err)
		}
	}

	for _, spec := range cfg.Operations {
		if err := e.operations.Register(spec); err != nil {
			return nil, fmt.Errorf("failed to register operation: %w", err)
		}
	}

	for _, reg := range cfg.BackendCallers {
		if err := reg.Apply(e.callers); err != nil {
			return nil, fmt.Errorf("failed to register backend caller: %w", err)
		}
	}

	e.conversions.Freeze()
	e.operations.Freeze()
	e.callers.Freeze()

	e.logger.Debug().
		Int("operations", e.operations.Len()).
		Int("converters", e.conversions.Len()).
		Int("backend_callers", e.callers.Len()).
		Int("inbound_middleware", e.inbound.Len()).
		Int("execution_middleware", e.execution.Len()).
		Int("outbound_middleware", e.outbound.Len()).
		Msg("Engine assembled")

	return e, nil
}

// Execute runs req through operation id.
//
// The first failing stage ends the call: its failure is returned verbatim and
// no later converter or middleware runs. An unknown id fails before any
// middleware runs.
func (e *Engine) Execute(ctx context.Context, id core.OperationID, req core.ClientRequest) core.Result[core.Failure, core.ClientResponse] {
	ec := middleware.NewExecutionContext(id)
	ctx = middleware.WithExecutionContext(ctx, ec)

	run := func(ctx context.Context) core.Result[core.Failure, core.ClientResponse] {
		return e.run(ctx, ec, req)
	}
	if e.intercept == nil {
		return run(ctx)
	}
	return e.intercept(ctx, ec, run)
}

// run executes the pipeline stages for one call.
func (e *Engine) run(ctx context.Context, ec *middleware.ExecutionContext, req core.ClientRequest) core.Result[core.Failure, core.ClientResponse] {
	id := ec.OperationID

	spec, ok := e.operations.Get(id)
	if !ok {
		return e.fail(ctx, ec, StageResolve, core.MappingFailure{
			Message: fmt.Sprintf("Operation not found: %s", id),
			Source:  req,
		})
	}

	processed := e.inbound.Execute(ctx, req, middleware.Identity[core.ClientRequest])

	converted := spec.ToCommand(ctx, processed)
	cmd, ok := converted.Value()
	if !ok {
		f, _ := converted.Failure()
		return e.fail(ctx, ec, StageClientToCommand, f)
	}

	handled := e.execution.Execute(ctx, cmd, func(ctx context.Context, cmd core.Command) middleware.HandlerResult {
		return spec.Handle(ctx, cmd, ec, e.callers)
	})
	result, ok := handled.Value()
	if !ok {
		f, _ := handled.Failure()
		return e.fail(ctx, ec, StageExecution, f)
	}

	responded := spec.ToClient(ctx, result)
	resp, ok := responded.Value()
	if !ok {
		f, _ := responded.Failure()
		return e.fail(ctx, ec, StageResultToClient, f)
	}

	return core.Ok(e.outbound.Execute(ctx, resp, middleware.Identity[core.ClientResponse]))
}

// fail records a stage failure and wraps it as the call's result.
func (e *Engine) fail(ctx context.Context, ec *middleware.ExecutionContext, stage Stage, f core.Failure) core.Result[core.Failure, core.ClientResponse] {
	if f == nil {
		f = core.MappingFailure{Message: fmt.Sprintf("stage %s produced no value", stage)}
	}

	e.logger.Debug().
		Str("operation_id", ec.OperationID.String()).
		Str("correlation_id", ec.CorrelationID).
		Str("stage", stage.String()).
		Str("failure_kind", string(f.Kind())).
		Err(f).
		Msg("Execution failed")

	if e.onStageFailure != nil {
		e.onStageFailure(ctx, ec, stage, f)
	}
	return core.Err[core.ClientResponse](f)
}

// Conversions returns the conversion registry. It is frozen.
func (e *Engine) Conversions() *conversion.Registry {
	return e.conversions
}

// Callers returns the backend caller registry. It is frozen.
func (e *Engine) Callers() *backend.Registry {
	return e.callers
}

// Operations returns the registered operation IDs in sorted order.
func (e *Engine) Operations() []core.OperationID {
	return e.operations.IDs()
}

// Operation returns the spec registered for id.
func (e *Engine) Operation(id core.OperationID) (operation.Spec, bool) {
	return e.operations.Get(id)
}

// Execute runs req through operation id on e and narrows the response to CRes.
func Execute[CRes core.ClientResponse](ctx context.Context, e *Engine, id core.OperationID, req core.ClientRequest) core.Result[core.Failure, CRes] {
	return core.FlatMap(e.Execute(ctx, id, req), func(resp core.ClientResponse) core.Result[core.Failure, CRes] {
		typed, ok := resp.(CRes)
		if !ok {
			return core.Err[CRes](core.MappingFailure{
				Message: fmt.Sprintf("operation %s returned %T, expected %s", id, resp, reflect.TypeFor[CRes]()),
				Source:  resp,
			})
		}
		return core.Ok(typed)
	})
}
