// Package operation binds operation IDs to their three pipeline stages.
//
// Each operation is defined once, with concrete types, by Define:
//
//	spec := operation.Define(
//	    "create-user",
//	    validateRequest,  // conversion.Converter[CreateUserRequest, CreateUserCommand]
//	    createUser,       // operation.Handler[CreateUserCommand, UserCreated]
//	    toResponse,       // conversion.Converter[UserCreated, CreateUserResponse]
//	)
//
// The engine drives every operation through the type-erased Spec interface.
// Spec checks the dynamic type of each value at the stage boundary and
// reports a mismatch as a MappingFailure, so no stage ever panics on a
// wrongly typed request.
package operation

import (
	"context"
	"fmt"
	"reflect"

	"github.com/layerkit/layerkit/pkg/backend"
	"github.com/layerkit/layerkit/pkg/conversion"
	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/middleware"
)

// Handler executes a domain command.
type Handler[Cmd core.Command, DRes core.DomainResult] interface {
	Handle(ctx context.Context, cmd Cmd, ec *middleware.ExecutionContext, callers *backend.Registry) core.Result[core.Failure, DRes]
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[Cmd core.Command, DRes core.DomainResult] func(ctx context.Context, cmd Cmd, ec *middleware.ExecutionContext, callers *backend.Registry) core.Result[core.Failure, DRes]

// Handle implements Handler.
func (f HandlerFunc[Cmd, DRes]) Handle(ctx context.Context, cmd Cmd, ec *middleware.ExecutionContext, callers *backend.Registry) core.Result[core.Failure, DRes] {
	return f(ctx, cmd, ec, callers)
}

// Signature lists the concrete types an operation is bound to.
type Signature struct {
	Request  reflect.Type
	Response reflect.Type
	Command  reflect.Type
	Result   reflect.Type
}

// String renders the signature as "Request -> Command -> Result -> Response".
func (s Signature) String() string {
	return fmt.Sprintf("%s -> %s -> %s -> %s", s.Request, s.Command, s.Result, s.Response)
}

// Spec is a type-erased operation binding.
type Spec interface {
	// ID returns the operation identifier.
	ID() core.OperationID

	// Signature returns the bound types.
	Signature() Signature

	// Validate checks that every stage is bound.
	Validate() error

	// ToCommand converts a client request into the operation's command.
	ToCommand(ctx context.Context, req core.ClientRequest) core.Result[core.Failure, core.Command]

	// Handle runs the handler on a command produced by ToCommand.
	Handle(ctx context.Context, cmd core.Command, ec *middleware.ExecutionContext, callers *backend.Registry) core.Result[core.Failure, core.DomainResult]

	// ToClient converts a handler result into the client response.
	ToClient(ctx context.Context, res core.DomainResult) core.Result[core.Failure, core.ClientResponse]
}

// binding is the typed Spec produced by Define.
type binding[CReq core.ClientRequest, CRes core.ClientResponse, Cmd core.Command, DRes core.DomainResult] struct {
	id              core.OperationID
	clientToCommand conversion.Converter[CReq, Cmd]
	handler         Handler[Cmd, DRes]
	resultToClient  conversion.Converter[DRes, CRes]
}

// Define creates the Spec for one operation.
func Define[CReq core.ClientRequest, CRes core.ClientResponse, Cmd core.Command, DRes core.DomainResult](
	id core.OperationID,
	clientToCommand conversion.Converter[CReq, Cmd],
	handler Handler[Cmd, DRes],
	resultToClient conversion.Converter[DRes, CRes],
) Spec {
	return &binding[CReq, CRes, Cmd, DRes]{
		id:              id,
		clientToCommand: clientToCommand,
		handler:         handler,
		resultToClient:  resultToClient,
	}
}

// ID implements Spec.
func (b *binding[CReq, CRes, Cmd, DRes]) ID() core.OperationID {
	return b.id
}

// Signature implements Spec.
func (b *binding[CReq, CRes, Cmd, DRes]) Signature() Signature {
	return Signature{
		Request:  reflect.TypeFor[CReq](),
		Response: reflect.TypeFor[CRes](),
		Command:  reflect.TypeFor[Cmd](),
		Result:   reflect.TypeFor[DRes](),
	}
}

// Validate implements Spec.
func (b *binding[CReq, CRes, Cmd, DRes]) Validate() error {
	switch {
	case b.id == "":
		return fmt.Errorf("operation ID is required")
	case b.clientToCommand == nil:
		return fmt.Errorf("operation %s has no client-to-command converter", b.id)
	case b.handler == nil:
		return fmt.Errorf("operation %s has no handler", b.id)
	case b.resultToClient == nil:
		return fmt.Errorf("operation %s has no result-to-client converter", b.id)
	}
	return nil
}

// ToCommand implements Spec.
func (b *binding[CReq, CRes, Cmd, DRes]) ToCommand(ctx context.Context, req core.ClientRequest) core.Result[core.Failure, core.Command] {
	typed, ok := req.(CReq)
	if !ok {
		return core.Err[core.Command](b.mismatch("request", reflect.TypeFor[CReq](), req))
	}
	return core.Map(b.clientToCommand.Convert(ctx, typed), func(cmd Cmd) core.Command { return cmd })
}

// Handle implements Spec.
func (b *binding[CReq, CRes, Cmd, DRes]) Handle(ctx context.Context, cmd core.Command, ec *middleware.ExecutionContext, callers *backend.Registry) core.Result[core.Failure, core.DomainResult] {
	typed, ok := cmd.(Cmd)
	if !ok {
		return core.Err[core.DomainResult](b.mismatch("command", reflect.TypeFor[Cmd](), cmd))
	}
	return core.Map(b.handler.Handle(ctx, typed, ec, callers), func(res DRes) core.DomainResult { return res })
}

// ToClient implements Spec.
func (b *binding[CReq, CRes, Cmd, DRes]) ToClient(ctx context.Context, res core.DomainResult) core.Result[core.Failure, core.ClientResponse] {
	typed, ok := res.(DRes)
	if !ok {
		return core.Err[core.ClientResponse](b.mismatch("result", reflect.TypeFor[DRes](), res))
	}
	return core.Map(b.resultToClient.Convert(ctx, typed), func(resp CRes) core.ClientResponse { return resp })
}

func (b *binding[CReq, CRes, Cmd, DRes]) mismatch(stage string, want reflect.Type, got any) core.MappingFailure {
	return core.MappingFailure{
		Message: fmt.Sprintf("operation %s expects %s %s, got %T", b.id, stage, want, got),
		Source:  got,
	}
}
