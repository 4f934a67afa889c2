package engine

import (
	"github.com/rs/zerolog"

	"github.com/layerkit/layerkit/pkg/backend"
	"github.com/layerkit/layerkit/pkg/conversion"
	"github.com/layerkit/layerkit/pkg/middleware"
	"github.com/layerkit/layerkit/pkg/operation"
)

// Config is everything needed to assemble an Engine.
// It is read once by New; later changes have no effect.
type Config struct {
	// Conversions is the registry handlers convert through. When nil, New
	// creates one. Handler constructors that need converters should receive
	// the same registry before New freezes it.
	Conversions *conversion.Registry

	// Converters are registered on Conversions.
	Converters []conversion.Registration

	// Operations are the operation specs to serve.
	Operations []operation.Spec

	// BackendCallers are registered on the backend caller registry.
	BackendCallers []backend.Registration

	// Inbound middleware runs over the client request, in order.
	Inbound []middleware.Inbound

	// Execution middleware wraps the handler, in order.
	Execution []middleware.Execution

	// Outbound middleware runs over the client response, in order.
	Outbound []middleware.Outbound

	// AllowOverwrite makes later registrations replace earlier ones instead
	// of failing assembly with core.ErrDuplicate. It also applies to a
	// supplied Conversions registry.
	AllowOverwrite bool

	// Logger receives stage failure logs at debug level. The zero value
	// discards everything.
	Logger zerolog.Logger

	// OnStageFailure, if set, is called whenever a stage fails.
	OnStageFailure StageObserver

	// Intercept, if set, wraps every execution.
	Intercept Interceptor
}
