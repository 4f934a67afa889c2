package transport

import (
	"context"

	"github.com/layerkit/layerkit/pkg/core"
)

// Transport performs a single backend call.
type Transport interface {
	// Do sends request to ep and decodes the reply into response, which must
	// be a pointer or nil. A nil return means the call succeeded.
	Do(ctx context.Context, ep Endpoint, request any, response any) core.Failure
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, ep Endpoint, request any, response any) core.Failure

// Do implements Transport.
func (f TransportFunc) Do(ctx context.Context, ep Endpoint, request any, response any) core.Failure {
	return f(ctx, ep, request, response)
}

// Execute calls ep through t and decodes the reply as Res.
func Execute[Res any](ctx context.Context, t Transport, ep Endpoint, request any) core.Result[core.Failure, Res] {
	var res Res
	if f := t.Do(ctx, ep, request, &res); f != nil {
		return core.Err[Res](f)
	}
	return core.Ok(res)
}
