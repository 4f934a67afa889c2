// Package backend registers and resolves the callers handlers use to reach
// external services.
//
// Callers are keyed by the full (host, request type, response type) triple so
// one host can expose several endpoints with different shapes. Handlers
// resolve a caller through the Registry they are given at execution time:
//
//	res := backend.Call[CreateUserBackendRequest, CreateUserBackendResponse](ctx, callers, req)
package backend

import (
	"context"
	"fmt"

	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/transport"
)

// Caller performs one logical call to a backend host.
type Caller[Req core.BackendRequest, Res core.BackendResponse] interface {
	Call(ctx context.Context, req Req) core.Result[core.Failure, Res]
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc[Req core.BackendRequest, Res core.BackendResponse] func(ctx context.Context, req Req) core.Result[core.Failure, Res]

// Call implements Caller.
func (f CallerFunc[Req, Res]) Call(ctx context.Context, req Req) core.Result[core.Failure, Res] {
	return f(ctx, req)
}

// HTTPCaller calls one endpoint on a host through a Transport.
type HTTPCaller[Req core.BackendRequest, Res core.BackendResponse] struct {
	host      core.Host
	endpoint  transport.Endpoint
	transport transport.Transport
}

// NewHTTPCaller binds an endpoint on host. The request URL is the host's base
// address followed by the endpoint path.
func NewHTTPCaller[Req core.BackendRequest, Res core.BackendResponse](host core.Host, endpoint transport.Endpoint, t transport.Transport) *HTTPCaller[Req, Res] {
	return &HTTPCaller[Req, Res]{
		host:      host,
		endpoint:  endpoint,
		transport: t,
	}
}

// Host returns the bound host.
func (c *HTTPCaller[Req, Res]) Host() core.Host {
	return c.host
}

// Endpoint returns the resolved endpoint the caller sends requests to. Without
// a host the endpoint is returned unresolved.
func (c *HTTPCaller[Req, Res]) Endpoint() transport.Endpoint {
	if core.IsNilHost(c.host) {
		return c.endpoint
	}
	return c.endpoint.Resolve(c.host.BaseURL())
}

// Call implements Caller.
func (c *HTTPCaller[Req, Res]) Call(ctx context.Context, req Req) core.Result[core.Failure, Res] {
	if core.IsNilHost(c.host) {
		return core.Err[Res](core.MappingFailure{
			Message: fmt.Sprintf("backend caller for %s has no host", c.endpoint),
			Source:  req,
		})
	}
	return transport.Execute[Res](ctx, c.transport, c.Endpoint(), req)
}
