package middleware

import "github.com/layerkit/layerkit/pkg/core"

// HandlerResult is what a handler, and therefore the execution chain, produces.
type HandlerResult = core.Result[core.Failure, core.DomainResult]

// Pipeline middleware shapes.
type (
	// Inbound intercepts client requests before conversion to a command.
	Inbound = Middleware[core.ClientRequest, core.ClientRequest]

	// Execution wraps the handler and observes its result.
	Execution = Middleware[core.Command, HandlerResult]

	// Outbound intercepts client responses before they are returned.
	Outbound = Middleware[core.ClientResponse, core.ClientResponse]
)
