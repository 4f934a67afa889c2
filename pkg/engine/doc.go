// Package engine provides the execution engine that runs client requests
// through registered operations.
//
// # Overview
//
// An operation is a three-stage pipeline bound to an OperationID. For every
// call the engine:
//
//  1. Init - Create a fresh ExecutionContext with a new correlation ID
//  2. Resolve - Look up the operation spec (unknown IDs fail immediately)
//  3. Inbound - Run the inbound middleware chain over the client request
//  4. Client to Command - Convert the request into a domain command
//  5. Execution - Run the execution chain wrapped around the handler
//  6. Unwrap - Stop if the handler (or a middleware) produced a failure
//  7. Result to Client - Convert the domain result into a client response
//  8. Outbound - Run the outbound middleware chain and return the response
//
// The first failure ends the call. It is returned verbatim and no later stage
// or middleware runs.
//
// Config.Intercept wraps steps 2 to 8 of every call, so a value it puts on
// the context (a tracing span, for example) is visible to every stage and to
// Config.OnStageFailure.
//
// # Assembly
//
// Engines are assembled once from a Config and then frozen:
//
//	eng, err := engine.New(engine.Config{
//	    Conversions:    convs,
//	    Operations:     []operation.Spec{users.CreateUser(convs)},
//	    BackendCallers: []backend.Registration{backend.BindHTTP(caller)},
//	    Execution:      []middleware.Execution{tel.ExecutionMiddleware()},
//	    Logger:         logger,
//	})
//
// Duplicate registrations fail assembly with core.ErrDuplicate unless
// Config.AllowOverwrite is set.
//
// # Concurrency
//
// Execute may be called from many goroutines. Calls share only the frozen
// registries and middleware chains; each has its own ExecutionContext.
//
// # Example Usage
//
//	res := engine.Execute[users.CreateUserResponse](ctx, eng, users.CreateUserID, req)
//	resp, err := core.Unwrap(res)
//	if core.IsValidation(err) {
//	    // Report the offending field
//	}
package engine
