// Package core provides the leaf types shared by every layer of the layerkit pipeline.
//
// # Results
//
// Expected failure paths never panic and never return a bare error. Every
// fallible stage returns a Result, a two-variant value holding either a
// Failure or a success value:
//
//	res := core.Ok(cmd)
//	out := core.FlatMap(res, handle)
//	core.Fold(out, onFailure, onSuccess)
//
// # Failure Taxonomy
//
// Failures form a closed set:
//
//   - MappingFailure: no converter registered, registry miss, or a conversion error
//   - DomainFailure: business-rule rejection inside a handler
//   - BackendFailure: an external service answered with a non-success status
//   - TransportFailure: I/O failed before any backend response was obtained
//   - ValidationFailure: structural or semantic rejection of client input
//
// Every Failure is also an error, so the usual errors.As and errors.Is
// helpers work on them.
//
// # Layers
//
// The client, domain and backend vocabularies are kept apart by marker
// interfaces. A type joins a layer by embedding the matching tag:
//
//	type CreateUserRequest struct {
//	    core.ClientRequestTag
//	    Name string
//	}
//
// Backend requests additionally name the Host they target.
package core
