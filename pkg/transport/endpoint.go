// Package transport performs backend calls on behalf of pipeline handlers.
//
// A Transport sends a request value to an Endpoint and decodes the reply into
// a response value, reporting problems as pipeline failures:
//
//   - serialization errors become MappingFailure
//   - non-2xx answers become BackendFailure carrying the status and body
//   - I/O errors become TransportFailure carrying the cause
//
// HTTPTransport is the net/http implementation. It propagates the active
// OpenTelemetry trace context to the backend.
package transport

import (
	"fmt"
	"maps"
	"net/http"
)

// Method is an HTTP request method.
type Method string

// Supported methods.
const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodPatch   Method = http.MethodPatch
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
)

// Validate checks if the method is supported.
func (m Method) Validate() error {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions:
		return nil
	default:
		return fmt.Errorf("unsupported method: %q", string(m))
	}
}

// HasBody reports whether requests with this method carry a payload.
func (m Method) HasBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

// Endpoint describes one backend route relative to a host base address.
type Endpoint struct {
	Method  Method
	Path    string
	Headers map[string]string
}

// NewEndpoint creates an endpoint with no extra headers.
func NewEndpoint(method Method, path string) Endpoint {
	return Endpoint{Method: method, Path: path}
}

// WithHeader returns a copy of the endpoint with an extra header.
func (e Endpoint) WithHeader(key, value string) Endpoint {
	headers := maps.Clone(e.Headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers[key] = value
	e.Headers = headers
	return e
}

// Resolve returns a copy of the endpoint whose path is prefixed by baseURL.
func (e Endpoint) Resolve(baseURL string) Endpoint {
	e.Path = baseURL + e.Path
	return e
}

// String renders the endpoint as "METHOD path".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s %s", e.Method, e.Path)
}
