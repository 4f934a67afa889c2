package core

import (
	"reflect"
	"strings"
)

// OperationID identifies one registered pipeline.
type OperationID string

// String returns the raw identifier.
func (id OperationID) String() string {
	return string(id)
}

// Host identifies one backend endpoint family.
type Host interface {
	// Name is the host identity used as a registry key.
	Name() string

	// BaseURL is prepended to endpoint paths.
	BaseURL() string
}

// IsNilHost reports whether h is nil or a Host holding a nil pointer, map,
// slice, func, chan or interface value.
func IsNilHost(h Host) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// StaticHost is a named host with a fixed base address.
type StaticHost struct {
	name    string
	baseURL string
}

// NewHost creates a static host. A trailing slash on baseURL is dropped so that
// endpoint paths can be concatenated directly.
func NewHost(name, baseURL string) StaticHost {
	return StaticHost{name: name, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name implements Host.
func (h StaticHost) Name() string { return h.name }

// BaseURL implements Host.
func (h StaticHost) BaseURL() string { return h.baseURL }

// String returns the host name.
func (h StaticHost) String() string { return h.name }

// ClientRequest is a request in the client vocabulary.
type ClientRequest interface{ clientRequest() }

// ClientResponse is a response in the client vocabulary.
type ClientResponse interface{ clientResponse() }

// Command is a request in the domain vocabulary.
type Command interface{ command() }

// DomainResult is a handler outcome in the domain vocabulary.
type DomainResult interface{ domainResult() }

// BackendRequest is a request matching an external service's contract.
type BackendRequest interface {
	backendRequest()

	// TargetHost returns the host the request is addressed to.
	TargetHost() Host
}

// BackendResponse is a response matching an external service's contract.
type BackendResponse interface{ backendResponse() }

// Layer tags. Embed one in a struct to place it in a layer.
type (
	ClientRequestTag   struct{}
	ClientResponseTag  struct{}
	CommandTag         struct{}
	DomainResultTag    struct{}
	BackendRequestTag  struct{}
	BackendResponseTag struct{}
)

func (ClientRequestTag) clientRequest()     {}
func (ClientResponseTag) clientResponse()   {}
func (CommandTag) command()                 {}
func (DomainResultTag) domainResult()       {}
func (BackendRequestTag) backendRequest()   {}
func (BackendResponseTag) backendResponse() {}
