package backend

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/layerkit/layerkit/pkg/core"
)

// Key identifies a caller by host name and request/response types.
type Key struct {
	Host     string
	Request  reflect.Type
	Response reflect.Type
}

// String renders the key for logs and failure messages.
func (k Key) String() string {
	return fmt.Sprintf("%s(%s -> %s)", k.Host, typeName(k.Request), typeName(k.Response))
}

// KeyOf returns the key for a caller of Req/Res on host.
func KeyOf[Req core.BackendRequest, Res core.BackendResponse](host string) Key {
	return Key{
		Host:     host,
		Request:  reflect.TypeFor[Req](),
		Response: reflect.TypeFor[Res](),
	}
}

// Registry stores backend callers.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// callers maps a key to a Caller[Req, Res] stored as any.
	callers map[Key]any

	// overwrite allows a second registration for a key to replace the first.
	overwrite bool

	// frozen rejects further registrations.
	frozen bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithOverwrite makes the last registration for a key win instead of
// returning core.ErrDuplicate.
func WithOverwrite() Option {
	return func(r *Registry) {
		r.overwrite = true
	}
}

// NewRegistry creates an empty backend caller registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		callers: make(map[Key]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores caller for requests of type Req to host answering with Res.
func Register[Req core.BackendRequest, Res core.BackendResponse](r *Registry, host core.Host, caller Caller[Req, Res]) error {
	if core.IsNilHost(host) {
		return fmt.Errorf("backend caller host is nil")
	}
	if caller == nil {
		return fmt.Errorf("backend caller for %s is nil", KeyOf[Req, Res](host.Name()))
	}

	key := KeyOf[Req, Res](host.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("failed to register backend caller %s: %w", key, core.ErrFrozen)
	}
	if _, exists := r.callers[key]; exists && !r.overwrite {
		return fmt.Errorf("backend caller %s: %w", key, core.ErrDuplicate)
	}
	r.callers[key] = caller
	return nil
}

// Lookup returns the caller registered for host and Req/Res.
func Lookup[Req core.BackendRequest, Res core.BackendResponse](r *Registry, host core.Host) (Caller[Req, Res], bool) {
	if r == nil || core.IsNilHost(host) {
		return nil, false
	}

	r.mu.RLock()
	stored, exists := r.callers[KeyOf[Req, Res](host.Name())]
	r.mu.RUnlock()

	if !exists {
		return nil, false
	}
	caller, ok := stored.(Caller[Req, Res])
	return caller, ok
}

// Resolve is Lookup with a MappingFailure naming the missing host and types.
func Resolve[Req core.BackendRequest, Res core.BackendResponse](r *Registry, host core.Host) core.Result[core.Failure, Caller[Req, Res]] {
	caller, ok := Lookup[Req, Res](r, host)
	if !ok {
		name := "<nil>"
		if !core.IsNilHost(host) {
			name = host.Name()
		}
		return core.Err[Caller[Req, Res]](core.MappingFailure{
			Message: fmt.Sprintf("No backend caller registered for host %s", KeyOf[Req, Res](name)),
		})
	}
	return core.Ok(caller)
}

// Call resolves the caller for req's target host and invokes it.
func Call[Req core.BackendRequest, Res core.BackendResponse](ctx context.Context, r *Registry, req Req) core.Result[core.Failure, Res] {
	return core.FlatMap(Resolve[Req, Res](r, req.TargetHost()), func(caller Caller[Req, Res]) core.Result[core.Failure, Res] {
		return caller.Call(ctx, req)
	})
}

// Keys returns the registered keys ordered by host name.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.callers))
	for k := range r.callers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Len returns the number of registered callers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callers)
}

// Freeze rejects all further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Registration is a deferred Register call used for declarative assembly.
type Registration struct {
	// Key is the key the caller will be stored under.
	Key Key

	apply func(*Registry) error
}

// Bind captures caller for later registration under host.
func Bind[Req core.BackendRequest, Res core.BackendResponse](host core.Host, caller Caller[Req, Res]) Registration {
	name := ""
	if !core.IsNilHost(host) {
		name = host.Name()
	}
	return Registration{
		Key: KeyOf[Req, Res](name),
		apply: func(r *Registry) error {
			return Register[Req, Res](r, host, caller)
		},
	}
}

// BindHTTP captures an HTTP caller, registered under the caller's own host.
func BindHTTP[Req core.BackendRequest, Res core.BackendResponse](caller *HTTPCaller[Req, Res]) Registration {
	return Bind[Req, Res](caller.Host(), caller)
}

// Apply registers the captured caller on r.
func (reg Registration) Apply(r *Registry) error {
	if reg.apply == nil {
		return fmt.Errorf("empty backend caller registration")
	}
	return reg.apply(r)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
