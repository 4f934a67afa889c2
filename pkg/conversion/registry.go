package conversion

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/layerkit/layerkit/pkg/core"
)

// Pair identifies a converter by its ordered source and target types.
type Pair struct {
	From reflect.Type
	To   reflect.Type
}

// String renders the pair as "From -> To".
func (p Pair) String() string {
	return fmt.Sprintf("%s -> %s", typeName(p.From), typeName(p.To))
}

// PairOf returns the key for converters from From to To.
func PairOf[From, To any]() Pair {
	return Pair{From: reflect.TypeFor[From](), To: reflect.TypeFor[To]()}
}

// Registry stores at most one converter per ordered type pair.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// converters maps a type pair to a Converter[From, To] stored as any.
	converters map[Pair]any

	// overwrite allows a second registration for a pair to replace the first.
	overwrite bool

	// frozen rejects further registrations.
	frozen bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithOverwrite makes the last registration for a pair win instead of
// returning core.ErrDuplicate.
func WithOverwrite() Option {
	return func(r *Registry) {
		r.overwrite = true
	}
}

// NewRegistry creates an empty conversion registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		converters: make(map[Pair]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores conv under the (From, To) pair.
func Register[From, To any](r *Registry, conv Converter[From, To]) error {
	if conv == nil {
		return fmt.Errorf("converter %s is nil", PairOf[From, To]())
	}
	return r.store(PairOf[From, To](), conv)
}

// Lookup returns the converter registered for (From, To).
func Lookup[From, To any](r *Registry) (Converter[From, To], bool) {
	r.mu.RLock()
	stored, exists := r.converters[PairOf[From, To]()]
	r.mu.RUnlock()

	if !exists {
		return nil, false
	}
	conv, ok := stored.(Converter[From, To])
	return conv, ok
}

// Convert looks up the converter for (From, To) and applies it to v.
func Convert[From, To any](ctx context.Context, r *Registry, v From) core.Result[core.Failure, To] {
	conv, ok := Lookup[From, To](r)
	if !ok {
		return core.Err[To](core.MappingFailure{
			Message: fmt.Sprintf("No converter registered for %s", PairOf[From, To]()),
			Source:  v,
		})
	}
	return conv.Convert(ctx, v)
}

// Pairs returns the registered type pairs.
func (r *Registry) Pairs() []Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pairs := make([]Pair, 0, len(r.converters))
	for p := range r.converters {
		pairs = append(pairs, p)
	}
	return pairs
}

// Len returns the number of registered converters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.converters)
}

// Freeze rejects all further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// AllowOverwrite makes later registrations replace earlier ones, as
// WithOverwrite does at construction.
func (r *Registry) AllowOverwrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overwrite = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) store(p Pair, conv any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("failed to register converter %s: %w", p, core.ErrFrozen)
	}
	if _, exists := r.converters[p]; exists && !r.overwrite {
		return fmt.Errorf("converter %s: %w", p, core.ErrDuplicate)
	}
	r.converters[p] = conv
	return nil
}

// Registration is a deferred Register call used for declarative assembly.
type Registration struct {
	// Pair is the key the converter will be stored under.
	Pair Pair

	apply func(*Registry) error
}

// Bind captures conv for later registration.
func Bind[From, To any](conv Converter[From, To]) Registration {
	return Registration{
		Pair: PairOf[From, To](),
		apply: func(r *Registry) error {
			return Register[From, To](r, conv)
		},
	}
}

// Apply registers the captured converter on r.
func (reg Registration) Apply(r *Registry) error {
	if reg.apply == nil {
		return fmt.Errorf("empty converter registration")
	}
	return reg.apply(r)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
