package operation

import (
	"fmt"
	"slices"
	"sync"

	"github.com/layerkit/layerkit/pkg/core"
)

// Registry maps operation IDs to their specs.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// specs maps operation ID to spec.
	specs map[core.OperationID]Spec

	// overwrite allows re-registering an ID.
	overwrite bool

	// frozen rejects further registrations.
	frozen bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithOverwrite makes the last registration for an ID win instead of
// returning core.ErrDuplicate.
func WithOverwrite() Option {
	return func(r *Registry) {
		r.overwrite = true
	}
}

// NewRegistry creates an empty operation registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		specs: make(map[core.OperationID]Spec),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores spec under its ID.
func (r *Registry) Register(spec Spec) error {
	if spec == nil {
		return fmt.Errorf("operation spec is nil")
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid operation spec: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("failed to register operation %s: %w", spec.ID(), core.ErrFrozen)
	}
	if _, exists := r.specs[spec.ID()]; exists && !r.overwrite {
		return fmt.Errorf("operation %s: %w", spec.ID(), core.ErrDuplicate)
	}
	r.specs[spec.ID()] = spec
	return nil
}

// Get returns the spec registered for id.
func (r *Registry) Get(id core.OperationID) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[id]
	return spec, ok
}

// IDs returns the registered operation IDs in sorted order.
func (r *Registry) IDs() []core.OperationID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]core.OperationID, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
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
