package middleware

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layerkit/layerkit/pkg/core"
)

// ExecutionContext carries per-call state through one pipeline execution.
// A fresh context is created for every call and is never shared across calls.
type ExecutionContext struct {
	// OperationID is the operation being executed.
	OperationID core.OperationID

	// CorrelationID uniquely identifies this execution.
	CorrelationID string

	// CreatedAt is when the execution started.
	CreatedAt time.Time

	mu       sync.RWMutex
	metadata map[string]any
}

// NewExecutionContext creates a context for one execution of id.
func NewExecutionContext(id core.OperationID) *ExecutionContext {
	return &ExecutionContext{
		OperationID:   id,
		CorrelationID: uuid.New().String(),
		CreatedAt:     time.Now(),
		metadata:      make(map[string]any),
	}
}

// Set stores a metadata value.
func (ec *ExecutionContext) Set(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.metadata[key] = value
}

// Get returns a metadata value.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.metadata[key]
	return v, ok
}

// Metadata returns a copy of all metadata.
func (ec *ExecutionContext) Metadata() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return maps.Clone(ec.metadata)
}

// Elapsed returns the time since the execution started.
func (ec *ExecutionContext) Elapsed() time.Duration {
	return time.Since(ec.CreatedAt)
}

type executionContextKey struct{}

// WithExecutionContext attaches ec to ctx.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey{}, ec)
}

// ExecutionContextFrom returns the execution context attached to ctx, if any.
func ExecutionContextFrom(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(executionContextKey{}).(*ExecutionContext)
	return ec, ok && ec != nil
}
