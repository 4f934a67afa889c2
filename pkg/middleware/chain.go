// Package middleware provides ordered interceptor chains for the execution
// pipeline.
//
// A Middleware receives the value flowing through the chain and a Next
// continuation. Calling next runs the rest of the chain and, finally, the
// terminal handler; not calling it short-circuits everything after it.
// Chains compose as an onion: the first registered middleware sees the input
// first and the output last.
//
//	chain := middleware.NewChain(a, b)
//	out := chain.Execute(ctx, in, terminal) // a-in, b-in, terminal, b-out, a-out
package middleware

import (
	"context"
	"sync"
)

// Next runs the remainder of a chain.
type Next[In, Out any] func(ctx context.Context, in In) Out

// Middleware intercepts a value on its way to the terminal handler.
type Middleware[In, Out any] func(ctx context.Context, in In, next Next[In, Out]) Out

// Chain is an append-only ordered list of middleware.
type Chain[In, Out any] struct {
	mu          sync.RWMutex
	middlewares []Middleware[In, Out]
}

// NewChain creates a chain holding mws in registration order.
func NewChain[In, Out any](mws ...Middleware[In, Out]) *Chain[In, Out] {
	c := &Chain[In, Out]{}
	c.Use(mws...)
	return c
}

// Use appends middleware to the chain. Nil entries are ignored.
func (c *Chain[In, Out]) Use(mws ...Middleware[In, Out]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, mw := range mws {
		if mw != nil {
			c.middlewares = append(c.middlewares, mw)
		}
	}
}

// Len returns the number of registered middleware.
func (c *Chain[In, Out]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}

// Execute runs input through every middleware and then terminal.
// A nil chain runs terminal directly.
func (c *Chain[In, Out]) Execute(ctx context.Context, input In, terminal Next[In, Out]) Out {
	if c == nil {
		return terminal(ctx, input)
	}

	c.mu.RLock()
	mws := c.middlewares
	c.mu.RUnlock()

	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, in In) Out {
			return mw(ctx, in, inner)
		}
	}
	return next(ctx, input)
}

// Identity is a terminal handler that returns its input unchanged.
func Identity[T any](_ context.Context, v T) T {
	return v
}
