package middleware

import (
	"context"
)

// Recover converts a panic raised further down the chain into a value produced
// by onPanic.
func Recover[In, Out any](onPanic func(ctx context.Context, in In, recovered any) Out) Middleware[In, Out] {
	return func(ctx context.Context, in In, next Next[In, Out]) (out Out) {
		defer func() {
			if r := recover(); r != nil {
				out = onPanic(ctx, in, r)
			}
		}()
		return next(ctx, in)
	}
}

// When applies mw only to inputs matching pred. Other inputs pass straight to next.
func When[In, Out any](pred func(ctx context.Context, in In) bool, mw Middleware[In, Out]) Middleware[In, Out] {
	return func(ctx context.Context, in In, next Next[In, Out]) Out {
		if pred(ctx, in) {
			return mw(ctx, in, next)
		}
		return next(ctx, in)
	}
}

// Transform rewrites the input before passing it on.
func Transform[In, Out any](fn func(ctx context.Context, in In) In) Middleware[In, Out] {
	return func(ctx context.Context, in In, next Next[In, Out]) Out {
		return next(ctx, fn(ctx, in))
	}
}

// Tap observes the input and the output of the rest of the chain without
// altering either. Nil callbacks are skipped.
func Tap[In, Out any](before func(ctx context.Context, in In), after func(ctx context.Context, in In, out Out)) Middleware[In, Out] {
	return func(ctx context.Context, in In, next Next[In, Out]) Out {
		if before != nil {
			before(ctx, in)
		}
		out := next(ctx, in)
		if after != nil {
			after(ctx, in, out)
		}
		return out
	}
}

// ShortCircuit returns fn's value without calling next when fn reports true.
func ShortCircuit[In, Out any](fn func(ctx context.Context, in In) (Out, bool)) Middleware[In, Out] {
	return func(ctx context.Context, in In, next Next[In, Out]) Out {
		if out, stop := fn(ctx, in); stop {
			return out
		}
		return next(ctx, in)
	}
}
