package core

import "fmt"

// Result is the outcome of a fallible stage: exactly one of a failure F or a
// success value V is populated. The zero Result is a failure holding the zero F.
type Result[F, V any] struct {
	failure F
	value   V
	ok      bool
}

// Success wraps a successful value.
func Success[F, V any](value V) Result[F, V] {
	return Result[F, V]{value: value, ok: true}
}

// Fail wraps a failure.
func Fail[F, V any](failure F) Result[F, V] {
	return Result[F, V]{failure: failure}
}

// Ok wraps a successful value in a Result carrying the pipeline Failure type.
func Ok[V any](value V) Result[Failure, V] {
	return Success[Failure](value)
}

// Err wraps a pipeline Failure.
func Err[V any](failure Failure) Result[Failure, V] {
	return Fail[Failure, V](failure)
}

// IsSuccess reports whether the result holds a value.
func (r Result[F, V]) IsSuccess() bool {
	return r.ok
}

// IsFailure reports whether the result holds a failure.
func (r Result[F, V]) IsFailure() bool {
	return !r.ok
}

// Value returns the success value and true, or the zero V and false.
func (r Result[F, V]) Value() (V, bool) {
	return r.value, r.ok
}

// Failure returns the failure and true, or the zero F and false.
func (r Result[F, V]) Failure() (F, bool) {
	return r.failure, !r.ok
}

// String renders the result for logs.
func (r Result[F, V]) String() string {
	if r.ok {
		return fmt.Sprintf("Success(%v)", r.value)
	}
	return fmt.Sprintf("Failure(%v)", r.failure)
}

// Fold collapses a result into a single value by applying onFailure or onSuccess.
func Fold[F, V, T any](r Result[F, V], onFailure func(F) T, onSuccess func(V) T) T {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure(r.failure)
}

// Map transforms the success value, leaving a failure untouched.
func Map[F, V, U any](r Result[F, V], fn func(V) U) Result[F, U] {
	if !r.ok {
		return Fail[F, U](r.failure)
	}
	return Success[F](fn(r.value))
}

// FlatMap chains a fallible transform. A failure is threaded through unchanged
// and fn is not called.
func FlatMap[F, V, U any](r Result[F, V], fn func(V) Result[F, U]) Result[F, U] {
	if !r.ok {
		return Fail[F, U](r.failure)
	}
	return fn(r.value)
}

// Unwrap converts a pipeline result into Go's (value, error) convention.
func Unwrap[V any](r Result[Failure, V]) (V, error) {
	if r.ok {
		return r.value, nil
	}
	if r.failure == nil {
		var zero V
		return zero, MappingFailure{Message: "empty result"}
	}
	return r.value, r.failure
}
