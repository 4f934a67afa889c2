// Package conversion maps values between the client, domain and backend
// vocabularies.
//
// Converters are stored in a Registry keyed by the ordered pair of their
// source and target types. Lookups recover the typed converter with a checked
// type assertion, so a registry miss or a mismatched entry surfaces as a
// MappingFailure rather than a panic:
//
//	reg := conversion.NewRegistry()
//	_ = conversion.Register(reg, conversion.ConverterFunc[Req, Cmd](toCommand))
//	res := conversion.Convert[Req, Cmd](ctx, reg, req)
package conversion

import (
	"context"

	"github.com/layerkit/layerkit/pkg/core"
)

// Converter is a fallible transformation from one layer's type to another's.
type Converter[From, To any] interface {
	Convert(ctx context.Context, from From) core.Result[core.Failure, To]
}

// ConverterFunc adapts a plain function to the Converter interface.
type ConverterFunc[From, To any] func(ctx context.Context, from From) core.Result[core.Failure, To]

// Convert implements Converter.
func (f ConverterFunc[From, To]) Convert(ctx context.Context, from From) core.Result[core.Failure, To] {
	return f(ctx, from)
}

// Infallible adapts a total function to the Converter interface.
func Infallible[From, To any](fn func(From) To) Converter[From, To] {
	return ConverterFunc[From, To](func(_ context.Context, from From) core.Result[core.Failure, To] {
		return core.Ok(fn(from))
	})
}
