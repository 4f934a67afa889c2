// Package validation turns struct tag validation into pipeline failures.
//
// Client request types declare their rules with go-playground/validator tags.
// The first violated rule becomes a core.ValidationFailure naming the field by
// its JSON name:
//
//	type CreateUserRequest struct {
//	    core.ClientRequestTag
//	    Age int `json:"age" validate:"gte=18"`
//	}
//
//	v := validation.New(validation.WithMessage("age", "gte", "Must be 18 or older"))
//	f := v.Struct(req) // ValidationFailure{Field: "age", Message: "Must be 18 or older"}
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/layerkit/layerkit/pkg/conversion"
	"github.com/layerkit/layerkit/pkg/core"
)

// Validator validates structs and reports the first violation as a failure.
type Validator struct {
	validate *validator.Validate
	messages map[string]string
}

// Option configures a Validator.
type Option func(*Validator)

// WithMessage overrides the message reported when field violates tag.
// An empty field applies the message to every field.
func WithMessage(field, tag, message string) Option {
	return func(v *Validator) {
		v.messages[messageKey(field, tag)] = message
	}
}

// New creates a Validator that names fields by their JSON tag.
func New(opts ...Option) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	v := &Validator{
		validate: validate,
		messages: make(map[string]string),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Engine returns the underlying validator for registering custom rules.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Struct validates s. It returns nil when s is valid.
func (v *Validator) Struct(s any) core.Failure {
	return v.StructCtx(context.Background(), s)
}

// StructCtx validates s, passing ctx to context-aware rules.
func (v *Validator) StructCtx(ctx context.Context, s any) core.Failure {
	err := v.validate.StructCtx(ctx, s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return core.MappingFailure{
			Message: fmt.Sprintf("cannot validate %s: %v", invalid.Type, err),
			Source:  s,
		}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return core.MappingFailure{Message: fmt.Sprintf("validation failed: %v", err), Source: s}
	}

	fe := fieldErrs[0]
	return core.ValidationFailure{
		Field:   fieldPath(fe),
		Message: v.message(fe),
	}
}

// Check validates value and returns it unchanged when valid.
func Check[T any](ctx context.Context, v *Validator, value T) core.Result[core.Failure, T] {
	if f := v.StructCtx(ctx, value); f != nil {
		return core.Err[T](f)
	}
	return core.Ok(value)
}

// Converter validates the source value before applying convert.
func Converter[From, To any](v *Validator, convert func(From) To) conversion.Converter[From, To] {
	return conversion.ConverterFunc[From, To](func(ctx context.Context, from From) core.Result[core.Failure, To] {
		return core.Map(Check(ctx, v, from), convert)
	})
}

func (v *Validator) message(fe validator.FieldError) string {
	if msg, ok := v.messages[messageKey(fieldPath(fe), fe.Tag())]; ok {
		return msg
	}
	if msg, ok := v.messages[messageKey("", fe.Tag())]; ok {
		return msg
	}
	return defaultMessage(fe)
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// fieldPath is the field's namespace without the root struct name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func messageKey(field, tag string) string {
	return field + "|" + tag
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
