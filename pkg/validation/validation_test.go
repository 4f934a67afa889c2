package validation

import (
	"context"
	"testing"

	"github.com/layerkit/layerkit/pkg/core"
)

type address struct {
	City string `json:"city" validate:"required"`
}

type signup struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Age     int     `json:"age" validate:"gte=18"`
	Plan    string  `json:"plan,omitempty" validate:"omitempty,oneof=free pro"`
	Address address `json:"address"`
}

func validSignup() signup {
	return signup{Name: "Bo", Email: "bo@x.com", Age: 30, Address: address{City: "Oslo"}}
}

func TestStruct(t *testing.T) {
	v := New(
		WithMessage("age", "gte", "Must be 18 or older"),
		WithMessage("email", "email", "Invalid email format"),
	)

	tests := []struct {
		name   string
		mutate func(*signup)
		want   core.Failure
	}{
		{"valid", func(*signup) {}, nil},
		{"underage", func(s *signup) { s.Age = 15 }, core.ValidationFailure{Field: "age", Message: "Must be 18 or older"}},
		{"bad email", func(s *signup) { s.Email = "bo.x.com" }, core.ValidationFailure{Field: "email", Message: "Invalid email format"}},
		{"missing name", func(s *signup) { s.Name = "" }, core.ValidationFailure{Field: "name", Message: "is required"}},
		{"unknown plan", func(s *signup) { s.Plan = "gold" }, core.ValidationFailure{Field: "plan", Message: "must be one of [free pro]"}},
		{"nested field", func(s *signup) { s.Address.City = "" }, core.ValidationFailure{Field: "address.city", Message: "is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSignup()
			tt.mutate(&s)

			got := v.Struct(s)
			if got != tt.want {
				t.Errorf("Struct() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWildcardMessage(t *testing.T) {
	v := New(WithMessage("", "required", "cannot be blank"))

	s := validSignup()
	s.Name = ""
	f := v.Struct(s)
	if f != (core.ValidationFailure{Field: "name", Message: "cannot be blank"}) {
		t.Errorf("Expected wildcard message, got %v", f)
	}
}

func TestStructRejectsNonStruct(t *testing.T) {
	f := New().Struct(42)
	if !core.IsMapping(f) {
		t.Errorf("Expected MappingFailure for non-struct input, got %v", f)
	}
}

func TestConverter(t *testing.T) {
	type profile struct {
		Display string
	}

	conv := Converter(New(), func(s signup) profile { return profile{Display: s.Name + " <" + s.Email + ">"} })

	ok := conv.Convert(context.Background(), validSignup())
	if v, _ := ok.Value(); v.Display != "Bo <bo@x.com>" {
		t.Errorf("Expected converted profile, got %v", ok)
	}

	bad := validSignup()
	bad.Age = 17
	res := conv.Convert(context.Background(), bad)
	if f, _ := res.Failure(); !core.IsValidation(f) {
		t.Errorf("Expected ValidationFailure, got %v", res)
	}
}
