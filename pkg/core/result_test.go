package core

import (
	"errors"
	"strconv"
	"testing"
)

func TestResultAccessors(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r := Ok(42)
		if !r.IsSuccess() || r.IsFailure() {
			t.Fatalf("Expected success, got %v", r)
		}

		v, ok := r.Value()
		if !ok || v != 42 {
			t.Errorf("Expected value 42, got %d (ok=%v)", v, ok)
		}

		if _, ok := r.Failure(); ok {
			t.Error("Expected no failure on a success result")
		}
	})

	t.Run("Failure", func(t *testing.T) {
		want := DomainFailure{Code: CodeNotFound, Message: "missing"}
		r := Err[int](want)
		if !r.IsFailure() || r.IsSuccess() {
			t.Fatalf("Expected failure, got %v", r)
		}

		f, ok := r.Failure()
		if !ok || f != want {
			t.Errorf("Expected failure %v, got %v (ok=%v)", want, f, ok)
		}

		if _, ok := r.Value(); ok {
			t.Error("Expected no value on a failure result")
		}
	})

	t.Run("ZeroValueIsFailure", func(t *testing.T) {
		var r Result[string, int]
		if r.IsSuccess() {
			t.Error("Expected zero result to be a failure")
		}
	})
}

func TestFold(t *testing.T) {
	describe := func(r Result[Failure, int]) string {
		return Fold(r,
			func(f Failure) string { return "failed: " + string(f.Kind()) },
			func(v int) string { return "got " + strconv.Itoa(v) },
		)
	}

	if got := describe(Ok(7)); got != "got 7" {
		t.Errorf("Expected 'got 7', got %q", got)
	}

	if got := describe(Err[int](ValidationFailure{Field: "age"})); got != "failed: validation" {
		t.Errorf("Expected 'failed: validation', got %q", got)
	}
}

func TestMap(t *testing.T) {
	doubled := Map(Ok(21), func(v int) int { return v * 2 })
	if v, _ := doubled.Value(); v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}

	called := false
	failed := Map(Err[int](MappingFailure{Message: "boom"}), func(v int) string {
		called = true
		return strconv.Itoa(v)
	})
	if called {
		t.Error("Map must not call fn on a failure")
	}
	if f, _ := failed.Failure(); !IsMapping(f) {
		t.Errorf("Expected mapping failure to pass through, got %v", f)
	}
}

func TestFlatMap(t *testing.T) {
	parse := func(s string) Result[Failure, int] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Err[int](ValidationFailure{Field: "n", Message: "not a number"})
		}
		return Ok(n)
	}

	tests := []struct {
		name      string
		input     Result[Failure, string]
		wantValue int
		wantKind  FailureKind
	}{
		{name: "success chains", input: Ok("12"), wantValue: 12},
		{name: "inner failure", input: Ok("x"), wantKind: KindValidation},
		{name: "outer failure short-circuits", input: Err[string](TransportFailure{Message: "down"}), wantKind: KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlatMap(tt.input, parse)
			if tt.wantKind == "" {
				v, ok := got.Value()
				if !ok || v != tt.wantValue {
					t.Errorf("Expected %d, got %v", tt.wantValue, got)
				}
				return
			}
			f, ok := got.Failure()
			if !ok || f.Kind() != tt.wantKind {
				t.Errorf("Expected %s failure, got %v", tt.wantKind, got)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	v, err := Unwrap(Ok("hello"))
	if err != nil || v != "hello" {
		t.Errorf("Expected hello, got %q (err=%v)", v, err)
	}

	_, err = Unwrap(Err[string](BackendFailure{StatusCode: 503, Message: "Service Unavailable"}))
	var bf BackendFailure
	if !errors.As(err, &bf) || bf.StatusCode != 503 {
		t.Errorf("Expected backend failure with status 503, got %v", err)
	}

	_, err = Unwrap(Result[Failure, string]{})
	if !IsMapping(err) {
		t.Errorf("Expected mapping failure for empty result, got %v", err)
	}
}
