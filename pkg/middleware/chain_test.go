package middleware

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/layerkit/layerkit/pkg/core"
)

// tracer records markers in call order.
type tracer struct {
	mu    sync.Mutex
	marks []string
}

func (tr *tracer) mark(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.marks = append(tr.marks, s)
}

func (tr *tracer) traced(name string) Middleware[string, string] {
	return func(ctx context.Context, in string, next Next[string, string]) string {
		tr.mark(name + "-enter")
		out := next(ctx, in)
		tr.mark(name + "-exit")
		return out
	}
}

func TestChainOnionOrder(t *testing.T) {
	tr := &tracer{}
	chain := NewChain(tr.traced("A"), tr.traced("B"))

	out := chain.Execute(context.Background(), "x", func(_ context.Context, in string) string {
		tr.mark("H")
		return in + "!"
	})

	if out != "x!" {
		t.Errorf("Expected 'x!', got %q", out)
	}

	want := []string{"A-enter", "B-enter", "H", "B-exit", "A-exit"}
	if !reflect.DeepEqual(tr.marks, want) {
		t.Errorf("Expected trace %v, got %v", want, tr.marks)
	}
}

func TestChainShortCircuit(t *testing.T) {
	tr := &tracer{}
	stop := func(_ context.Context, in string, _ Next[string, string]) string {
		tr.mark("stop")
		return "stopped"
	}
	chain := NewChain(tr.traced("A"), stop, tr.traced("C"))

	out := chain.Execute(context.Background(), "x", func(_ context.Context, in string) string {
		tr.mark("H")
		return in
	})

	if out != "stopped" {
		t.Errorf("Expected 'stopped', got %q", out)
	}

	want := []string{"A-enter", "stop", "A-exit"}
	if !reflect.DeepEqual(tr.marks, want) {
		t.Errorf("Expected trace %v, got %v", want, tr.marks)
	}
}

func TestChainUseAppends(t *testing.T) {
	var chain *Chain[string, string]
	if got := chain.Execute(context.Background(), "raw", Identity[string]); got != "raw" {
		t.Errorf("Expected nil chain to run terminal, got %q", got)
	}

	chain = NewChain[string, string]()
	chain.Use(nil)
	if chain.Len() != 0 {
		t.Fatalf("Expected nil middleware to be ignored, got %d", chain.Len())
	}

	chain.Use(Transform[string, string](func(_ context.Context, s string) string { return s + "1" }))
	chain.Use(Transform[string, string](func(_ context.Context, s string) string { return s + "2" }))

	if chain.Len() != 2 {
		t.Fatalf("Expected 2 middleware, got %d", chain.Len())
	}
	if got := chain.Execute(context.Background(), "v", Identity[string]); got != "v12" {
		t.Errorf("Expected transforms in registration order, got %q", got)
	}
}

func TestResultShapedChain(t *testing.T) {
	type outcome = core.Result[core.Failure, int]

	var seen []core.FailureKind
	observe := Tap[string, outcome](nil, func(_ context.Context, _ string, out outcome) {
		if f, failed := out.Failure(); failed {
			seen = append(seen, f.Kind())
		}
	})

	chain := NewChain(observe)
	handler := func(_ context.Context, in string) outcome {
		if in == "" {
			return core.Err[int](core.ValidationFailure{Field: "in", Message: "empty"})
		}
		return core.Ok(len(in))
	}

	if v, _ := chain.Execute(context.Background(), "abc", handler).Value(); v != 3 {
		t.Errorf("Expected 3, got %d", v)
	}

	res := chain.Execute(context.Background(), "", handler)
	if f, _ := res.Failure(); f != (core.ValidationFailure{Field: "in", Message: "empty"}) {
		t.Errorf("Expected failure to pass through unchanged, got %v", f)
	}
	if len(seen) != 1 || seen[0] != core.KindValidation {
		t.Errorf("Expected tap to observe one validation failure, got %v", seen)
	}
}

func TestRecover(t *testing.T) {
	chain := NewChain(Recover(func(_ context.Context, in string, r any) string {
		return fmt.Sprintf("recovered %s: %v", in, r)
	}))

	out := chain.Execute(context.Background(), "req", func(context.Context, string) string {
		panic("boom")
	})

	if out != "recovered req: boom" {
		t.Errorf("Expected recovered value, got %q", out)
	}
}

func TestWhen(t *testing.T) {
	upper := Transform[string, string](func(_ context.Context, s string) string { return strings.ToUpper(s) })
	chain := NewChain(When(func(_ context.Context, s string) bool { return strings.HasPrefix(s, "loud:") }, upper))

	tests := []struct {
		in   string
		want string
	}{
		{"loud:hi", "LOUD:HI"},
		{"quiet:hi", "quiet:hi"},
	}

	for _, tt := range tests {
		if got := chain.Execute(context.Background(), tt.in, Identity[string]); got != tt.want {
			t.Errorf("Execute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShortCircuitMiddleware(t *testing.T) {
	cache := map[string]string{"cached": "from-cache"}
	chain := NewChain(ShortCircuit(func(_ context.Context, in string) (string, bool) {
		v, ok := cache[in]
		return v, ok
	}))

	calls := 0
	terminal := func(_ context.Context, in string) string {
		calls++
		return "computed-" + in
	}

	if got := chain.Execute(context.Background(), "cached", terminal); got != "from-cache" {
		t.Errorf("Expected cached value, got %q", got)
	}
	if got := chain.Execute(context.Background(), "fresh", terminal); got != "computed-fresh" {
		t.Errorf("Expected computed value, got %q", got)
	}
	if calls != 1 {
		t.Errorf("Expected terminal to run once, ran %d times", calls)
	}
}
