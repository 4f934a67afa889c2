package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

const emailPolicy = `package layerkit.test.email

import rego.v1

# Flags addresses from disposable domains

deny contains violation if {
	endswith(input.request.email, "@example.invalid")
	violation := {
		"message": "Disposable email domains are not accepted",
		"field": "email",
	}
}

deny contains violation if {
	endswith(input.request.email, "@legacy.test")
	violation := {
		"message": "Legacy domain will be retired",
		"severity": "warning",
	}
}
`

func newTestEngine(t *testing.T, policies ...Policy) *Engine {
	t.Helper()
	eng, err := NewEngine(context.Background(), zerolog.Nop(), policies)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func TestEvaluate(t *testing.T) {
	eng := newTestEngine(t,
		Policy{Name: "email", Rego: emailPolicy, Enabled: true},
		ReservedValuesPolicy("reserved-names", "name", "Admin", "root"),
	)

	tests := []struct {
		name         string
		request      userRequest
		wantAllowed  bool
		wantMessages []string
		wantWarnings int
	}{
		{
			name:        "clean request",
			request:     userRequest{Name: "bo", Email: "bo@x.com"},
			wantAllowed: true,
		},
		{
			name:         "reserved name ignores case",
			request:      userRequest{Name: "ADMIN", Email: "bo@x.com"},
			wantMessages: []string{"name 'ADMIN' is reserved"},
		},
		{
			name:         "two policies deny",
			request:      userRequest{Name: "root", Email: "r@example.invalid"},
			wantMessages: []string{"Disposable email domains are not accepted", "name 'root' is reserved"},
		},
		{
			name:         "warning does not block",
			request:      userRequest{Name: "bo", Email: "bo@legacy.test"},
			wantAllowed:  true,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := eng.Evaluate(context.Background(), Input{Operation: "create-user", Request: tt.request})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}

			if decision.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (violations %+v)", decision.Allowed, tt.wantAllowed, decision.Violations)
			}

			var got []string
			for _, v := range decision.Violations {
				got = append(got, v.Message)
			}
			if strings.Join(got, "|") != strings.Join(tt.wantMessages, "|") {
				t.Errorf("violations = %q, want %q", got, tt.wantMessages)
			}

			if len(decision.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %d, want %d", len(decision.Warnings), tt.wantWarnings)
			}

			if len(decision.EvaluatedPolicies) != 2 {
				t.Errorf("Expected 2 evaluated policies, got %v", decision.EvaluatedPolicies)
			}
		})
	}
}

func TestEvaluateViolationFields(t *testing.T) {
	eng := newTestEngine(t, Policy{Name: "email", Rego: emailPolicy, Enabled: true, Severity: SeverityCritical})

	decision, err := eng.Evaluate(context.Background(), Input{Request: userRequest{Email: "a@example.invalid"}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(decision.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %+v", decision.Violations)
	}

	v := decision.Violations[0]
	if v.Policy != "email" || v.Field != "email" || v.Severity != SeverityCritical {
		t.Errorf("Unexpected violation %+v", v)
	}
}

func TestPolicyOperationScope(t *testing.T) {
	scoped := ReservedValuesPolicy("reserved-names", "name", "root")
	scoped.Operations = []string{"create-user"}
	eng := newTestEngine(t, scoped)

	for op, wantAllowed := range map[string]bool{"create-user": false, "rename-user": true} {
		decision, err := eng.Evaluate(context.Background(), Input{Operation: op, Request: userRequest{Name: "root"}})
		if err != nil {
			t.Fatalf("Evaluate(%s) error = %v", op, err)
		}
		if decision.Allowed != wantAllowed {
			t.Errorf("Evaluate(%s).Allowed = %v, want %v", op, decision.Allowed, wantAllowed)
		}
	}
}

func TestDisabledOperationsPolicy(t *testing.T) {
	eng := newTestEngine(t, DisabledOperationsPolicy("maintenance", "database migration", "create-user", "delete-user"))

	decision, err := eng.Evaluate(context.Background(), Input{Operation: "delete-user"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected delete-user to be denied")
	}
	if want := "operation delete-user is disabled: database migration"; decision.Violations[0].Message != want {
		t.Errorf("message = %q, want %q", decision.Violations[0].Message, want)
	}

	decision, _ = eng.Evaluate(context.Background(), Input{Operation: "get-user"})
	if !decision.Allowed {
		t.Error("Expected get-user to be allowed")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t, ReservedValuesPolicy("reserved-names", "name", "root"))
	input := Input{Operation: "create-user", Request: userRequest{Name: "root"}}

	if err := eng.DisablePolicy("reserved-names"); err != nil {
		t.Fatalf("DisablePolicy() error = %v", err)
	}
	decision, _ := eng.Evaluate(context.Background(), input)
	if !decision.Allowed || len(decision.EvaluatedPolicies) != 0 {
		t.Errorf("Expected disabled policy to be skipped, got %+v", decision)
	}

	if err := eng.EnablePolicy("reserved-names"); err != nil {
		t.Fatalf("EnablePolicy() error = %v", err)
	}
	decision, _ = eng.Evaluate(context.Background(), input)
	if decision.Allowed {
		t.Error("Expected enabled policy to deny")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestNewEngineRejectsInvalidPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"missing name", Policy{Rego: "package x\n"}},
		{"syntax error", Policy{Name: "broken", Rego: "package x\n\ndeny contains msg if {"}},
		{"unsafe variable", Policy{Name: "unsafe", Rego: "package x\n\nimport rego.v1\n\ndeny contains msg if { msg == y }"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(context.Background(), zerolog.Nop(), []Policy{tt.policy}); err == nil {
				t.Error("Expected NewEngine to fail")
			}
		})
	}
}

func TestReplacePolicies(t *testing.T) {
	eng := newTestEngine(t, ReservedValuesPolicy("reserved-names", "name", "root"))

	if err := eng.ReplacePolicies(context.Background(), []Policy{{Name: "broken", Rego: "package"}}); err == nil {
		t.Fatal("Expected compile error")
	}
	if len(eng.ListPolicies()) != 1 {
		t.Fatal("Expected previous policies to be kept after a failed replace")
	}

	if err := eng.ReplacePolicies(context.Background(), []Policy{DisabledOperationsPolicy("off", "test", "x")}); err != nil {
		t.Fatalf("ReplacePolicies() error = %v", err)
	}
	policies := eng.ListPolicies()
	if len(policies) != 1 || policies[0].Name != "off" {
		t.Errorf("Expected only the replacement policy, got %+v", policies)
	}
	if _, err := eng.GetPolicy("reserved-names"); err == nil {
		t.Error("Expected replaced policy to be gone")
	}
}

func TestPackageSegment(t *testing.T) {
	tests := map[string]string{
		"reserved-names": "reserved_names",
		"Maintenance":    "maintenance",
		"9lives":         "p_9lives",
		"":               "p_",
	}
	for in, want := range tests {
		if got := packageSegment(in); got != want {
			t.Errorf("packageSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
