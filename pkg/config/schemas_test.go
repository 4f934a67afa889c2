package config

import (
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry(cuecontext.New())

	for _, name := range []string{SchemaHost, SchemaPolicies, SchemaSettings} {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}
			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}

	if got := strings.Join(sr.ListSchemas(), ","); got != "host,policies,settings" {
		t.Errorf("ListSchemas() = %s", got)
	}
}

func TestSchemaRegistry_UnifyHost(t *testing.T) {
	ctx := cuecontext.New()
	sr := NewSchemaRegistry(ctx)

	tests := []struct {
		name    string
		host    string
		wantErr bool
	}{
		{"valid", `{name: "user-service", base_url: "http://users:8080"}`, false},
		{"duration timeout", `{name: "user-service", base_url: "https://users", timeout: "1m30s"}`, false},
		{"nanosecond timeout", `{name: "user-service", base_url: "https://users", timeout: 5000}`, false},
		{"bad timeout", `{name: "user-service", base_url: "https://users", timeout: "soon"}`, true},
		{"missing base url", `{name: "user-service"}`, true},
		{"bad scheme", `{name: "user-service", base_url: "ftp://users"}`, true},
		{"unknown field", `{name: "user-service", base_url: "http://users", retries: 3}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val := ctx.CompileString(tt.host)
			if val.Err() != nil {
				t.Fatalf("failed to compile test value: %v", val.Err())
			}

			_, err := sr.Unify(SchemaHost, val)
			if (err != nil) != tt.wantErr {
				t.Errorf("Unify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaRegistry_RegisterSchema(t *testing.T) {
	ctx := cuecontext.New()
	sr := NewSchemaRegistry(ctx)

	if err := sr.RegisterSchema("limits", `close({max_requests: int & >0})`); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	if _, err := sr.Unify("limits", ctx.CompileString(`{max_requests: 10}`)); err != nil {
		t.Errorf("Unify() error = %v", err)
	}
	if _, err := sr.Unify("limits", ctx.CompileString(`{max_requests: 0}`)); err == nil {
		t.Error("Expected bound violation")
	}

	if err := sr.RegisterSchema("broken", `{max_requests: int &`); err == nil {
		t.Error("Expected compile error")
	}
}

func TestSchemaRegistry_UnknownSchema(t *testing.T) {
	sr := NewSchemaRegistry(cuecontext.New())

	if _, err := sr.Unify("missing", cue.Value{}); err == nil {
		t.Error("Expected error for unknown schema")
	}
}
