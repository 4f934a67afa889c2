package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// Built-in schema names.
const (
	SchemaSettings = "settings"
	SchemaHost     = "host"
	SchemaPolicies = "policies"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	base    cue.Value
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a schema registry with the built-in schemas.
// Values validated by the registry must be built by the same context.
func NewSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		base:    ctx.CompileString(builtinSchemas, cue.Filename("builtin.cue")),
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.schemas[SchemaSettings] = sr.base.LookupPath(cue.ParsePath("#Settings"))
	sr.schemas[SchemaHost] = sr.base.LookupPath(cue.ParsePath("#Host"))
	sr.schemas[SchemaPolicies] = sr.base.LookupPath(cue.ParsePath("#Policies"))
}

// RegisterSchema compiles schema and registers it under name. The schema may
// refer to the built-in definitions (#Settings, #Host, #Policies, #Duration).
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Scope(sr.base), cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify unifies val with the named schema and checks that the result is
// concrete. Schema defaults are filled in on the returned value.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}

	return unified, nil
}

// ListSchemas returns all registered schema names in order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var validationErrors ValidationErrors

	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{Message: cueerrors.Details(e, nil)}

		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ve)
	}

	return validationErrors
}

const builtinSchemas = `
// Go duration string ("250ms", "1m30s") or nanoseconds.
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$" | int & >=0

#Host: {
	// Name is the identity backend callers are registered under
	name: string & =~"^[a-zA-Z0-9][a-zA-Z0-9_.-]*$"

	// BaseURL is prepended to endpoint paths
	base_url: string & =~"^https?://"

	timeout?: #Duration
}

#Policies: {
	paths?: [...string]
	watch?:       bool
	environment?: string
}

#Telemetry: {
	service_name?:    string
	service_version?: string
	environment?:     string

	logging?: {
		level?:  "trace" | "debug" | "info" | "warn" | "error" | "fatal"
		format?: "console" | "json"
		...
	}

	tracing?: {
		enabled?:        bool
		exporter?:       "otlp" | "stdout" | "none"
		sampling_rate?:  number & >=0 & <=1
		export_timeout?: #Duration
		...
	}

	metrics?: {...}
	events?: {...}
	resource_attributes?: {[string]: string}
}

#Settings: {
	service?:   string & !=""
	telemetry?: #Telemetry
	hosts?: [...#Host]
	policies?: #Policies
}
`
