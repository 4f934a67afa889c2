package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/layerkit/layerkit/pkg/telemetry"
)

// EnvPrefix prefixes every environment variable that overrides a setting.
const EnvPrefix = "LAYERKIT_"

// Format identifies a settings file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf returns the format matching the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported settings file type: %s", path)
	}
}

// Loader reads, overrides and validates Settings.
type Loader struct {
	ctx       *cue.Context
	schemas   *SchemaRegistry
	validator *validator.Validate
	environ   map[string]string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvironment replaces the process environment used for overrides.
func WithEnvironment(environ map[string]string) LoaderOption {
	return func(l *Loader) {
		l.environ = environ
	}
}

// NewLoader creates a new settings loader.
func NewLoader(opts ...LoaderOption) *Loader {
	ctx := cuecontext.New()
	l := &Loader{
		ctx:       ctx,
		schemas:   NewSchemaRegistry(ctx),
		validator: validator.New(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Default returns settings with the default telemetry configuration and no hosts.
func Default() *Settings {
	return &Settings{Telemetry: *telemetry.DefaultConfig()}
}

// Load reads settings from path using the loader's environment.
func Load(path string) (*Settings, error) {
	return NewLoader().Load(path)
}

// Load reads the settings file at path, applies environment overrides and
// validates the result.
func (l *Loader) Load(path string) (*Settings, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	return l.parse(data, format, path)
}

// Parse decodes settings from data, applies environment overrides and
// validates the result.
func (l *Loader) Parse(data []byte, format Format) (*Settings, error) {
	return l.parse(data, format, "inline")
}

func (l *Loader) parse(data []byte, format Format, filename string) (*Settings, error) {
	settings := Default()

	switch format {
	case FormatCUE, FormatJSON:
		exported, err := l.exportCUE(data, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", filename, err)
		}
		data = exported
	case FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported settings format: %s", format)
	}

	// JSON is a subset of YAML; decoding through yaml.v3 lets durations be
	// written as strings.
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	if err := l.applyEnvironment(settings); err != nil {
		return nil, err
	}

	if err := l.Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// exportCUE evaluates data against the settings schema and returns it as JSON.
func (l *Loader) exportCUE(data []byte, filename string) ([]byte, error) {
	val := l.ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err)
	}

	unified, err := l.schemas.Unify(SchemaSettings, val)
	if err != nil {
		return nil, err
	}

	return unified.MarshalJSON()
}

func (l *Loader) applyEnvironment(settings *Settings) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: l.environ}
	if err := env.ParseWithOptions(settings, opts); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if settings.Service != "" {
		settings.Telemetry.ServiceName = settings.Service
	}

	return nil
}

// Validate checks settings against their struct tags and the telemetry rules.
func (l *Loader) Validate(settings *Settings) error {
	if err := l.validator.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return convertFieldErrors(fieldErrs)
		}
		return fmt.Errorf("failed to validate settings: %w", err)
	}

	if err := settings.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry settings: %w", err)
	}

	return nil
}

// Schemas returns the loader's schema registry.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

func convertFieldErrors(fieldErrs validator.ValidationErrors) ValidationErrors {
	errs := make(ValidationErrors, len(fieldErrs))
	for i, fe := range fieldErrs {
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed on the '%s=%s' rule", fe.Tag(), fe.Param())
		}
		errs[i] = ValidationError{Path: fe.Namespace(), Message: msg}
	}
	return errs
}
