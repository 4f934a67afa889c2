package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/telemetry"
)

// Settings is the process-level configuration of a layerkit service.
type Settings struct {
	// Service is the service name. It overrides Telemetry.ServiceName when set.
	Service string `yaml:"service" env:"SERVICE"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Hosts lists the backend hosts handlers can reach.
	Hosts []HostSettings `yaml:"hosts" envPrefix:"HOSTS_" validate:"unique=Name,dive"`

	// Policies configures request policy evaluation.
	Policies PolicySettings `yaml:"policies"`
}

// HostSettings describes one backend host.
type HostSettings struct {
	// Name is the host identity used by backend caller registrations.
	Name string `yaml:"name" env:"NAME" validate:"required"`

	// BaseURL is prepended to endpoint paths (e.g., "http://users.internal:8080").
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"required,url"`

	// Timeout bounds every HTTP call to the host. Zero uses the transport default.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
}

// PolicySettings configures the policy engine.
type PolicySettings struct {
	// Paths lists policy files or directories to load.
	Paths []string `yaml:"paths" env:"POLICY_PATHS" envSeparator:","`

	// Watch reloads policies when files under Paths change.
	Watch bool `yaml:"watch" env:"POLICY_WATCH"`

	// Environment is exposed to policies as input.environment.
	Environment string `yaml:"environment" env:"POLICY_ENVIRONMENT"`
}

// Host returns the configured host with the given name.
func (s *Settings) Host(name string) (core.Host, bool) {
	h, ok := s.HostSettings(name)
	if !ok {
		return nil, false
	}
	return h.Host(), true
}

// HostSettings returns the settings of the host with the given name.
func (s *Settings) HostSettings(name string) (HostSettings, bool) {
	for _, h := range s.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return HostSettings{}, false
}

// Host returns the core host identity for h.
func (h HostSettings) Host() core.Host {
	return core.NewHost(h.Name, h.BaseURL)
}

// ValidationError is a single problem found while loading settings.
type ValidationError struct {
	File    string
	Line    int
	Column  int
	Path    string
	Message string
}

// Error implements error.
func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors collects every problem found in one settings source.
type ValidationErrors []ValidationError

// Error implements error.
func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
