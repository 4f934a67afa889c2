package policy

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"
)

// Engine compiles Rego policies and evaluates them against pipeline inputs.
type Engine struct {
	// mu protects policies.
	mu          sync.RWMutex
	policies    map[string]*compiledPolicy
	environment string
	logger      zerolog.Logger
	loader      *Loader
}

// compiledPolicy is a policy with its deny query prepared for reuse.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEnvironment sets the environment reported to policies as input.environment.
func WithEnvironment(env string) EngineOption {
	return func(e *Engine) {
		e.environment = env
	}
}

// NewEngine creates a policy engine with the given policies compiled.
func NewEngine(ctx context.Context, logger zerolog.Logger, policies []Policy, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.loader = NewLoader(e.logger)

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, e.policies, policies[i]); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Evaluate evaluates every policy that applies to input.Operation.
// An error means a policy could not be evaluated; no decision was reached.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Decision, error) {
	start := time.Now()
	if input.Timestamp.IsZero() {
		input.Timestamp = start
	}
	if input.Environment == "" {
		input.Environment = e.environment
	}

	e.mu.RLock()
	applicable := make([]*compiledPolicy, 0, len(e.policies))
	for _, cp := range e.policies {
		if cp.policy.AppliesTo(input.Operation) {
			snapshot := *cp
			applicable = append(applicable, &snapshot)
		}
	}
	e.mu.RUnlock()

	slices.SortFunc(applicable, func(a, b *compiledPolicy) int {
		return strings.Compare(a.policy.Name, b.policy.Name)
	})

	decision := &Decision{Allowed: true}
	for _, cp := range applicable {
		decision.EvaluatedPolicies = append(decision.EvaluatedPolicies, cp.policy.Name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			return nil, fmt.Errorf("policy %s evaluation failed: %w", cp.policy.Name, err)
		}

		for _, v := range violations {
			if v.Severity.Blocking() {
				decision.Allowed = false
				decision.Violations = append(decision.Violations, v)
			} else {
				decision.Warnings = append(decision.Warnings, v)
			}
		}
	}
	decision.Duration = time.Since(start)

	e.logger.Debug().
		Str("operation_id", input.Operation).
		Bool("allowed", decision.Allowed).
		Int("violations", len(decision.Violations)).
		Int("warnings", len(decision.Warnings)).
		Dur("duration", decision.Duration).
		Msg("Policy evaluation completed")

	return decision, nil
}

// evaluatePolicy evaluates the deny set of a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]any)
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}

	slices.SortFunc(violations, func(a, b Violation) int {
		return strings.Compare(a.Message, b.Message)
	})
	return violations, nil
}

// createViolation builds a Violation from a deny entry, which is either a
// message string or an object with message, severity and field keys.
func createViolation(policy *Policy, entry any) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch v := entry.(type) {
	case string:
		violation.Message = v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if field, ok := v["field"].(string); ok {
			violation.Field = field
		}
	default:
		violation.Message = fmt.Sprintf("%v", entry)
	}

	return violation
}

// compileAndStorePolicy compiles the deny query of policy into dst.
func (e *Engine) compileAndStorePolicy(ctx context.Context, dst map[string]*compiledPolicy, policy Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if policy.Severity == "" {
		policy.Severity = SeverityError
	}

	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", policy.Name, err)
	}

	query, err := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy %s: %w", policy.Name, err)
	}

	dst[policy.Name] = &compiledPolicy{
		policy:   &policy,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Str("package", module.Package.Path.String()).
		Msg("Policy compiled successfully")

	return nil
}

// AddPolicy compiles policy and adds it, replacing any policy with the same name.
func (e *Engine) AddPolicy(ctx context.Context, policy Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileAndStorePolicy(ctx, e.policies, policy)
}

// ReplacePolicies compiles policies and swaps them in as the complete set.
// The current set is kept when any policy fails to compile.
func (e *Engine) ReplacePolicies(ctx context.Context, policies []Policy) error {
	next := make(map[string]*compiledPolicy, len(policies))
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, next, policies[i]); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.policies = next
	e.mu.Unlock()

	e.logger.Info().Int("count", len(next)).Msg("Policies replaced")
	return nil
}

// LoadPolicies loads policy files from paths and adds them to the engine.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := e.loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := e.AddPolicy(ctx, policies[i]); err != nil {
			return err
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// Watch reloads file policies from paths whenever a policy file changes.
// Policies that were not loaded from a file are kept. Watching stops when
// ctx is done.
func (e *Engine) Watch(ctx context.Context, paths []string) error {
	return e.loader.Watch(ctx, paths, func(policies []Policy) error {
		return e.reloadFilePolicies(ctx, policies)
	})
}

// reloadFilePolicies swaps the file-sourced policies for policies.
func (e *Engine) reloadFilePolicies(ctx context.Context, policies []Policy) error {
	next := make(map[string]*compiledPolicy, len(policies))
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, next, policies[i]); err != nil {
			return err
		}
	}

	e.mu.Lock()
	for name, cp := range e.policies {
		if _, fromFile := cp.policy.Metadata[MetadataSource]; fromFile {
			continue
		}
		if _, shadowed := next[name]; !shadowed {
			next[name] = cp
		}
	}
	e.policies = next
	e.mu.Unlock()

	e.logger.Info().Int("count", len(policies)).Msg("File policies reloaded")
	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	p := *cp.policy
	return &p, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	slices.SortFunc(policies, func(a, b Policy) int {
		return strings.Compare(a.Name, b.Name)
	})

	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	updated := *cp.policy
	updated.Enabled = enabled
	cp.policy = &updated

	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy state changed")
	return nil
}
