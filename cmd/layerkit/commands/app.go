package commands

import (
	"context"
	"fmt"

	"github.com/layerkit/layerkit/examples/users"
	"github.com/layerkit/layerkit/pkg/config"
	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/engine"
	"github.com/layerkit/layerkit/pkg/middleware"
	"github.com/layerkit/layerkit/pkg/policy"
	"github.com/layerkit/layerkit/pkg/telemetry"
	"github.com/layerkit/layerkit/pkg/transport"
)

// defaultUserServiceURL is used when the settings name no user-service host.
const defaultUserServiceURL = "http://localhost:8081"

// application is an assembled engine with its telemetry and policies.
type application struct {
	settings  *config.Settings
	telemetry *telemetry.Telemetry
	policies  *policy.Engine
	engine    *engine.Engine
}

// loadSettings reads path, or the defaults with environment overrides when
// path is empty.
func loadSettings(path string) (*config.Settings, error) {
	loader := config.NewLoader()
	if path == "" {
		return loader.Parse(nil, config.FormatYAML)
	}
	return loader.Load(path)
}

// newApplication assembles the engine described by settings.
func newApplication(ctx context.Context, settings *config.Settings, opts ...telemetry.Option) (*application, error) {
	tel, err := telemetry.NewTelemetry(&settings.Telemetry, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	app := &application{settings: settings, telemetry: tel}
	if err := app.assemble(ctx); err != nil {
		tel.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *application) assemble(ctx context.Context) error {
	logger := a.telemetry.Logger.NewComponentLogger("cli")

	hs, ok := a.settings.HostSettings(users.ServiceHostName)
	if !ok {
		hs = config.HostSettings{Name: users.ServiceHostName, BaseURL: defaultUserServiceURL}
		logger.WithField("base_url", hs.BaseURL).Warn("Host user-service is not configured, using default")
	}

	httpOpts := []transport.HTTPOption{
		transport.WithLogger(a.telemetry.Logger.NewComponentLogger("transport").Zerolog()),
	}
	if hs.Timeout > 0 {
		httpOpts = append(httpOpts, transport.WithTimeout(hs.Timeout))
	}
	tr := a.telemetry.Transport(transport.NewHTTPTransport(httpOpts...))

	var userOpts []users.Option
	if len(a.settings.Policies.Paths) > 0 {
		pe, err := newPolicyEngine(ctx, a.settings.Policies, a.telemetry.Logger)
		if err != nil {
			return err
		}
		a.policies = pe
		userOpts = append(userOpts, users.WithPolicy(pe))
	}

	cfg := engine.Config{
		Inbound:        []middleware.Inbound{telemetry.InboundLogging(a.telemetry.Logger)},
		Execution:      []middleware.Execution{a.telemetry.ExecutionMiddleware(), recoverHandler()},
		Outbound:       []middleware.Outbound{telemetry.OutboundLogging(a.telemetry.Logger)},
		Logger:         a.telemetry.Logger.Zerolog(),
		OnStageFailure: a.telemetry.StageObserver(),
		Intercept:      a.telemetry.Interceptor(),
	}
	users.Register(&cfg, hs.Host(), tr, userOpts...)

	eng, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble engine: %w", err)
	}
	a.engine = eng

	logger.WithFields(map[string]any{
		"operations": len(eng.Operations()),
		"policies":   a.policyCount(),
	}).Debug("Engine assembled")

	return nil
}

func (a *application) policyCount() int {
	if a.policies == nil {
		return 0
	}
	return len(a.policies.ListPolicies())
}

// Close flushes and stops telemetry.
func (a *application) Close(ctx context.Context) error {
	return a.telemetry.Shutdown(ctx)
}

// newPolicyEngine loads the configured policy files and optionally watches them.
func newPolicyEngine(ctx context.Context, ps config.PolicySettings, logger *telemetry.Logger) (*policy.Engine, error) {
	pe, err := policy.NewEngine(ctx, logger.NewComponentLogger("policy").Zerolog(), nil,
		policy.WithEnvironment(ps.Environment))
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}

	if err := pe.LoadPolicies(ctx, ps.Paths); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	if ps.Watch {
		if err := pe.Watch(ctx, ps.Paths); err != nil {
			return nil, fmt.Errorf("failed to watch policies: %w", err)
		}
	}

	return pe, nil
}

// recoverHandler turns a handler panic into a MappingFailure.
func recoverHandler() middleware.Execution {
	return middleware.Recover(func(_ context.Context, _ core.Command, recovered any) middleware.HandlerResult {
		return core.Err[core.DomainResult](core.MappingFailure{Message: fmt.Sprintf("handler panicked: %v", recovered)})
	})
}
