package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/layerkit/layerkit/pkg/backend"
	"github.com/layerkit/layerkit/pkg/conversion"
	"github.com/layerkit/layerkit/pkg/core"
	"github.com/layerkit/layerkit/pkg/engine"
	"github.com/layerkit/layerkit/pkg/middleware"
	"github.com/layerkit/layerkit/pkg/operation"
	"github.com/layerkit/layerkit/pkg/transport"
)

type pingRequest struct {
	core.ClientRequestTag
	Name string
}

type pingResponse struct {
	core.ClientResponseTag
	Reply string
}

type pingCommand struct {
	core.CommandTag
	Name string
}

type ponged struct {
	core.DomainResultTag
	Reply string
}

func newTestTelemetry(t *testing.T) (*Telemetry, *bytes.Buffer, *tracetest.SpanRecorder) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	var buf bytes.Buffer
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	tel, err := NewTelemetry(cfg, WithLogWriter(&buf), WithTracerProvider(provider))
	if err != nil {
		t.Fatalf("NewTelemetry() error = %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	return tel, &buf, rec
}

// pingOperation rejects empty names in its converter and refuses "nobody" in its handler.
func pingOperation(id core.OperationID) operation.Spec {
	return operation.Define[pingRequest, pingResponse, pingCommand, ponged](
		id,
		conversion.ConverterFunc[pingRequest, pingCommand](func(_ context.Context, req pingRequest) core.Result[core.Failure, pingCommand] {
			if req.Name == "" {
				return core.Err[pingCommand](core.ValidationFailure{Field: "name", Message: "is required"})
			}
			return core.Ok(pingCommand{Name: req.Name})
		}),
		operation.HandlerFunc[pingCommand, ponged](func(_ context.Context, cmd pingCommand, _ *middleware.ExecutionContext, _ *backend.Registry) core.Result[core.Failure, ponged] {
			if cmd.Name == "nobody" {
				return core.Err[ponged](core.DomainFailure{Code: core.CodeNotFound, Message: "nobody is home"})
			}
			return core.Ok(ponged{Reply: "pong " + cmd.Name})
		}),
		conversion.Infallible(func(res ponged) pingResponse { return pingResponse{Reply: res.Reply} }),
	)
}

func newInstrumentedEngine(t *testing.T, tel *Telemetry) *engine.Engine {
	t.Helper()

	eng, err := engine.New(engine.Config{
		Operations:     []operation.Spec{pingOperation("ping")},
		Inbound:        []middleware.Inbound{InboundLogging(tel.Logger)},
		Execution:      []middleware.Execution{tel.ExecutionMiddleware()},
		Outbound:       []middleware.Outbound{OutboundLogging(tel.Logger)},
		Logger:         tel.Logger.Zerolog(),
		OnStageFailure: tel.StageObserver(),
		Intercept:      tel.Interceptor(),
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return eng
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"production", func(c *Config) { *c = *ProductionConfig() }, ""},
		{"development", func(c *Config) { *c = *DevelopmentConfig() }, ""},
		{"missing service", func(c *Config) { c.ServiceName = "" }, "service name is required"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, "invalid trace exporter"},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp" }, "endpoint is required"},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, "sampling rate"},
		{"metrics without address", func(c *Config) { c.Metrics.ListenAddress = "" }, "listen address"},
		{"empty event buffer", func(c *Config) { c.Events.Enabled = true; c.Events.BufferSize = 0 }, "buffer size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerWithWriter(LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewLoggerWithWriter() error = %v", err)
	}

	ec := middleware.NewExecutionContext("create-user")
	logger.NewComponentLogger("users").WithExecution(ec).Info("Creating user")
	logger.Debug("hidden below info")

	out := buf.String()
	for _, want := range []string{
		`"component":"users"`,
		`"operation_id":"create-user"`,
		`"correlation_id":"` + ec.CorrelationID + `"`,
		`"message":"Creating user"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got %s", want, out)
		}
	}
	if strings.Contains(out, "hidden below info") {
		t.Errorf("Expected debug message to be filtered, got %s", out)
	}
}

func TestFromContextDefaultsToNop(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("Expected non-nil logger")
	}
	logger.Info("discarded")

	tel, _, _ := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())
	if FromContext(ctx) != tel.Logger {
		t.Error("Expected logger stored by WithContext")
	}
	if FromTelemetryContext(ctx) != tel {
		t.Error("Expected telemetry stored by WithContext")
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m.RecordExecutionStarted("ping")
	m.RecordExecutionCompleted("ping", OutcomeSuccess, time.Millisecond)
	m.RecordStageFailure("ping", "execution", "domain")
	m.RecordBackendCall("users", OutcomeSuccess, time.Millisecond)

	if m.Enabled() {
		t.Error("Expected disabled metrics")
	}
	if err := m.StartMetricsServer(nil); err != nil {
		t.Errorf("StartMetricsServer() error = %v", err)
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 from disabled handler, got %d", rr.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	tel, _, _ := newTestTelemetry(t)
	tel.Metrics.RecordBackendCall("user-service", OutcomeSuccess, 20*time.Millisecond)

	rr := httptest.NewRecorder()
	tel.Metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rr.Body.String(), `layerkit_backend_calls_total{host="user-service",outcome="success"} 1`) {
		t.Errorf("Expected backend call counter in exposition, got:\n%s", rr.Body.String())
	}
}

func TestExecutionInstrumentation(t *testing.T) {
	tel, logs, spans := newTestTelemetry(t)
	eng := newInstrumentedEngine(t, tel)

	var (
		mu     sync.Mutex
		events []string
	)
	tel.Events.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}, nil)

	ctx := context.Background()

	resp, err := core.Unwrap(engine.Execute[pingResponse](ctx, eng, "ping", pingRequest{Name: "bo"}))
	if err != nil || resp.Reply != "pong bo" {
		t.Fatalf("Execute() = %v, %v", resp, err)
	}

	if _, err := core.Unwrap(eng.Execute(ctx, "ping", pingRequest{Name: "nobody"})); !core.IsDomain(err) {
		t.Fatalf("Expected DomainFailure, got %v", err)
	}

	if _, err := core.Unwrap(eng.Execute(ctx, "ping", pingRequest{})); !core.IsValidation(err) {
		t.Fatalf("Expected ValidationFailure, got %v", err)
	}

	if _, err := core.Unwrap(eng.Execute(ctx, "missing", pingRequest{Name: "bo"})); !core.IsMapping(err) {
		t.Fatalf("Expected MappingFailure, got %v", err)
	}

	m := tel.Metrics
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"started", testutil.ToFloat64(m.executionsStarted.WithLabelValues("ping")), 2},
		{"succeeded", testutil.ToFloat64(m.executionsCompleted.WithLabelValues("ping", OutcomeSuccess)), 1},
		{"failed", testutil.ToFloat64(m.executionsCompleted.WithLabelValues("ping", OutcomeFailure)), 1},
		{"in flight", testutil.ToFloat64(m.executionsInFlight), 0},
		{"handler stage", testutil.ToFloat64(m.stageFailures.WithLabelValues("ping", "execution", "domain")), 1},
		{"converter stage", testutil.ToFloat64(m.stageFailures.WithLabelValues("ping", "client_to_command", "validation")), 1},
		{"resolve stage", testutil.ToFloat64(m.stageFailures.WithLabelValues("missing", "resolve", "mapping")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	var executions, pipelines []sdktrace.ReadOnlySpan
	for _, span := range spans.Ended() {
		switch span.Name() {
		case "operation.execute":
			executions = append(executions, span)
		case "operation.pipeline":
			pipelines = append(pipelines, span)
		}
	}
	if len(executions) != 2 || len(pipelines) != 4 {
		t.Fatalf("Expected 2 execution and 4 pipeline spans, got %d and %d", len(executions), len(pipelines))
	}
	if executions[0].Status().Code != codes.Ok {
		t.Errorf("Expected successful execution span, got %v", executions[0].Status())
	}
	if executions[1].Status().Code != codes.Error {
		t.Errorf("Expected failed execution span, got %v", executions[1].Status())
	}
	if executions[0].Parent().SpanID() != pipelines[0].SpanContext().SpanID() {
		t.Error("Expected execution span to nest under the pipeline span")
	}
	if pipelines[0].Status().Code != codes.Ok {
		t.Errorf("Expected successful pipeline span, got %v", pipelines[0].Status())
	}

	var stageEvents []string
	for _, span := range pipelines {
		for _, ev := range span.Events() {
			if ev.Name != EventTypeStageFailed {
				continue
			}
			for _, attr := range ev.Attributes {
				if attr.Key == AttrStage {
					stageEvents = append(stageEvents, attr.Value.AsString())
				}
			}
		}
	}
	if got := strings.Join(stageEvents, ","); got != "execution,client_to_command,resolve" {
		t.Errorf("stage events on pipeline spans = %s, want execution,client_to_command,resolve", got)
	}

	mu.Lock()
	gotEvents := strings.Join(events, ",")
	mu.Unlock()
	wantEvents := strings.Join([]string{
		EventTypeExecutionStarted, EventTypeExecutionCompleted,
		EventTypeExecutionStarted, EventTypeExecutionFailed, EventTypeStageFailed,
		EventTypeStageFailed,
		EventTypeStageFailed,
	}, ",")
	if gotEvents != wantEvents {
		t.Errorf("events = %s, want %s", gotEvents, wantEvents)
	}

	out := logs.String()
	for _, want := range []string{"Request received", "Handler completed", "Handler failed", "Response sent", `"stage":"client_to_command"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected logs to contain %q", want)
		}
	}
}

func TestTransportInstrumentation(t *testing.T) {
	tel, _, spans := newTestTelemetry(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr := tel.Transport(transport.NewHTTPTransport())
	host := strings.TrimPrefix(server.URL, "http://")

	type status struct {
		OK bool `json:"ok"`
	}

	res := transport.Execute[status](context.Background(), tr, transport.NewEndpoint(transport.MethodGet, "/up").Resolve(server.URL), nil)
	if v, ok := res.Value(); !ok || !v.OK {
		t.Fatalf("Expected success, got %v", res)
	}

	f := tr.Do(context.Background(), transport.NewEndpoint(transport.MethodGet, "/down").Resolve(server.URL), nil, nil)
	if !core.IsBackend(f) {
		t.Fatalf("Expected BackendFailure, got %v", f)
	}

	if got := testutil.ToFloat64(tel.Metrics.backendCalls.WithLabelValues(host, OutcomeSuccess)); got != 1 {
		t.Errorf("successful backend calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(tel.Metrics.backendCalls.WithLabelValues(host, OutcomeFailure)); got != 1 {
		t.Errorf("failed backend calls = %v, want 1", got)
	}

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("Expected 2 backend spans, got %d", len(ended))
	}
	var sawStatus bool
	for _, attr := range ended[1].Attributes() {
		if attr.Key == AttrBackendStatus && attr.Value.AsInt64() == http.StatusServiceUnavailable {
			sawStatus = true
		}
	}
	if !sawStatus {
		t.Errorf("Expected status code attribute on failed span, got %v", ended[1].Attributes())
	}
}

func TestEventPublisherAsyncDrainsOnShutdown(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 64, MaxBatchSize: 8, EnableAsync: true})
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}

	var (
		mu    sync.Mutex
		count int
	)
	ep.Subscribe(func(Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}, FilterByOperation("ping"))

	for range 20 {
		if err := ep.PublishExecutionStarted("ping", "c-1"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	_ = ep.PublishExecutionStarted("other", "c-2")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 20 {
		t.Errorf("Expected 20 delivered events, got %d", count)
	}

	if err := ep.PublishExecutionStarted("ping", "c-3"); err == nil {
		t.Error("Expected error publishing after shutdown")
	}
}

func TestEventPublisherDeliversEveryAcceptedEvent(t *testing.T) {
	for range 20 {
		ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 1024, MaxBatchSize: 4, EnableAsync: true})
		if err != nil {
			t.Fatalf("NewEventPublisher() error = %v", err)
		}

		var delivered atomic.Int64
		ep.Subscribe(func(Event) { delivered.Add(1) }, nil)

		var (
			accepted atomic.Int64
			wg       sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					if ep.PublishExecutionStarted("ping", "c-1") == nil {
						accepted.Add(1)
					}
				}
			}()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ep.Shutdown(ctx); err != nil {
			cancel()
			t.Fatalf("Shutdown() error = %v", err)
		}
		cancel()
		wg.Wait()

		if delivered.Load() != accepted.Load() {
			t.Fatalf("Accepted %d events but delivered %d", accepted.Load(), delivered.Load())
		}
	}
}

func TestEventFilters(t *testing.T) {
	ep, _ := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 1})

	var got []string
	ep.Subscribe(func(e Event) { got = append(got, e.Type) }, FilterByLevel(EventLevelWarning))
	ep.AddFilter(func(e Event) bool { return e.OperationID != "ignored" })

	_ = ep.PublishExecutionStarted("ping", "c")
	_ = ep.PublishExecutionFailed("ping", "c", "domain", "boom")
	_ = ep.PublishStageFailed("ping", "c", "execution", "domain", "boom")
	_ = ep.PublishExecutionFailed("ignored", "c", "domain", "boom")

	want := []string{EventTypeExecutionFailed, EventTypeStageFailed}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("filtered events = %v, want %v", got, want)
	}

	if !FilterByType(EventTypeStageFailed)(Event{Type: EventTypeStageFailed}) {
		t.Error("Expected FilterByType to accept its type")
	}
}
