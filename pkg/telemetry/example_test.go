package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/layerkit/layerkit/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	telemetry.FromContext(ctx).NewComponentLogger("example").Debug("Application started")

	fmt.Println("metrics enabled:", tel.Metrics.Enabled())
	// Output: metrics enabled: true
}

// Example_eventSubscription demonstrates subscribing to execution events.
func Example_eventSubscription() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("%s: %s\n", event.Type, event.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = tel.Events.PublishExecutionStarted("create-user", "c-1")
	_ = tel.Events.PublishExecutionCompleted("create-user", "c-1", 12*time.Millisecond)
	_ = tel.Events.PublishStageFailed("create-user", "c-2", "client_to_command", "validation", "[validation] age: Must be 18 or older")

	// Output: stage.failed: Stage client_to_command of create-user failed: [validation] age: Must be 18 or older
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Events.BufferSize = 10000

	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid:", err)
		return
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}
