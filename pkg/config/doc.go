// Package config loads the process settings of a layerkit service.
//
// # Overview
//
// Settings carry the telemetry configuration, the backend hosts handlers can
// reach, and the policy files guarding requests. They are read from YAML, JSON
// or CUE files, overridden from LAYERKIT_* environment variables and validated
// before use.
//
// # Components
//
// Loader: Reads a settings file, applies environment overrides and validates
// the result with struct tags and the telemetry rules.
//
// SchemaRegistry: Manages CUE schemas. JSON and CUE sources are unified with
// the built-in #Settings schema, so unknown fields and out-of-range values are
// reported with file positions.
//
// # Usage Example
//
//	settings, err := config.Load("layerkit.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	host, ok := settings.Host("user-service")
//	if !ok {
//	    log.Fatal("user-service is not configured")
//	}
//
// # CUE Settings
//
//	service: "users-api"
//
//	telemetry: {
//	    logging: level: "debug"
//	    metrics: listen_address: ":9090"
//	}
//
//	hosts: [{
//	    name:     "user-service"
//	    base_url: "http://users.internal:8080"
//	    timeout:  "5s"
//	}]
//
//	policies: {
//	    paths: ["policies/"]
//	    watch: true
//	}
//
// # Environment Overrides
//
// Every field tagged with env can be overridden. Common variables:
//
//	LAYERKIT_SERVICE             service name
//	LAYERKIT_LOG_LEVEL           trace, debug, info, warn, error, fatal
//	LAYERKIT_LOG_FORMAT          console, json
//	LAYERKIT_TRACING_ENABLED     true, false
//	LAYERKIT_TRACING_ENDPOINT    OTLP collector address
//	LAYERKIT_METRICS_ADDRESS     metrics listen address
//	LAYERKIT_POLICY_PATHS        comma-separated policy paths
//	LAYERKIT_HOSTS_0_BASE_URL    base URL of the first host
package config
