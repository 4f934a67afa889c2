package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/layerkit/layerkit/pkg/core"
)

const (
	// DefaultTimeout bounds a single HTTP call when no client is supplied.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 10 * 1024 * 1024
)

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	client     *http.Client
	serializer Serializer
	propagator propagation.TextMapPropagator
	logger     zerolog.Logger
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		if timeout > 0 {
			client := *t.client
			client.Timeout = timeout
			t.client = &client
		}
	}
}

// WithSerializer sets the payload serializer.
func WithSerializer(s Serializer) HTTPOption {
	return func(t *HTTPTransport) {
		if s != nil {
			t.serializer = s
		}
	}
}

// WithPropagator sets the trace context propagator.
func WithPropagator(p propagation.TextMapPropagator) HTTPOption {
	return func(t *HTTPTransport) {
		if p != nil {
			t.propagator = p
		}
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger zerolog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates an HTTP transport. By default it uses JSON payloads,
// the global OpenTelemetry propagator and a client with DefaultTimeout.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client:     &http.Client{Timeout: DefaultTimeout},
		serializer: JSONSerializer{},
		propagator: otel.GetTextMapPropagator(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, ep Endpoint, request any, response any) core.Failure {
	if err := ep.Method.Validate(); err != nil {
		return core.MappingFailure{Message: fmt.Sprintf("invalid endpoint %s: %v", ep, err)}
	}

	var body io.Reader
	if request != nil && ep.Method.HasBody() {
		encoded := t.serializer.Serialize(request)
		if f, failed := encoded.Failure(); failed {
			return f
		}
		payload, _ := encoded.Value()
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, string(ep.Method), ep.Path, body)
	if err != nil {
		return core.TransportFailure{Message: fmt.Sprintf("failed to build request for %s", ep), Cause: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", t.serializer.ContentType())
	}
	req.Header.Set("Accept", t.serializer.ContentType())
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug().Err(err).Str("endpoint", ep.String()).Msg("HTTP call failed")
		return core.TransportFailure{Message: fmt.Sprintf("%s failed", ep), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return core.TransportFailure{Message: fmt.Sprintf("failed to read response from %s", ep), Cause: err}
	}

	t.logger.Debug().
		Str("endpoint", ep.String()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("HTTP call completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.BackendFailure{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       string(data),
		}
	}

	if response == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return t.serializer.Deserialize(data, response)
}
