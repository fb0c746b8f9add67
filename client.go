package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohan-js/automated-api-testing-framework/metrics"
	"github.com/rohan-js/automated-api-testing-framework/tracing"
)

// RequestOptions carries the optional parts of a single request.
type RequestOptions struct {
	// EndpointName labels the request in results and metrics
	EndpointName string
	// Body is the JSON request body, nil for no body
	Body Payload
	// Headers are additional request headers
	Headers map[string]string
	// Query is appended to the request URL
	Query url.Values
}

// RequestEngine issues HTTP requests against the target and returns
// structured results. Transport failures are captured in the result, never
// returned as errors: a broken exchange is data for the oracle, not a crash.
//
// All calls are synchronous; the engine never issues concurrent requests on
// behalf of the oracle.
type RequestEngine struct {
	baseURL string
	client  *http.Client
	metrics metrics.Metrics
	tracer  tracing.Tracer
}

// RequestEngineOption configures a RequestEngine.
type RequestEngineOption func(*RequestEngine)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RequestEngineOption {
	return func(e *RequestEngine) {
		e.client = client
	}
}

// WithRequestTimeout bounds every exchange, default 5s.
func WithRequestTimeout(timeout time.Duration) RequestEngineOption {
	return func(e *RequestEngine) {
		e.client.Timeout = timeout
	}
}

// WithEngineMetrics sets the metrics collector for the engine.
func WithEngineMetrics(m metrics.Metrics) RequestEngineOption {
	return func(e *RequestEngine) {
		e.metrics = m
	}
}

// WithEngineTracer sets the tracer for the engine.
func WithEngineTracer(t tracing.Tracer) RequestEngineOption {
	return func(e *RequestEngine) {
		e.tracer = t
	}
}

// NewRequestEngine creates a RequestEngine for the given base URL.
func NewRequestEngine(baseURL string, opts ...RequestEngineOption) *RequestEngine {
	e := &RequestEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		metrics: &metrics.NoopMetrics{},
		tracer:  &tracing.NoopTracer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BaseURL returns the configured base URL without a trailing slash.
func (e *RequestEngine) BaseURL() string {
	return e.baseURL
}

// Request issues a single HTTP exchange and returns its result.
func (e *RequestEngine) Request(ctx context.Context, method, path string, opts RequestOptions) RequestResult {
	method = strings.ToUpper(method)
	fullURL := e.baseURL + path
	if len(opts.Query) > 0 {
		fullURL += "?" + opts.Query.Encode()
	}

	ctx, span := e.tracer.StartRequest(ctx, opts.EndpointName, method, path)
	defer span.End()

	result := RequestResult{
		EndpointName: opts.EndpointName,
		Method:       method,
		URL:          fullURL,
		Path:         path,
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			result.Err = err
			span.SetError(err)
			e.metrics.RequestFailed(opts.EndpointName, method, "encode")
			return result
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		result.Err = err
		span.SetError(err)
		e.metrics.RequestFailed(opts.EndpointName, method, "build")
		return result
	}
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range opts.Headers {
		req.Header.Set(name, value)
	}

	started := time.Now()
	resp, err := e.client.Do(req)
	result.Latency = time.Since(started)
	if err != nil {
		result.Err = err
		span.SetError(err)
		e.metrics.RequestFailed(opts.EndpointName, method, "transport")
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Body = decodeResponseBody(resp)
	e.metrics.RequestCompleted(opts.EndpointName, method, resp.StatusCode, result.Latency)
	return result
}

// SendEndpoint issues a request described by an endpoint spec. A nil payload
// falls back to the endpoint's default body; GET requests never carry a body.
func (e *RequestEngine) SendEndpoint(ctx context.Context, endpoint EndpointSpec, payload Payload, headers map[string]string) RequestResult {
	body := payload
	if body == nil {
		body = endpoint.Body
	}
	if endpoint.Method == "GET" {
		body = nil
	}

	return e.Request(ctx, endpoint.Method, endpoint.Path, RequestOptions{
		EndpointName: endpoint.Name,
		Body:         body,
		Headers:      headers,
	})
}

// decodeResponseBody decodes a JSON body into a generic value, falling back
// to the raw text for non-JSON responses or malformed JSON.
func decodeResponseBody(resp *http.Response) any {
	raw, err := io.ReadAll(resp.Body)
	if err != nil || len(raw) == 0 {
		return nil
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}
	return string(raw)
}
