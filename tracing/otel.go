// Package tracing provides OpenTelemetry tracing integration for the
// invariant-testing oracle.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer defines the interface for distributed tracing.
type Tracer interface {
	// StartRun starts a new root span for a suite run.
	StartRun(ctx context.Context, runID string) (context.Context, Span)

	// StartPhase starts a child span for one suite phase.
	StartPhase(ctx context.Context, runID, phase string) (context.Context, Span)

	// StartRequest starts a child span for a single HTTP exchange.
	StartRequest(ctx context.Context, endpoint, method, path string) (context.Context, Span)
}

// Span represents an active tracing span.
type Span interface {
	// End completes the span.
	End()

	// SetError marks the span as having an error.
	SetError(err error)

	// SetStatus sets the span status.
	SetStatus(code codes.Code, description string)

	// SetAttributes adds attributes to the span.
	SetAttributes(attrs ...attribute.KeyValue)

	// AddEvent adds an event to the span.
	AddEvent(name string, attrs ...attribute.KeyValue)
}

// OTelTracer implements Tracer using OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

// Config holds configuration for OTelTracer.
type Config struct {
	// ServiceName is the name of the service for tracing.
	ServiceName string
	// TracerProvider is the OpenTelemetry tracer provider. If nil, the global provider is used.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "apitest",
		TracerProvider: nil,
	}
}

// NewOTelTracer creates a new OTelTracer with the given configuration.
func NewOTelTracer(cfg Config) *OTelTracer {
	var tp trace.TracerProvider
	if cfg.TracerProvider != nil {
		tp = cfg.TracerProvider
	} else {
		tp = otel.GetTracerProvider()
	}

	return &OTelTracer{
		tracer: tp.Tracer(cfg.ServiceName),
	}
}

// StartRun starts a new root span for a suite run.
func (t *OTelTracer) StartRun(ctx context.Context, runID string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
	)
	return ctx, &otelSpan{span: span}
}

// StartPhase starts a child span for one suite phase.
func (t *OTelTracer) StartPhase(ctx context.Context, runID, phase string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "phase.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("phase.name", phase),
		),
	)
	return ctx, &otelSpan{span: span}
}

// StartRequest starts a child span for a single HTTP exchange.
func (t *OTelTracer) StartRequest(ctx context.Context, endpoint, method, path string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "request.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("endpoint.name", endpoint),
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	return ctx, &otelSpan{span: span}
}

// otelSpan wraps an OpenTelemetry span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetError(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s *otelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// NoopTracer is a no-op implementation of Tracer for testing or when tracing is disabled.
type NoopTracer struct{}

var _ Tracer = (*NoopTracer)(nil)

func (n *NoopTracer) StartRun(ctx context.Context, runID string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *NoopTracer) StartPhase(ctx context.Context, runID, phase string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *NoopTracer) StartRequest(ctx context.Context, endpoint, method, path string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

// noopSpan is a no-op span implementation.
type noopSpan struct{}

func (s *noopSpan) End()                                              {}
func (s *noopSpan) SetError(err error)                                {}
func (s *noopSpan) SetStatus(code codes.Code, description string)     {}
func (s *noopSpan) SetAttributes(attrs ...attribute.KeyValue)         {}
func (s *noopSpan) AddEvent(name string, attrs ...attribute.KeyValue) {}
