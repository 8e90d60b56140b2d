// Package tracing wires OpenTelemetry spans around optimizer runs and HTTP requests.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the optimizer and the API
const (
	RunIDKey       = attribute.Key("schedopt.run_id")
	JobsKey        = attribute.Key("schedopt.jobs")
	MachinesKey    = attribute.Key("schedopt.machines")
	SolverKey      = attribute.Key("schedopt.solver")
	StatusKey      = attribute.Key("schedopt.status")
	MakespanKey    = attribute.Key("schedopt.makespan_min")
	UtilizationKey = attribute.Key("schedopt.utilization")
	FallbackKey    = attribute.Key("schedopt.fallback_reason")
)

// Config holds the tracing configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // host:port of an OTLP HTTP collector
	SampleRatio    float64 // outside (0, 1) samples everything
	Enabled        bool
}

// Provider owns the SDK tracer provider and the tracer spans are started from
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Disabled returns a provider whose spans are never exported
func Disabled(serviceName string) *Provider {
	return NewWithProvider(sdktrace.NewTracerProvider(), serviceName)
}

// NewWithProvider wraps an existing SDK provider (tests use an in-memory exporter)
func NewWithProvider(tp *sdktrace.TracerProvider, serviceName string) *Provider {
	return &Provider{tp: tp, tracer: tp.Tracer(serviceName)}
}

// InitTracer exports spans to cfg.OTLPEndpoint and installs the provider and
// W3C propagator globally. A disabled config yields a non-exporting provider.
func InitTracer(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return Disabled(cfg.ServiceName), nil
	}

	ctx := context.Background()
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", cfg.OTLPEndpoint, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator())
	return NewWithProvider(tp, cfg.ServiceName), nil
}

func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// Sampler keeps every trace unless ratio is strictly between 0 and 1. Child
// spans follow the decision of a sampled parent, so an HTTP request and the
// optimizer run it triggers are kept or dropped together.
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the tracer spans are started from
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// StartSpan starts a span named name as a child of any span in ctx
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RunAttributes describes the input of one optimizer run
func RunAttributes(runID string, jobs, machines int) []attribute.KeyValue {
	return []attribute.KeyValue{
		RunIDKey.String(runID),
		JobsKey.Int(jobs),
		MachinesKey.Int(machines),
	}
}

// ResultAttributes describes the schedule a run produced
func ResultAttributes(solver, status string, makespan int, utilization float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		SolverKey.String(solver),
		StatusKey.String(status),
		MakespanKey.Int(makespan),
		UtilizationKey.Float64(utilization),
	}
}

// RecordFallback adds a "fallback" event to the span in ctx
func RecordFallback(ctx context.Context, reason string) {
	trace.SpanFromContext(ctx).AddEvent("fallback", trace.WithAttributes(FallbackKey.String(reason)))
}

// SetError marks the span in ctx as failed
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
