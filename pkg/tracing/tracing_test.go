package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorded() (*Provider, *tracetest.InMemoryExporter) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return NewWithProvider(tp, "schedopt-test"), exp
}

func TestStartSpanRecordsError(t *testing.T) {
	p, exp := newRecorded()

	ctx, span := p.StartSpan(context.Background(), "scheduler.exact")
	SetError(ctx, errors.New("solver timeout"))
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "scheduler.exact" {
		t.Errorf("Unexpected span name %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("Expected error status, got %v", spans[0].Status.Code)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	p, exp := newRecorded()
	handler := HTTPMiddleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/ai/schedule-optimize", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 to pass through, got %d", rr.Code)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "POST /api/ai/schedule-optimize" {
		t.Errorf("Unexpected span name %q", spans[0].Name)
	}
	if spans[0].Status.Code == codes.Error {
		t.Errorf("Client errors should not mark the span as failed")
	}
}

func TestDisabledProvider(t *testing.T) {
	p, err := InitTracer(Config{ServiceName: "schedopt", Enabled: false})
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	_, span := p.StartSpan(context.Background(), "noop")
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestRunAndResultAttributes(t *testing.T) {
	p, exp := newRecorded()

	ctx, span := p.StartSpan(context.Background(), "scheduler.optimize", RunAttributes("run-1", 3, 2)...)
	RecordFallback(ctx, "timeout")
	span.SetAttributes(ResultAttributes("HEURISTIC", "HEURISTIC", 150, 0.83)...)
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		got[kv.Key] = kv.Value
	}
	if got[RunIDKey].AsString() != "run-1" || got[JobsKey].AsInt64() != 3 || got[MakespanKey].AsInt64() != 150 {
		t.Errorf("Unexpected attributes %v", spans[0].Attributes)
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "fallback" {
		t.Fatalf("Expected a fallback event, got %v", spans[0].Events)
	}
	if v := spans[0].Events[0].Attributes[0]; v.Key != FallbackKey || v.Value.AsString() != "timeout" {
		t.Errorf("Unexpected fallback attribute %v", v)
	}
}

func TestSampler(t *testing.T) {
	tests := map[float64]string{
		0:    "AlwaysOnSampler",
		1:    "AlwaysOnSampler",
		2:    "AlwaysOnSampler",
		0.25: "ParentBased{root:TraceIDRatioBased{0.25}",
	}
	for ratio, want := range tests {
		if got := Sampler(ratio).Description(); len(got) < len(want) || got[:len(want)] != want {
			t.Errorf("Sampler(%v) = %s, expected prefix %s", ratio, got, want)
		}
	}
}

func TestHTTPMiddleware_ContinuesIncomingTrace(t *testing.T) {
	p, exp := newRecorded()
	handler := HTTPMiddleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != traceID {
		t.Errorf("Expected span to join trace %s, got %s", traceID, got)
	}
	if rr.Header().Get("traceparent") == "" {
		t.Error("Expected traceparent on the response")
	}
}
