package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func noopTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Enabled() {
		t.Fatal("expected disabled tracer")
	}

	ctx, span := tr.Start(context.Background(), "test.span")
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown on disabled tracer should be a no-op: %v", err)
	}
}

func TestNew_UnknownSampler(t *testing.T) {
	_, err := New(Config{Enabled: true, Sampler: "bogus", Endpoint: "localhost:4317"})
	if err == nil {
		t.Fatal("expected error for unknown sampler strategy")
	}
}

func TestNew_InvalidRatio(t *testing.T) {
	_, err := New(Config{Enabled: true, Sampler: "ratio", SampleRatio: 2.0, Endpoint: "localhost:4317"})
	if err == nil {
		t.Fatal("expected error for out-of-range sample ratio")
	}
}

func TestSetError_NilIsOK(t *testing.T) {
	_, span := (&Tracer{tracer: noopTracer()}).Start(context.Background(), "x")
	SetError(span, nil)
	span.End()
}

func TestSetError_RecordsError(t *testing.T) {
	_, span := (&Tracer{tracer: noopTracer()}).Start(context.Background(), "x")
	SetError(span, errors.New("boom"))
	span.End()
}
