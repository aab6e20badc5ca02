// Package tracing wraps OpenTelemetry span creation for the proxy engine's
// candidate-attempt loop (Component F), grounded on the teacher's
// pkg/telemetry/tracing.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls whether and how spans are exported. Unlike the provider
// document, this is process-level (set at startup, not hot-reloaded).
type Config struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	Sampler     string // "always", "never", "ratio"
	SampleRatio float64
}

// Tracer wraps an OpenTelemetry tracer. A disabled Tracer returns noop spans
// at negligible cost, so callers never need to branch on Enabled().
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// New builds a Tracer from cfg. If cfg.Enabled is false, a noop tracer is
// returned and no exporter is dialed.
func New(cfg Config) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("uniapi"), enabled: false}, nil
	}

	sampler, err := createSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("tracing sampler: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := otlptracegrpc.NewClient(opts...)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "uniapi"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{tracer: provider.Tracer("uniapi"), provider: provider, enabled: true}, nil
}

// Start begins a span, linked to any parent span already in ctx.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes pending spans. Safe to call on a disabled Tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Enabled reports whether spans are actually being exported.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	var base sdktrace.Sampler
	switch strategy {
	case "always", "":
		base = sdktrace.AlwaysSample()
	case "never":
		base = sdktrace.NeverSample()
	case "ratio":
		if ratio < 0.0 || ratio > 1.0 {
			return nil, errors.New("sample ratio must be between 0.0 and 1.0")
		}
		base = sdktrace.TraceIDRatioBased(ratio)
	default:
		return nil, fmt.Errorf("unknown sampler strategy: %s", strategy)
	}
	return sdktrace.ParentBased(base), nil
}

// SetError records err on span and marks its status accordingly. A nil err
// sets the status to Ok.
func SetError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// candidate attribute keys, namespaced to avoid clashing with OTel semconv.
const (
	AttrProvider  = "uniapi.provider"
	AttrModel     = "uniapi.model"
	AttrRequestID = "uniapi.request_id"
	AttrAttempt   = "uniapi.attempt"
)

// SetCandidateAttributes tags a span with the provider/model/request being
// attempted and its 1-based position in the failover sequence.
func SetCandidateAttributes(span trace.Span, requestID, provider, model string, attempt int) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
		attribute.Int(AttrAttempt, attempt),
	)
}
