package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/platformbuilds/mirador-servicehealth"

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// NewTracerProvider creates an OTLP/gRPC exporting tracer provider and
// installs it globally.
func NewTracerProvider(ctx context.Context, serviceName, serviceVersion, otlpEndpoint string) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("mirador"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// HealthTracer creates spans around refresh cycles, widget fetches and
// backend queries.
type HealthTracer struct {
	tracer trace.Tracer
}

// NewHealthTracer uses provider, or the global provider when nil.
func NewHealthTracer(provider trace.TracerProvider) *HealthTracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &HealthTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartRefreshSpan starts the root span of a dashboard refresh cycle.
func (t *HealthTracer) StartRefreshSpan(ctx context.Context, cycleID string, refreshToken uint64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "servicehealth.refresh",
		trace.WithAttributes(
			attribute.String("refresh.cycle_id", cycleID),
			attribute.Int64("refresh.token", int64(refreshToken)),
		),
	)
}

// StartWidgetSpan starts the span of one widget fetch.
func (t *HealthTracer) StartWidgetSpan(ctx context.Context, widget string, generation uint64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "servicehealth.widget",
		trace.WithAttributes(
			attribute.String("widget.name", widget),
			attribute.Int64("widget.generation", int64(generation)),
		),
	)
}

// StartBackendQuerySpan starts a span for a single metrics backend call.
func (t *HealthTracer) StartBackendQuerySpan(ctx context.Context, queryType, query string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "victoria_metrics.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("query.type", queryType),
			attribute.String("query.text", query),
		),
	)
}

// StartHTTPSpan starts the server span of an API request.
func (t *HealthTracer) StartHTTPSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		),
	)
}

// RecordQueryMetrics records duration and outcome on a span.
func (t *HealthTracer) RecordQueryMetrics(span trace.Span, duration time.Duration, recordCount int, success bool) {
	span.SetAttributes(
		attribute.Int64("query.duration_ms", duration.Milliseconds()),
		attribute.Int("query.record_count", recordCount),
		attribute.Bool("query.success", success),
	)
	if !success {
		span.SetStatus(codes.Error, "query failed")
	}
}

// RecordError records an error on a span
func (t *HealthTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
