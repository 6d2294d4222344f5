package util

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "order-sync-service"

var tracer trace.Tracer

// TracingOptions configures the tracer provider
type TracingOptions struct {
	ServiceName    string
	Environment    string
	JaegerEndpoint string
	// SampleRatio is the fraction of new traces kept; parents decide for children
	SampleRatio float64
}

// InitTracer initializes OpenTelemetry tracing. Spans are exported to Jaeger
// when an endpoint is set and only recorded locally otherwise.
func InitTracer(opts TracingOptions) (*sdktrace.TracerProvider, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaultTracerName
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	}

	if opts.JaegerEndpoint != "" {
		exporter, err := jaeger.New(
			jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)),
		)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(opts.ServiceName)

	log.Printf("Tracer initialized: service=%s, endpoint=%q, ratio=%.2f",
		opts.ServiceName, opts.JaegerEndpoint, opts.SampleRatio)
	return tp, nil
}

// GetTracer returns the global tracer
func GetTracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.Tracer(defaultTracerName)
	}
	return tracer
}

// StartSpan starts a new span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName)
}

// SpanError marks span as failed with err. A nil err is ignored.
func SpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
