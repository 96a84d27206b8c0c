package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "graphwright"

// TracingOption configures tracer provider initialization.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	sampler  sdktrace.Sampler
	exporter sdktrace.SpanExporter
}

// WithSampler sets the sampler deciding which traces are recorded.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithExporter attaches a span exporter. Without one the provider records
// spans in process only, which is enough for log correlation.
func WithExporter(exporter sdktrace.SpanExporter) TracingOption {
	return func(o *tracingOptions) {
		o.exporter = exporter
	}
}

// InitTracing builds a tracer provider, registers it globally, and returns
// it so the caller can shut it down. When enabled is false the provider is
// a no-op and is safe to leave registered.
func InitTracing(ctx context.Context, enabled bool, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !enabled {
		provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		otel.SetTracerProvider(provider)
		return provider, nil
	}

	options := &tracingOptions{
		sampler: sdktrace.AlwaysSample(),
	}
	for _, opt := range opts {
		opt(options)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(res),
	}
	if options.exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(options.exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	return provider, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
