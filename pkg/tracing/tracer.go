package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/price-tracker/pkg/logger"
)

// DefaultJaegerEndpoint is used when no collector endpoint is configured
const DefaultJaegerEndpoint = "http://localhost:14268/api/traces"

// InitTracer initializes OpenTelemetry tracer with Jaeger exporter
func InitTracer(serviceName, version, endpoint string) (trace.TracerProvider, error) {
	if endpoint == "" {
		endpoint = DefaultJaegerEndpoint
	}

	logger.Logger.Info().
		Str("service", serviceName).
		Str("endpoint", endpoint).
		Msg("Initializing tracer")

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return tp, nil
}

// Shutdown flushes pending spans and stops the provider
func Shutdown(ctx context.Context, tp trace.TracerProvider) error {
	if provider, ok := tp.(*sdktrace.TracerProvider); ok {
		return provider.Shutdown(ctx)
	}
	return nil
}
