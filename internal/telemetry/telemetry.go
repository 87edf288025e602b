// Package telemetry wires the global OpenTelemetry tracer provider from
// configuration. With telemetry disabled the global provider stays a no-op
// and every span helper in the rest of the codebase costs nothing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/arosstale/single-file-agents/internal/config"
)

const tracerName = "github.com/arosstale/single-file-agents"

// Shutdown flushes and stops the tracer provider. Safe to call once.
type Shutdown func(ctx context.Context) error

// Init installs the global tracer provider per the telemetry config and
// returns a shutdown hook. A disabled or noop config installs nothing; the
// default global provider already discards spans.
func Init(ctx context.Context, cfg config.TelemetryConfig, serviceName, version string) (Shutdown, error) {
	if !cfg.Enabled || cfg.Protocol == "noop" || cfg.Protocol == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "grpc":
		opts := []otlptracegrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q", cfg.Protocol)
	}
}

// Tracer returns the tracer every package in this module records spans on.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
