// Package telemetry wires OpenTelemetry tracing and metrics for the daemon.
//
// Spans are exported over OTLP gRPC when enabled. Metrics always flow through
// a Prometheus reader registered with the default registry, so the HTTP
// /metrics endpoint serves them via pull; no push collector is required.
// Telemetry failures never crash the application; when tracing is disabled or
// unreachable, the global no-op tracer keeps instrumented code paths cheap.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds telemetry configuration.
type Config struct {
	// Enabled turns span export on. Metrics are always collected; they are
	// pull-based and cost nothing without a scraper.
	Enabled bool `koanf:"enabled"`

	// ServiceName identifies this process in traces.
	ServiceName string `koanf:"service_name"`

	// Endpoint is the OTLP gRPC collector address, host:port.
	Endpoint string `koanf:"endpoint"`

	// Insecure disables TLS toward the collector.
	Insecure bool `koanf:"insecure"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "ragd"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
}

// Telemetry owns the tracer and meter provider lifecycles.
type Telemetry struct {
	traces *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider
}

// New installs the global meter provider, bridged into the default Prometheus
// registry, and, when enabled, the global OTLP tracer provider.
func New(ctx context.Context, cfg Config, version string) (*Telemetry, error) {
	cfg.ApplyDefaults()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	reader, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("creating Prometheus metric reader: %w", err)
	}
	meters := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meters)

	t := &Telemetry{meters: meters}
	if !cfg.Enabled {
		return t, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	traces := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.traces = traces
	return t, nil
}

// Shutdown flushes pending spans and metric state. Safe on a no-op instance.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if t.traces != nil {
		if err := t.traces.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutting down telemetry: %v", errs)
	}
	return nil
}
