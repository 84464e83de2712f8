// Package otel wires OpenTelemetry tracing and the Prometheus metric
// exporter for the sfclause binaries.
package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bturcanu/sfclause/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds setup parameters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // host:port of an OTLP/HTTP collector, e.g. "localhost:4318"
	MetricsEnabled bool
}

// ConfigFromEnv reads OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_ENDPOINT and
// OTEL_METRICS_ENABLED. Tracing is on whenever an endpoint is set.
func ConfigFromEnv(defaultService, version string) Config {
	return Config{
		ServiceName:    config.EnvOr("OTEL_SERVICE_NAME", defaultService),
		ServiceVersion: version,
		OTLPEndpoint:   config.EnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MetricsEnabled: config.EnvOrBool("OTEL_METRICS_ENABLED", true),
	}
}

// TracingEnabled reports whether spans are exported.
func (c Config) TracingEnabled() bool { return c.OTLPEndpoint != "" }

// Shutdown flushes and stops the providers Setup installed.
type Shutdown func(ctx context.Context) error

// Setup installs the global tracer and meter providers. Without an OTLP
// endpoint the no-op tracer stays in place, so dispatcher spans cost nothing.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	var shutdowns []func(ctx context.Context) error

	// ── Tracing ──────────────────────────────────────────────────────────
	if cfg.TracingEnabled() {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otel trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// ── Metrics ─────────────────────────────────────────────────────────
	// The exporter registers with the default Prometheus registerer, so its
	// series are served by the same promhttp handler as pkg/metrics.
	if cfg.MetricsEnabled {
		promExporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("otel prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(promExporter),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}
