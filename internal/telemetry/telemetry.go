// Package telemetry instruments engine calls with OpenTelemetry.
//
// It is off unless COCKPIT_OTEL_ENABLED=true. When on, spans are written to
// stderr so --json output on stdout stays machine-readable, and metrics go
// to stderr (COCKPIT_OTEL_STDOUT=true) and/or an OTLP/HTTP collector
// (OTEL_EXPORTER_OTLP_METRICS_ENDPOINT or OTEL_EXPORTER_OTLP_ENDPOINT).
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/cockpit"

// Options selects exporters. The zero value disables telemetry.
type Options struct {
	ServiceName string
	Version     string
	Enabled     bool

	// Writer receives spans, and metrics when StdoutMetrics is set.
	Writer        io.Writer
	StdoutMetrics bool
	OTLPEndpoint  string
	// MetricInterval is the export period of every metric reader.
	MetricInterval time.Duration
}

// Enabled reports whether COCKPIT_OTEL_ENABLED=true.
func Enabled() bool {
	return os.Getenv("COCKPIT_OTEL_ENABLED") == "true"
}

// OptionsFromEnv reads Options from the environment.
func OptionsFromEnv(serviceName, version string) Options {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return Options{
		ServiceName:    serviceName,
		Version:        version,
		Enabled:        Enabled(),
		Writer:         os.Stderr,
		StdoutMetrics:  os.Getenv("COCKPIT_OTEL_STDOUT") == "true",
		OTLPEndpoint:   endpoint,
		MetricInterval: 15 * time.Second,
	}
}

// ShutdownFunc flushes and stops the providers installed by Init. A CLI run
// is shorter than any export interval, so without it nothing is exported.
type ShutdownFunc func(context.Context) error

// Init installs global providers for opts and returns their shutdown.
// Disabled options install no-op providers.
func Init(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = 15 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.Version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	spanExp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: span exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spanExp),
	)

	readers, err := metricReaders(ctx, opts)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		mopts = append(mopts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mopts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func metricReaders(ctx context.Context, opts Options) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if opts.StdoutMetrics {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(opts.MetricInterval)))
	}
	if opts.OTLPEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, opts.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(opts.MetricInterval)))
	}
	return readers, nil
}

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter from the global provider.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}
