package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and stops the providers Init installed.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global tracer and meter providers described by cfg.
// Call once on startup.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("telemetry: ServiceName is required")
	}
	if cfg.Disabled {
		slog.InfoContext(ctx, "telemetry disabled, using global no-op providers")
		return noopShutdown, nil
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	mode, err := resolveMode(cfg.Mode, autoInstrumented())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	if mode == ModeAuto {
		return initAuto(ctx, cfg, res)
	}
	return initManual(ctx, cfg, res)
}

// resolveMode settles ModeDetect against what the environment shows.
func resolveMode(m Mode, auto bool) (Mode, error) {
	switch m {
	case "", ModeDetect:
		if auto {
			return ModeAuto, nil
		}
		return ModeManual, nil
	case ModeAuto, ModeManual:
		return m, nil
	}
	return "", fmt.Errorf("telemetry: unknown Mode %q", m)
}

// autoInstrumented reports the Go auto-instrumentation sidecar.
// OTEL_GO_AUTO_TARGET_EXE is set by the operator when it injects one.
func autoInstrumented() bool {
	if os.Getenv("OTEL_GO_AUTO_TARGET_EXE") != "" {
		return true
	}
	switch strings.ToLower(os.Getenv("OTEL_GO_AUTO_ENABLED")) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// initAuto leaves tracing to the sidecar and only installs the meter
// provider, since the agent cannot see application metrics.
func initAuto(ctx context.Context, cfg Config, res *resource.Resource) (ShutdownFunc, error) {
	if isNoopPropagator(otel.GetTextMapPropagator()) {
		otel.SetTextMapPropagator(defaultPropagator())
	}
	if !autoInstrumented() {
		slog.WarnContext(ctx, "auto telemetry requested but no Go auto-instrumentation detected, using global no-op")
		return noopShutdown, nil
	}
	if cfg.DisableMetrics {
		return noopShutdown, nil
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize metrics in auto mode, continuing without custom metrics", slog.Any("error", err))
		return noopShutdown, nil
	}
	otel.SetMeterProvider(mp)

	slog.InfoContext(ctx, "telemetry: auto mode, metrics only")
	return mp.Shutdown, nil
}

func initManual(ctx context.Context, cfg Config, res *resource.Resource) (ShutdownFunc, error) {
	exp, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(defaultPropagator())

	shutdowns := []ShutdownFunc{tp.Shutdown}
	if !cfg.DisableMetrics {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
		}
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	slog.InfoContext(ctx, "telemetry: manual mode",
		slog.String("protocol", protocol("TRACES")),
		slog.Bool("metrics", !cfg.DisableMetrics),
	)

	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			if err := shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry: shutdown: %w", errors.Join(errs...))
		}
		return nil
	}, nil
}

func defaultPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func isNoopPropagator(p propagation.TextMapPropagator) bool {
	return p == nil || len(p.Fields()) == 0
}

func buildResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.New(
		ctx,
		resource.WithFromEnv(),      // OTEL_RESOURCE_ATTRIBUTES, etc.
		resource.WithTelemetrySDK(), // telemetry.sdk.*
		resource.WithHost(),
		resource.WithOS(),
		resource.WithAttributes(attrs...),
	)
}

func buildSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// protocol returns the OTLP protocol for a signal (TRACES, METRICS), falling
// back to the general setting and then to http/protobuf.
func protocol(signal string) string {
	if p := os.Getenv("OTEL_EXPORTER_OTLP_" + signal + "_PROTOCOL"); p != "" {
		return p
	}
	if p := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); p != "" {
		return p
	}
	return "http/protobuf"
}

// endpoint is a configured collector address: either a full URL or a bare
// host:port.
type endpoint struct {
	url      string
	hostPort string
}

func parseEndpoint(raw string) endpoint {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return endpoint{url: raw}
	}
	return endpoint{hostPort: raw}
}

func newTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	ep := parseEndpoint(cfg.OTLPEndpoint)

	if protocol("TRACES") == "grpc" {
		var opts []otlptracegrpc.Option
		switch {
		case ep.url != "":
			opts = append(opts, otlptracegrpc.WithEndpointURL(ep.url))
		case ep.hostPort != "":
			opts = append(opts, otlptracegrpc.WithEndpoint(ep.hostPort))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	var opts []otlptracehttp.Option
	switch {
	case ep.url != "":
		opts = append(opts, otlptracehttp.WithEndpointURL(ep.url))
	case ep.hostPort != "":
		opts = append(opts, otlptracehttp.WithEndpoint(ep.hostPort))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	// with no endpoint option the exporter reads OTEL_EXPORTER_OTLP_(TRACES_)ENDPOINT
	return otlptracehttp.New(ctx, opts...)
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	), nil
}

func newMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	// a metrics specific endpoint in the environment wins, the exporter reads it itself
	var ep endpoint
	if os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") == "" {
		ep = parseEndpoint(cfg.OTLPEndpoint)
	}
	insecure := cfg.Insecure || os.Getenv("OTEL_EXPORTER_OTLP_METRICS_INSECURE") == "true"

	if protocol("METRICS") == "grpc" {
		var opts []otlpmetricgrpc.Option
		switch {
		case ep.url != "":
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(ep.url))
		case ep.hostPort != "":
			opts = append(opts, otlpmetricgrpc.WithEndpoint(ep.hostPort))
		}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}

	var opts []otlpmetrichttp.Option
	switch {
	case ep.url != "":
		opts = append(opts, otlpmetrichttp.WithEndpointURL(ep.url))
	case ep.hostPort != "":
		opts = append(opts, otlpmetrichttp.WithEndpoint(ep.hostPort))
	}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}
