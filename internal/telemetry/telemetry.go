// Package telemetry provides OpenTelemetry integration.
//
// Telemetry is disabled by default and installs no-op providers in that case.
//
//	OTEL_ENABLED=true        enable telemetry
//	OTEL_STDOUT=true         pretty-print spans and metrics to stdout
//	OTEL_SERVICE_NAME=...    override the service name
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"questions/internal/config"
)

const instrumentationScope = "questions"

var (
	mu          sync.Mutex
	shutdownFns []func(context.Context) error
)

// Init configures the OTel providers. When telemetry is disabled no-op
// providers are installed.
func Init(ctx context.Context, cfg *config.TelemetryConfig, version string) error {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	var out io.Writer = io.Discard
	if cfg.Stdout {
		out = os.Stdout
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
	)
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
	if err != nil {
		return fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return nil
}

// Tracer returns the service tracer
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationScope)
}

// Meter returns the service meter
func Meter() metric.Meter {
	return otel.Meter(instrumentationScope)
}

// Shutdown flushes all spans and metrics.
func Shutdown(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()

	for _, fn := range shutdownFns {
		_ = fn(ctx)
	}
	shutdownFns = nil
}

// Commands instruments command executions with a span, a counter and a
// duration histogram.
type Commands struct {
	tracer trace.Tracer
	runs   metric.Int64Counter
	errs   metric.Int64Counter
	dur    metric.Float64Histogram
}

// NewCommands creates the command instruments from the global providers
func NewCommands() *Commands {
	m := Meter()
	runs, _ := m.Int64Counter("questions.command.runs",
		metric.WithDescription("Total command executions"),
	)
	errs, _ := m.Int64Counter("questions.command.errors",
		metric.WithDescription("Total failed command executions"),
	)
	dur, _ := m.Float64Histogram("questions.command.duration",
		metric.WithDescription("Command duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &Commands{tracer: Tracer(), runs: runs, errs: errs, dur: dur}
}

// Start opens a span for the named command. Call the returned function
// with the command error when the command returns.
func (c *Commands) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if c == nil {
		return ctx, func(error) {}
	}

	all := append([]attribute.KeyValue{attribute.String("command", name)}, attrs...)
	ctx, span := c.tracer.Start(ctx, "command."+name, trace.WithAttributes(all...))
	start := time.Now()

	return ctx, func(err error) {
		c.runs.Add(ctx, 1, metric.WithAttributes(all...))
		c.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(all...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.errs.Add(ctx, 1, metric.WithAttributes(all...))
		}
		span.End()
	}
}

// Counter returns an int64 counter, falling back to a no-op one
func Counter(name, description string) metric.Int64Counter {
	c, err := Meter().Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		c, _ = metricnoop.NewMeterProvider().Meter(instrumentationScope).Int64Counter(name)
	}
	return c
}
