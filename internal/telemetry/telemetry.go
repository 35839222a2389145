// Package telemetry exports command execution metrics, traces and logs over
// OTLP. Disabled by default; the zero-value instance is a safe no-op.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"homeflow/internal/config"
	"homeflow/internal/model"
)

type Telemetry struct {
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	config         config.TelemetryConfig

	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
}

// New creates a telemetry instance with OTLP gRPC exporters for traces,
// metrics and logs. When disabled it records nothing and exports nothing.
func New(cfg config.TelemetryConfig) (*Telemetry, error) {
	if !cfg.Enabled || cfg.ExporterURL == "" {
		slog.Info("Telemetry disabled or no exporter URL provided")
		return &Telemetry{config: cfg}, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	traceExporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(cfg.ExporterURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(context.Background(),
		otlpmetricgrpc.WithEndpoint(cfg.ExporterURL),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	logExporter, err := otlploggrpc.New(context.Background(),
		otlploggrpc.WithEndpoint(cfg.ExporterURL),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SamplingRatio)),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second))),
	)
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel := &Telemetry{tracerProvider: tp, meterProvider: mp, loggerProvider: lp, config: cfg}
	meter := mp.Meter("homeflow")

	tel.commandsTotal, err = meter.Int64Counter("homeflow.commands.total",
		metric.WithDescription("Commands executed by the orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("failed to create command counter: %w", err)
	}
	tel.commandDuration, err = meter.Float64Histogram("homeflow.commands.duration",
		metric.WithDescription("Orchestrator command latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create command histogram: %w", err)
	}
	return tel, nil
}

// RecordCommand counts one executed command and its latency, labelled by
// action and outcome.
func (t *Telemetry) RecordCommand(ctx context.Context, action model.Action, outcome string, elapsed time.Duration) {
	if t.commandsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("outcome", outcome),
	)
	t.commandsTotal.Add(ctx, 1, attrs)
	t.commandDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// Tracer returns the service tracer, a no-op tracer while disabled.
func (t *Telemetry) Tracer() oteltrace.Tracer {
	if t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer("homeflow")
	}
	return t.tracerProvider.Tracer("homeflow")
}

// LogHandler returns a slog handler that ships records through the OTLP log
// exporter, or nil while telemetry is disabled.
func (t *Telemetry) LogHandler() slog.Handler {
	if t.loggerProvider == nil {
		return nil
	}
	return otelslog.NewHandler("homeflow", otelslog.WithLoggerProvider(t.loggerProvider))
}

// Shutdown flushes and stops the exporters.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}
	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown logger provider: %w", err)
		}
	}
	return nil
}
