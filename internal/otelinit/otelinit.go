// Package otelinit wires OpenTelemetry tracing and metrics exporters for
// a host process embedding the scheduler. Nothing in the scheduler
// package itself depends on this package: calling otel.Tracer/otel.Meter
// before a TracerProvider/MeterProvider is installed is a safe no-op, so
// a caller that never imports otelinit still gets a working scheduler,
// just without exported telemetry.
package otelinit

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "taskgraph"

// ShutdownFunc flushes and tears down whatever Init configured.
type ShutdownFunc func(context.Context) error

// InitTracer configures a global TracerProvider exporting spans over
// OTLP/gRPC to OTEL_EXPORTER_OTLP_ENDPOINT (default localhost:4317). On
// exporter setup failure it logs a warning and returns a no-op shutdown,
// leaving the previously-installed (no-op) TracerProvider in place
// rather than failing the host process.
func InitTracer(ctx context.Context, service string) ShutdownFunc {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("otel trace exporter init failed", "error", err)
		return func(context.Context) error { return nil }
	}

	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("otel tracer initialized", "endpoint", endpoint, "service", service)
	return tp.Shutdown
}

// InitMetrics configures a global MeterProvider pushing to OTLP/gRPC and
// returns its shutdown func together with a Meter named "taskgraph" from
// the installed provider (or from the current global provider if the
// exporter could not be set up).
func InitMetrics(ctx context.Context, service string) (ShutdownFunc, metric.Meter) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exp, err := otlpmetricgrpc.New(initCtx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("otel metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, otel.GetMeterProvider().Meter(instrumentationName)
	}

	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("service", service),
	))
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("otel metrics initialized", "endpoint", endpoint, "service", service)
	return mp.Shutdown, mp.Meter(instrumentationName)
}

// Flush calls shutdown with a bounded grace period, swallowing the
// error: a host process tearing down should never fail its own exit
// because telemetry couldn't be flushed in time.
func Flush(ctx context.Context, shutdown ShutdownFunc) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("otel shutdown error", "error", err)
	}
}
