// Package telemetry installs the otel TracerProvider/MeterProvider the rest
// of this module's otel.Tracer/otel.Meter calls (internal/storage/sqlite,
// internal/export) record spans and counters against. Left uninstalled, those
// calls run against the global no-op provider and cost nothing; Setup is how
// a deployment opts into actually collecting them.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown flushes and stops whatever provider Setup installed.
type Shutdown func(context.Context) error

var noopShutdown Shutdown = func(context.Context) error { return nil }

// Setup installs a TracerProvider/MeterProvider that write spans and
// metrics to w as newline-delimited JSON (stdouttrace/stdoutmetric — the
// exporter pair the teacher's go.mod lists but never wires). exporter ==
// "" or "none" installs nothing and returns a no-op Shutdown, so the
// server's otel instrumentation stays inert unless a deployment opts in.
//
// w must not be the daemon's stdout: that stream carries the JSON-RPC
// protocol traffic spec.md §6 defines, and interleaving span/metric output
// into it would corrupt every response frame.
func Setup(exporter string, w io.Writer) (Shutdown, error) {
	if exporter == "" || exporter == "none" {
		return noopShutdown, nil
	}
	if exporter != "stdout" {
		return nil, fmt.Errorf("unknown telemetry exporter %q", exporter)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName("taskmcpd"),
	))
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		traceErr := tp.Shutdown(ctx)
		metricErr := mp.Shutdown(ctx)
		if traceErr != nil {
			return traceErr
		}
		return metricErr
	}, nil
}
