package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace exporters accepted by --trace-exporter.
const (
	traceExporterNone   = "none"
	traceExporterStdout = "stdout"
	traceExporterOTLP   = "otlp"
)

var errUnknownTraceExporter = errors.New("unknown trace exporter")

// setupTracing installs the global tracer provider for opts.traceExporter
// and returns a function that flushes and stops it. With "none" the global
// no-op provider stays in place. Stdout spans go to w, which must not be the
// MCP stdio stream.
func setupTracing(ctx context.Context, opts options, w io.Writer) (func(context.Context) error, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch opts.traceExporter {
	case "", traceExporterNone:
		return func(context.Context) error { return nil }, nil
	case traceExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case traceExporterOTLP:
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.otlpEndpoint)}
		if opts.otlpInsecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, clientOpts...)
	default:
		return nil, fmt.Errorf("%w: %q (want none, stdout or otlp)", errUnknownTraceExporter, opts.traceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s trace exporter: %w", opts.traceExporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes("",
			attribute.String("service.name", "pathboard"),
			attribute.String("service.version", Version),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
