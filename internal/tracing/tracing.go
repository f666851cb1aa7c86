// Package tracing wires OpenTelemetry to the stdout exporter for the formvis CLI.
package tracing

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes pending spans and releases the output.
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider exporting to outputFile, or to stdout
// when outputFile is empty.
func Init(serviceName, serviceVersion, outputFile string) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer
	)
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, nil, err
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeQuietly(closer)
		return nil, nil, err
	}
	tp, err := NewProvider(serviceName, serviceVersion, exporter)
	if err != nil {
		closeQuietly(closer)
		return nil, nil, err
	}
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			err = errors.Join(err, closer.Close())
		}
		return err
	}
	return tp, shutdown, nil
}

// NewProvider builds a batching provider around exporter without installing it.
func NewProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
