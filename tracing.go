package main

import (
	"context"
	"crypto/tls"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

// setupTracing installs a global OTLP tracer provider so that session
// iterations and requests are exported as traces. It returns a shutdown
// func that flushes the batch processor. When --telemetry-host is unset this
// is never called and the global provider stays a no-op, so the executor's
// span creation costs nothing.
func setupTracing(log Logger, opts *Options) func() {
	var client otlptrace.Client
	switch opts.Telemetry.Protocol {
	case "grpc":
		client = setupGRPCClient(opts)
	case "http":
		client = setupHTTPClient(opts)
	default:
		log.Fatal("unknown telemetry protocol: %s\n", opts.Telemetry.Protocol)
	}

	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		log.Fatal("failure configuring otel trace exporter: %v\n", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	otel.SetTracerProvider(sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.Telemetry.ServiceName))),
	))
	return func() {
		_ = bsp.Shutdown(context.Background())
		_ = exporter.Shutdown(context.Background())
	}
}

func setupHTTPClient(opts *Options) otlptrace.Client {
	options := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(opts.telhost.Host),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if opts.Telemetry.Insecure {
		options = append(options, otlptracehttp.WithInsecure())
	} else {
		options = append(options, otlptracehttp.WithTLSClientConfig(&tls.Config{}))
	}
	return otlptracehttp.NewClient(options...)
}

func setupGRPCClient(opts *Options) otlptrace.Client {
	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.telhost.Host),
		otlptracegrpc.WithCompressor(gzip.Name),
	}
	if opts.Telemetry.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	} else {
		options = append(options, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	return otlptracegrpc.NewClient(options...)
}
