package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTracing installs an OTLP/HTTP tracer provider when
// SONGLIST_OTEL_EXPORTER_OTLP_ENDPOINT is set. Without it the global no-op
// provider stays in place and the returned shutdown does nothing.
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	endpoint := strings.TrimSpace(os.Getenv("SONGLIST_OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, exporterOptions(endpoint, envBool("SONGLIST_OTEL_EXPORTER_OTLP_INSECURE"))...)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(tracingResource()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// exporterOptions accepts either a bare host:port or a URL. An http:// URL
// implies an insecure exporter.
func exporterOptions(endpoint string, insecure bool) []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	u, err := url.Parse(endpoint)
	switch {
	case err == nil && u.Host != "":
		opts = append(opts, otlptracehttp.WithEndpoint(u.Host))
		if p := strings.TrimRight(u.Path, "/"); p != "" {
			opts = append(opts, otlptracehttp.WithURLPath(p))
		}
		if strings.EqualFold(u.Scheme, "http") {
			insecure = true
		}
	default:
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

func tracingResource() *resource.Resource {
	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName())}
	if env := strings.TrimSpace(os.Getenv("SONGLIST_ENV")); env != "" {
		attrs = append(attrs, attribute.String("deployment.environment", env))
	}
	return resource.NewWithAttributes("", attrs...)
}

func serviceName() string {
	if name := strings.TrimSpace(os.Getenv("SONGLIST_OTEL_SERVICE_NAME")); name != "" {
		return name
	}
	return "songlist"
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
