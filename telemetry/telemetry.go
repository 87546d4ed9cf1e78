//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry configures OpenTelemetry trace export for the
// orchestration core. Hosts call Start once at boot; every component
// then picks up the global tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ServiceName identifies this process in exported traces.
	ServiceName = "streetrace"

	defaultEndpoint = "localhost:4317"
)

// Tracer returns the tracer the orchestration core instruments with.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// Option configures telemetry startup.
type Option func(*options)

type options struct {
	endpoint string
}

// WithEndpoint overrides the OTLP trace endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// Start installs a global tracer provider exporting over OTLP gRPC.
// The returned cleanup flushes and shuts the provider down; callers
// defer it for the life of the process.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	var cfg options
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	endpoint := cfg.endpoint
	if endpoint == "" {
		endpoint = tracesEndpoint()
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func() error {
		return provider.Shutdown(context.Background())
	}, nil
}

// tracesEndpoint resolves the export endpoint: the traces-specific
// variable wins over the generic one, then the local default.
func tracesEndpoint() string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); ep != "" {
		return ep
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep
	}
	return defaultEndpoint
}
