//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracesEndpointPrecedence(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	require.Equal(t, defaultEndpoint, tracesEndpoint())

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	require.Equal(t, "collector:4317", tracesEndpoint())

	// The traces-specific variable wins over the generic one.
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "traces:4317")
	require.Equal(t, "traces:4317", tracesEndpoint())
}

func TestTracerNamed(t *testing.T) {
	require.NotNil(t, Tracer())
}
