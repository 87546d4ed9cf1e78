//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
servers:
  - name: filesystem
    command: npx
    args: ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
    env:
      LOG_LEVEL: debug
  - name: disabled_one
    command: something
    enabled: false
`))
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)

	fs := cfg.Servers[0]
	require.Equal(t, "filesystem", fs.Name)
	require.Equal(t, "npx", fs.Command)
	require.Equal(t, "debug", fs.Env["LOG_LEVEL"])
	require.True(t, fs.IsEnabled())

	require.False(t, cfg.Servers[1].IsEnabled())
}

func TestParseConfigSkipsDuplicatesAndUnnamed(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
servers:
  - name: fs
    command: first
  - name: fs
    command: second
  - command: no_name
`))
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	require.Equal(t, "first", cfg.Servers[0].Command)
}

// An unsupported transport disables the server rather than failing the
// whole fleet.
func TestParseConfigUnsupportedTransport(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
servers:
  - name: remote
    command: serve
    transport: sse
  - name: local
    command: serve
    transport: stdio
`))
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	require.False(t, cfg.Servers[0].IsEnabled())
	require.True(t, cfg.Servers[1].IsEnabled())
}

func TestParseConfigInvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("servers: [unclosed"))
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
