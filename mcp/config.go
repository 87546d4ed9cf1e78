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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/streetrace-ai/streetrace-go/log"
)

// transportStdio is the only transport the manager runs servers on.
const transportStdio = "stdio"

// defaultTimeout bounds individual MCP round trips.
const defaultTimeout = 30 * time.Second

// DefaultConfigPath returns the default MCP server config location,
// ~/.streetrace/mcp_servers.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".streetrace", "mcp_servers.yaml")
	}
	return filepath.Join(home, ".streetrace", "mcp_servers.yaml")
}

// ServerConfig describes one MCP subprocess server.
type ServerConfig struct {
	// Name uniquely identifies the server within the manager.
	Name string `yaml:"name"`

	// Command is the executable to spawn.
	Command string `yaml:"command"`

	// Args are the command arguments.
	Args []string `yaml:"args"`

	// Env holds extra environment variables for the subprocess.
	Env map[string]string `yaml:"env"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`

	// Transport defaults to "stdio"; other values disable the server.
	Transport string `yaml:"transport"`
}

// IsEnabled reports whether the server should be started.
func (c *ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Config is the MCP server fleet configuration.
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// LoadConfig reads and parses the YAML config at path. Duplicate server
// names are skipped with a warning; unsupported transports disable the
// server with a warning.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mcp config: read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and normalizes YAML config bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("mcp config: parse: %w", err)
	}
	seen := make(map[string]bool, len(cfg.Servers))
	servers := make([]ServerConfig, 0, len(cfg.Servers))
	for _, server := range cfg.Servers {
		if server.Name == "" {
			log.Warnf("mcp config: skipping server with empty name")
			continue
		}
		if seen[server.Name] {
			log.Warnf("mcp config: duplicate server name %q, skipping", server.Name)
			continue
		}
		seen[server.Name] = true
		if server.Transport != "" && server.Transport != transportStdio {
			log.Warnf("mcp config: server %q uses unsupported transport %q, disabling",
				server.Name, server.Transport)
			disabled := false
			server.Enabled = &disabled
		}
		servers = append(servers, server)
	}
	cfg.Servers = servers
	return &cfg, nil
}
