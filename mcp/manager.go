//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp lifecycle-manages a configured fleet of Model Context
// Protocol stdio servers and presents one unified tool-calling surface.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/streetrace-ai/streetrace-go/log"
)

var (
	// ErrClientNotFound is returned when a call names a server the
	// manager does not know or that failed to start.
	ErrClientNotFound = errors.New("mcp client not found")
	// ErrClientNotActive is returned when a call races manager shutdown.
	ErrClientNotActive = errors.New("mcp client not active")
)

var clientInfo = mcp.Implementation{
	Name:    "streetrace",
	Version: "1.0.0",
}

// ServerTool is a tool spec tagged with the server it came from.
type ServerTool struct {
	ServerName string
	Tool       mcp.Tool
}

// ServerResource is a resource tagged with the server it came from.
type ServerResource struct {
	ServerName string
	Resource   mcp.Resource
}

// ServerPrompt is a prompt tagged with the server it came from.
type ServerPrompt struct {
	ServerName string
	Prompt     mcp.Prompt
}

// client pairs a connector with its config.
type client struct {
	config ServerConfig
	conn   mcp.Connector
}

// Manager supervises N MCP subprocess clients.
type Manager struct {
	config *Config

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewManager creates a manager for the given configuration.
func NewManager(config *Config) *Manager {
	return &Manager{
		config:  config,
		clients: make(map[string]*client),
	}
}

// Open spawns and initializes every enabled server in parallel. Per-server
// failures are collected and logged; partial success is acceptable and
// the manager proceeds with whichever servers came up.
func (m *Manager) Open(ctx context.Context) error {
	if m.config == nil {
		return nil
	}
	var (
		g       errgroup.Group
		mu      sync.Mutex
		started = make(map[string]*client)
		errs    []error
	)
	for _, server := range m.config.Servers {
		if !server.IsEnabled() {
			log.Debugf("mcp: server %q disabled, skipping", server.Name)
			continue
		}
		server := server
		g.Go(func() error {
			conn, err := connect(ctx, server)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Errorf("mcp: server %q failed to start: %v", server.Name, err)
				errs = append(errs, fmt.Errorf("server %q: %w", server.Name, err))
				return nil
			}
			started[server.Name] = &client{config: server, conn: conn}
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	for name, c := range started {
		m.clients[name] = c
	}
	m.closed = false
	m.mu.Unlock()

	if len(errs) > 0 {
		log.Warnf("mcp: %d of %d servers failed to start", len(errs), len(m.config.Servers))
	}
	return nil
}

// connect spawns the subprocess and runs the MCP initialize handshake.
func connect(ctx context.Context, server ServerConfig) (mcp.Connector, error) {
	command, args := withEnv(server)
	conn, err := mcp.NewStdioClient(mcp.StdioTransportConfig{
		ServerParams: mcp.StdioServerParameters{
			Command: command,
			Args:    args,
		},
		Timeout: defaultTimeout,
	}, clientInfo)
	if err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}
	initRsp, err := conn.Initialize(ctx, &mcp.InitializeRequest{})
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warnf("mcp: close after failed initialize: %v", closeErr)
		}
		return nil, fmt.Errorf("initialize: %w", err)
	}
	log.Infof("mcp: server %q up (%s %s)", server.Name,
		initRsp.ServerInfo.Name, initRsp.ServerInfo.Version)
	return conn, nil
}

// withEnv folds per-server environment variables into the command line.
// The stdio transport does not expose environment injection, so extra
// variables are applied through env(1). Sorted for determinism.
func withEnv(server ServerConfig) (string, []string) {
	if len(server.Env) == 0 {
		return server.Command, server.Args
	}
	keys := make([]string, 0, len(server.Env))
	for k := range server.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys)+1+len(server.Args))
	for _, k := range keys {
		args = append(args, k+"="+server.Env[k])
	}
	args = append(args, server.Command)
	args = append(args, server.Args...)
	return "env", args
}

// Close tears down every active client in parallel. Per-client errors
// are logged; Close always completes.
func (m *Manager) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*client)
	m.closed = true
	m.mu.Unlock()

	var g errgroup.Group
	for name, c := range clients {
		name, c := name, c
		g.Go(func() error {
			if err := c.conn.Close(); err != nil {
				log.Errorf("mcp: closing server %q: %v", name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// ActiveServers returns the names of servers that came up, sorted.
func (m *Manager) ActiveServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup returns the active client for name or an error.
func (m *Manager) lookup(name string) (*client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: manager is closed", ErrClientNotActive)
	}
	c, ok := m.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClientNotFound, name)
	}
	return c, nil
}

// ListAllTools fetches each active client's tool list and concatenates.
// Per-client errors are logged and skipped; they do not abort aggregation.
func (m *Manager) ListAllTools(ctx context.Context) ([]ServerTool, error) {
	var result []ServerTool
	for _, name := range m.ActiveServers() {
		c, err := m.lookup(name)
		if err != nil {
			continue
		}
		rsp, err := c.conn.ListTools(ctx, &mcp.ListToolsRequest{})
		if err != nil {
			log.Warnf("mcp: list tools on %q: %v", name, err)
			continue
		}
		for _, t := range rsp.Tools {
			result = append(result, ServerTool{ServerName: name, Tool: t})
		}
	}
	return result, nil
}

// CallToolOn relays a tool call to the named server. Tool-level errors
// (the server reports isError) come back as a successful result whose
// IsError flag is set; transport failures are returned as errors.
func (m *Manager) CallToolOn(ctx context.Context, serverName, toolName string, args map[string]any) (*mcp.CallToolResult, error) {
	c, err := m.lookup(serverName)
	if err != nil {
		return nil, err
	}
	req := &mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	rsp, err := c.conn.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp: call tool %q on %q: %w", toolName, serverName, err)
	}
	return rsp, nil
}

// ListResources aggregates resources across active servers, tagging each
// with its origin. Per-client errors are logged and skipped.
func (m *Manager) ListResources(ctx context.Context) ([]ServerResource, error) {
	var result []ServerResource
	for _, name := range m.ActiveServers() {
		c, err := m.lookup(name)
		if err != nil {
			continue
		}
		rsp, err := c.conn.ListResources(ctx, &mcp.ListResourcesRequest{})
		if err != nil {
			log.Warnf("mcp: list resources on %q: %v", name, err)
			continue
		}
		for _, r := range rsp.Resources {
			result = append(result, ServerResource{ServerName: name, Resource: r})
		}
	}
	return result, nil
}

// ReadResource reads a resource from the named server.
func (m *Manager) ReadResource(ctx context.Context, serverName, uri string) (*mcp.ReadResourceResult, error) {
	c, err := m.lookup(serverName)
	if err != nil {
		return nil, err
	}
	req := &mcp.ReadResourceRequest{}
	req.Params.URI = uri
	rsp, err := c.conn.ReadResource(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp: read resource %q on %q: %w", uri, serverName, err)
	}
	return rsp, nil
}

// ListPrompts aggregates prompts across active servers, tagging each
// with its origin. Per-client errors are logged and skipped.
func (m *Manager) ListPrompts(ctx context.Context) ([]ServerPrompt, error) {
	var result []ServerPrompt
	for _, name := range m.ActiveServers() {
		c, err := m.lookup(name)
		if err != nil {
			continue
		}
		rsp, err := c.conn.ListPrompts(ctx, &mcp.ListPromptsRequest{})
		if err != nil {
			log.Warnf("mcp: list prompts on %q: %v", name, err)
			continue
		}
		for _, p := range rsp.Prompts {
			result = append(result, ServerPrompt{ServerName: name, Prompt: p})
		}
	}
	return result, nil
}
