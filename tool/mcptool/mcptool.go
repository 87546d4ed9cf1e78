//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mcptool adapts tools served by MCP servers to the CallableTool
// interface, routing calls through the multi-server manager.
package mcptool

import (
	"context"
	"encoding/json"
	"strings"

	trpcmcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/streetrace-ai/streetrace-go/mcp"
	"github.com/streetrace-ai/streetrace-go/tool"
)

// Result is the provider-neutral form of an MCP tool call result. Server
// side tool errors arrive as a successful Result with IsError set.
type Result struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool routes calls for one MCP tool to its owning server.
type Tool struct {
	manager    *mcp.Manager
	serverName string
	decl       *tool.Declaration
}

// New wraps a server-tagged MCP tool spec as a CallableTool.
func New(manager *mcp.Manager, st mcp.ServerTool) *Tool {
	return &Tool{
		manager:    manager,
		serverName: st.ServerName,
		decl: &tool.Declaration{
			Name:        st.Tool.Name,
			Description: st.Tool.Description,
			InputSchema: probeInputSchema(st.Tool),
		},
	}
}

// probeInputSchema extracts the tool's input schema through a JSON round
// trip, keeping the declaration independent of the wire type's shape.
func probeInputSchema(t trpcmcp.Tool) map[string]any {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	var probe struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	return probe.InputSchema
}

// ServerName returns the owning server.
func (t *Tool) ServerName() string { return t.serverName }

// Declaration implements tool.Tool.
func (t *Tool) Declaration() *tool.Declaration { return t.decl }

// Call implements tool.CallableTool. Transport failures are returned as
// errors; tool-level failures come back as a Result with IsError set.
func (t *Tool) Call(ctx context.Context, args map[string]any) (any, error) {
	rsp, err := t.manager.CallToolOn(ctx, t.serverName, t.decl.Name, args)
	if err != nil {
		return nil, err
	}
	return Result{Text: contentText(rsp.Content), IsError: rsp.IsError}, nil
}

func contentText(contents []trpcmcp.Content) string {
	var texts []string
	for _, c := range contents {
		if tc, ok := c.(trpcmcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Set exposes every tool of the manager's active servers as a ToolSet.
type Set struct {
	manager *mcp.Manager
}

// NewSet creates a ToolSet over the manager's aggregated catalog.
func NewSet(manager *mcp.Manager) *Set {
	return &Set{manager: manager}
}

// Tools implements tool.ToolSet.
func (s *Set) Tools(ctx context.Context) []tool.CallableTool {
	serverTools, err := s.manager.ListAllTools(ctx)
	if err != nil {
		return nil
	}
	result := make([]tool.CallableTool, 0, len(serverTools))
	for _, st := range serverTools {
		result = append(result, New(s.manager, st))
	}
	return result
}

// Close implements tool.ToolSet. The manager owns client lifecycles.
func (s *Set) Close() error { return nil }

// Name implements tool.ToolSet.
func (s *Set) Name() string { return "mcp" }
