//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package provider resolves named tool references to callable handles.
// Builtin refs map to registered host toolsets; mcp refs become live
// handles routed through the MCP client manager.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/mcp"
	"github.com/streetrace-ai/streetrace-go/tool"
	"github.com/streetrace-ai/streetrace-go/tool/mcptool"
)

// RefKind discriminates tool reference kinds.
type RefKind string

const (
	// RefBuiltin references a host-provided toolset by name.
	RefBuiltin RefKind = "builtin"
	// RefMCP references an MCP server by name.
	RefMCP RefKind = "mcp"
)

// Ref names a tool source: a builtin toolset or an MCP server.
type Ref struct {
	Kind  RefKind
	Value string
}

// ErrUnresolvedTool is returned when a reference cannot be resolved.
var ErrUnresolvedTool = errors.New("unresolved tool reference")

// Provider resolves tool references against registered builtin toolsets
// and the MCP manager.
type Provider struct {
	toolsets map[string]tool.ToolSet
	manager  *mcp.Manager
}

// Option configures a Provider.
type Option func(*Provider)

// WithToolSet registers a builtin toolset under its name.
func WithToolSet(ts tool.ToolSet) Option {
	return func(p *Provider) { p.toolsets[ts.Name()] = ts }
}

// WithMCPManager attaches the MCP client manager.
func WithMCPManager(manager *mcp.Manager) Option {
	return func(p *Provider) { p.manager = manager }
}

// New creates a tool provider.
func New(opts ...Option) *Provider {
	p := &Provider{toolsets: make(map[string]tool.ToolSet)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve returns the callable tools behind a reference. Builtin refs
// yield the whole registered toolset; mcp refs yield every tool of the
// named server.
func (p *Provider) Resolve(ctx context.Context, ref Ref) ([]tool.CallableTool, error) {
	switch ref.Kind {
	case RefBuiltin:
		ts, ok := p.toolsets[ref.Value]
		if !ok {
			return nil, fmt.Errorf("%w: builtin toolset %q", ErrUnresolvedTool, ref.Value)
		}
		return ts.Tools(ctx), nil
	case RefMCP:
		if p.manager == nil {
			return nil, fmt.Errorf("%w: no MCP manager configured for %q", ErrUnresolvedTool, ref.Value)
		}
		serverTools, err := p.manager.ListAllTools(ctx)
		if err != nil {
			return nil, err
		}
		var result []tool.CallableTool
		for _, st := range serverTools {
			if st.ServerName != ref.Value {
				continue
			}
			result = append(result, mcptool.New(p.manager, st))
		}
		if len(result) == 0 {
			return nil, fmt.Errorf("%w: mcp server %q has no tools", ErrUnresolvedTool, ref.Value)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnresolvedTool, ref.Kind)
	}
}

// ResolveNamed resolves a reference and narrows the result to a single
// tool by name when present in the resolved set.
func (p *Provider) ResolveNamed(ctx context.Context, ref Ref, name string) (tool.CallableTool, error) {
	tools, err := p.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		if t.Declaration().Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: tool %q not found via %s:%s", ErrUnresolvedTool, name, ref.Kind, ref.Value)
}
