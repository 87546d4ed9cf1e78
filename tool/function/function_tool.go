//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package function provides function-based tool implementations for the
// agent system.
package function

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/tool"
)

// FunctionTool wraps a typed Go function as a CallableTool. Arguments
// arrive as a generic map and are decoded into I through JSON.
type FunctionTool[I, O any] struct {
	name        string
	description string
	inputSchema map[string]any
	fn          func(context.Context, I) (O, error)
}

// Option configures a FunctionTool.
type Option func(*options)

type options struct {
	name        string
	description string
	inputSchema map[string]any
}

// WithName sets the name of the function tool.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDescription sets the description of the function tool.
func WithDescription(description string) Option {
	return func(o *options) { o.description = description }
}

// WithInputSchema sets the JSON schema of the tool arguments.
func WithInputSchema(schema map[string]any) Option {
	return func(o *options) { o.inputSchema = schema }
}

// New creates a function tool around fn.
func New[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &FunctionTool[I, O]{
		name:        o.name,
		description: o.description,
		inputSchema: o.inputSchema,
		fn:          fn,
	}
}

// Declaration implements tool.Tool.
func (t *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.inputSchema,
	}
}

// Call implements tool.CallableTool.
func (t *FunctionTool[I, O]) Call(ctx context.Context, args map[string]any) (any, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: encode arguments: %w", t.name, err)
	}
	var input I
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("tool %s: decode arguments: %w", t.name, err)
	}
	return t.fn(ctx, input)
}

// Set is a named, static collection of callable tools.
type Set struct {
	name  string
	tools []tool.CallableTool
}

// NewSet creates a toolset with a fixed tool list.
func NewSet(name string, tools ...tool.CallableTool) *Set {
	return &Set{name: name, tools: tools}
}

// Tools implements tool.ToolSet.
func (s *Set) Tools(ctx context.Context) []tool.CallableTool {
	result := make([]tool.CallableTool, len(s.tools))
	copy(result, s.tools)
	return result
}

// Close implements tool.ToolSet.
func (s *Set) Close() error { return nil }

// Name implements tool.ToolSet.
func (s *Set) Name() string { return s.name }
