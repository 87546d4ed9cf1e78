//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the callable-tool abstraction shared by builtin
// host tools, MCP-backed tools and agents wrapped as tools.
package tool

import "context"

// Declaration describes a tool to the model in OpenAI-compatible form.
type Declaration struct {
	// Name is the function name exposed to the model.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON schema of the tool arguments.
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Tool is the minimal surface all tools expose.
type Tool interface {
	// Declaration returns the tool declaration.
	Declaration() *Declaration
}

// CallableTool is a tool that can be invoked with decoded arguments.
type CallableTool interface {
	Tool

	// Call executes the tool with the given arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Closer is implemented by tools holding releasable resources.
type Closer interface {
	Close() error
}

// ToolSet defines an interface for managing a set of tools.
type ToolSet interface {
	// Tools returns the tools available in the set.
	Tools(ctx context.Context) []CallableTool

	// Close releases any resources held by the ToolSet.
	Close() error

	// Name returns the name of the ToolSet for identification.
	Name() string
}
