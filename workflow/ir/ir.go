//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package ir defines the compiled workflow representation the runtime
// consumes: models, prompts, schemas, tools, agents and flows. The DSL
// front end (parser, semantic analyzer, code generator) lives outside
// the orchestration core; only this contract matters here.
package ir

import (
	"regexp"
	"strings"
)

// Program is a compiled workflow.
type Program struct {
	// Name identifies the workflow.
	Name string

	// Models maps a model alias to a model identifier string. The alias
	// "main" is the workflow-wide default.
	Models map[string]string

	// Prompts maps a prompt name to its spec.
	Prompts map[string]*PromptSpec

	// Schemas maps a schema name to its structured-output definition.
	Schemas map[string]*Schema

	// Tools maps a tool name to its source reference.
	Tools map[string]*ToolSpec

	// Agents maps an agent name to its definition.
	Agents map[string]*AgentDef

	// Flows maps a flow name to its statement sequence. The flow "main"
	// is the entry point.
	Flows map[string][]Stmt
}

// PromptSpec couples a template with an optional schema and model ref.
type PromptSpec struct {
	// Template is the prompt body with $name interpolation markers.
	Template Template

	// SchemaName names the structured-output schema, when any.
	SchemaName string

	// ModelRef overrides the model for this prompt: a Models alias or a
	// literal model identifier.
	ModelRef string
}

// Template is a deferred string format with named parameters. Prompt
// bodies keep their $name markers; rendering substitutes them from the
// run's variable map.
type Template struct {
	Body string
}

var interpolationRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Render substitutes $name markers from vars. Unknown names render as
// an empty string.
func (t Template) Render(vars map[string]any, format func(any) string) string {
	return interpolationRe.ReplaceAllStringFunc(t.Body, func(marker string) string {
		name := marker[1:]
		value, ok := vars[name]
		if !ok {
			return ""
		}
		return format(value)
	})
}

// Vars returns the interpolation variable names referenced by the body.
func (t Template) Vars() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range interpolationRe.FindAllStringSubmatch(t.Body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// ToolKind discriminates tool source references.
type ToolKind string

const (
	// ToolBuiltin references a host-provided toolset.
	ToolBuiltin ToolKind = "builtin"
	// ToolMCP references an MCP server.
	ToolMCP ToolKind = "mcp"
)

// ToolSpec is a tool source reference.
type ToolSpec struct {
	Kind ToolKind
	Ref  string
}

// AgentDef is an agent entry in the IR.
type AgentDef struct {
	// Instruction names the prompt rendered into the system instruction.
	Instruction string

	// Tools lists tool names from Program.Tools.
	Tools []string

	// SubAgents lists agents this agent may delegate to.
	SubAgents []string

	// AgentTools lists agents wrapped as callable tools.
	AgentTools []string

	// Description tells coordinators what the agent is for.
	Description string
}

// StripVarPrefix normalizes a variable name: "$name" and "name" are the
// same variable, the "$" being syntactic sugar stripped at IR
// construction time.
func StripVarPrefix(name string) string {
	return strings.TrimPrefix(name, "$")
}
