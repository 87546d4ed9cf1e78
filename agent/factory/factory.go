//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package factory turns workflow IR agent entries into executable
// runtime agents, resolving models, instructions, tools, delegation
// sub-agents and agent-tools recursively.
package factory

import (
	"context"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/agent/llmagent"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/tool"
	"github.com/streetrace-ai/streetrace-go/tool/agenttool"
	"github.com/streetrace-ai/streetrace-go/tool/provider"
	"github.com/streetrace-ai/streetrace-go/workflow/ir"
)

// Factory builds agents from a compiled program.
type Factory struct {
	program      *ir.Program
	modelFactory model.Factory
	defaultModel string
	provider     *provider.Provider
}

// Option configures a Factory.
type Option func(*Factory)

// WithModelFactory sets the model constructor.
func WithModelFactory(f model.Factory) Option {
	return func(fa *Factory) { fa.modelFactory = f }
}

// WithDefaultModel sets the model used when neither the instruction
// prompt nor the program's "main" alias names one.
func WithDefaultModel(name string) Option {
	return func(fa *Factory) { fa.defaultModel = name }
}

// WithToolProvider sets the tool resolver.
func WithToolProvider(p *provider.Provider) Option {
	return func(fa *Factory) { fa.provider = p }
}

// New creates a factory over the program.
func New(program *ir.Program, opts ...Option) *Factory {
	f := &Factory{program: program}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Build constructs the named agent and its full closure. The IR's
// semantic analysis guarantees acyclicity, so construction is a plain
// depth-first walk.
func (f *Factory) Build(ctx context.Context, name string) (agent.Agent, error) {
	def, ok := f.program.Agents[name]
	if !ok {
		return nil, fmt.Errorf("agent %q not defined", name)
	}

	instruction, modelRef, err := f.resolveInstruction(def)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}
	m, err := f.resolveModel(modelRef)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}
	tools, err := f.resolveTools(ctx, def.Tools)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}
	for _, wrapped := range def.AgentTools {
		sub, err := f.Build(ctx, wrapped)
		if err != nil {
			return nil, fmt.Errorf("agent %q: agent tool: %w", name, err)
		}
		tools = append(tools, agenttool.New(sub))
	}
	var subAgents []agent.Agent
	for _, subName := range def.SubAgents {
		sub, err := f.Build(ctx, subName)
		if err != nil {
			return nil, fmt.Errorf("agent %q: sub agent: %w", name, err)
		}
		subAgents = append(subAgents, sub)
	}

	return llmagent.New(name,
		llmagent.WithDescription(def.Description),
		llmagent.WithInstruction(instruction),
		llmagent.WithModel(m),
		llmagent.WithTools(tools...),
		llmagent.WithSubAgents(subAgents...),
	), nil
}

// resolveInstruction renders the agent's instruction prompt against a
// minimal context and surfaces the prompt's own model ref.
func (f *Factory) resolveInstruction(def *ir.AgentDef) (instruction, modelRef string, err error) {
	if def.Instruction == "" {
		return "", "", nil
	}
	prompt, ok := f.program.Prompts[def.Instruction]
	if !ok {
		return "", "", fmt.Errorf("instruction prompt %q not defined", def.Instruction)
	}
	rendered := prompt.Template.Render(nil, func(v any) string {
		return fmt.Sprintf("%v", v)
	})
	return rendered, prompt.ModelRef, nil
}

// resolveModel applies the resolution order: the prompt's own ref, then
// the program's "main" alias, then the caller default. Refs are looked
// up in the program's model table first and taken literally otherwise.
func (f *Factory) resolveModel(promptRef string) (model.Model, error) {
	if f.modelFactory == nil {
		return nil, fmt.Errorf("no model factory configured")
	}
	name := promptRef
	if name == "" {
		name = f.program.Models["main"]
	}
	if name == "" {
		name = f.defaultModel
	}
	if resolved, ok := f.program.Models[name]; ok {
		name = resolved
	}
	return f.modelFactory(name)
}

func (f *Factory) resolveTools(ctx context.Context, names []string) ([]tool.CallableTool, error) {
	var tools []tool.CallableTool
	for _, name := range names {
		spec, ok := f.program.Tools[name]
		if !ok {
			return nil, fmt.Errorf("tool %q not defined", name)
		}
		ref := provider.Ref{Kind: provider.RefKind(spec.Kind), Value: spec.Ref}
		resolved, err := f.provider.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		tools = append(tools, resolved...)
	}
	return tools, nil
}
