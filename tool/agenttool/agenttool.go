//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package agenttool wraps an agent as a callable tool so a parent agent
// can invoke it like any other function-call tool.
package agenttool

import (
	"context"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/tool"
)

// AgentTool exposes a wrapped agent through the CallableTool interface.
// Each call runs the agent against a fresh in-memory session.
type AgentTool struct {
	wrapped agent.Agent
}

// New wraps an agent as a tool.
func New(wrapped agent.Agent) *AgentTool {
	return &AgentTool{wrapped: wrapped}
}

// Wrapped returns the underlying agent.
func (t *AgentTool) Wrapped() agent.Agent { return t.wrapped }

// Declaration implements tool.Tool.
func (t *AgentTool) Declaration() *tool.Declaration {
	info := t.wrapped.Info()
	return &tool.Declaration{
		Name:        info.Name,
		Description: info.Description,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{
					"type":        "string",
					"description": "The request to hand to the agent.",
				},
			},
			"required": []any{"input"},
		},
	}
}

// Call implements tool.CallableTool. The wrapped agent's final response
// text is the tool result.
func (t *AgentTool) Call(ctx context.Context, args map[string]any) (any, error) {
	input, _ := args["input"].(string)
	info := t.wrapped.Info()
	sess := session.New("agenttool", "internal", info.Name)
	msg := model.NewUserMessage(input)
	inv := agent.NewInvocation(sess, &msg)
	inv.AgentName = info.Name

	ch, err := t.wrapped.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	var finalText string
	for e := range ch {
		if e.IsFinalResponse() && e.HasContent() {
			finalText = e.Text()
		}
	}
	return finalText, nil
}

// Close closes the wrapped agent first, then the tool itself.
func (t *AgentTool) Close() error {
	return t.wrapped.Close()
}
