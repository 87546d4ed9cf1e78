//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package llmagent provides an LLM-backed agent implementation: a
// conversational loop that interleaves model calls and tool execution
// until the model produces a final response.
package llmagent

import (
	"context"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/tool"
)

// transferToolName is the implicit tool through which a coordinator
// delegates the conversation to one of its sub-agents.
const transferToolName = "transfer_to_agent"

// maxToolIterations bounds the call/respond loop of a single run.
const maxToolIterations = 50

// LLMAgent combines a model, a system instruction, a tool set, optional
// sub-agents for delegation, and optional agent-tools.
type LLMAgent struct {
	name        string
	description string
	instruction string
	model       model.Model
	tools       []tool.CallableTool
	subAgents   []agent.Agent
	bufferSize  int
}

// Option configures an LLMAgent.
type Option func(*options)

type options struct {
	description string
	instruction string
	model       model.Model
	tools       []tool.CallableTool
	subAgents   []agent.Agent
	bufferSize  int
}

var defaultOptions = options{bufferSize: 64}

// WithDescription sets the agent description.
func WithDescription(description string) Option {
	return func(o *options) { o.description = description }
}

// WithInstruction sets the system instruction.
func WithInstruction(instruction string) Option {
	return func(o *options) { o.instruction = instruction }
}

// WithModel sets the backing model.
func WithModel(m model.Model) Option {
	return func(o *options) { o.model = m }
}

// WithTools sets the callable tools.
func WithTools(tools ...tool.CallableTool) Option {
	return func(o *options) { o.tools = append(o.tools, tools...) }
}

// WithSubAgents sets the sub-agents this agent may delegate to.
func WithSubAgents(subAgents ...agent.Agent) Option {
	return func(o *options) { o.subAgents = append(o.subAgents, subAgents...) }
}

// WithChannelBufferSize sets the event channel buffer size.
func WithChannelBufferSize(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// New creates an LLM agent with the given name and options.
func New(name string, opts ...Option) *LLMAgent {
	cfg := defaultOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &LLMAgent{
		name:        name,
		description: cfg.description,
		instruction: cfg.instruction,
		model:       cfg.model,
		tools:       cfg.tools,
		subAgents:   cfg.subAgents,
		bufferSize:  cfg.bufferSize,
	}
}

// Info implements agent.Agent.
func (a *LLMAgent) Info() agent.Info {
	return agent.Info{Name: a.name, Description: a.description}
}

// Tools implements agent.Agent.
func (a *LLMAgent) Tools() []tool.CallableTool { return a.tools }

// SubAgents implements agent.Agent.
func (a *LLMAgent) SubAgents() []agent.Agent { return a.subAgents }

// FindSubAgent returns the sub-agent with the given name, or nil.
func (a *LLMAgent) FindSubAgent(name string) agent.Agent {
	for _, sub := range a.subAgents {
		if sub.Info().Name == name {
			return sub
		}
	}
	return nil
}

// Close releases sub-agents depth-first, then closable tools.
func (a *LLMAgent) Close() error {
	var firstErr error
	for _, sub := range a.subAgents {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, t := range a.tools {
		if closer, ok := t.(tool.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run implements agent.Agent. The producer goroutine owns the channel
// and honors ctx cancellation between safe points, so closing the outer
// stream cancels any in-flight model call and cascades to tools.
func (a *LLMAgent) Run(ctx context.Context, inv *agent.Invocation) (<-chan *event.Event, error) {
	if a.model == nil {
		return nil, fmt.Errorf("agent %s: no model configured", a.name)
	}
	ch := make(chan *event.Event, a.bufferSize)
	go func() {
		defer close(ch)
		a.run(ctx, inv, ch)
	}()
	return ch, nil
}

func (a *LLMAgent) run(ctx context.Context, inv *agent.Invocation, ch chan<- *event.Event) {
	messages := a.buildMessages(inv)
	decls := a.toolDeclarations()

	for iter := 0; iter < maxToolIterations; iter++ {
		if ctx.Err() != nil {
			return
		}
		rsp, err := a.model.GenerateContent(ctx, &model.Request{
			Messages: messages,
			Tools:    decls,
		})
		if err != nil {
			log.Errorf("agent %s: model call failed: %v", a.name, err)
			errEvent := event.New(inv.InvocationID, a.name,
				event.WithContent(event.Text{Text: err.Error()}),
				event.WithEscalate(),
				event.WithBranch(inv.Branch),
			)
			_ = inv.AppendEvent(ctx, errEvent)
			agent.EmitEvent(ctx, ch, errEvent)
			return
		}

		if len(rsp.ToolCalls) == 0 {
			final := event.New(inv.InvocationID, a.name,
				event.WithContent(event.Text{Text: rsp.Content}),
				event.WithUsage(rsp.Usage),
				event.WithBranch(inv.Branch),
			)
			_ = inv.AppendEvent(ctx, final)
			agent.EmitEvent(ctx, ch, final)
			return
		}

		messages = append(messages, model.NewAssistantMessage(rsp.Content))
		for _, call := range rsp.ToolCalls {
			if call.Name == transferToolName {
				if a.delegate(ctx, inv, ch, call) {
					return
				}
				continue
			}
			callEvent := event.New(inv.InvocationID, a.name,
				event.WithContent(event.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args}),
				event.WithUsage(rsp.Usage),
				event.WithBranch(inv.Branch),
			)
			_ = inv.AppendEvent(ctx, callEvent)
			if !agent.EmitEvent(ctx, ch, callEvent) {
				return
			}

			result := a.callTool(ctx, call)
			rspEvent := event.New(inv.InvocationID, a.name,
				event.WithContent(event.FunctionResponse{ID: call.ID, Name: call.Name, Response: result}),
				event.WithBranch(inv.Branch),
			)
			_ = inv.AppendEvent(ctx, rspEvent)
			if !agent.EmitEvent(ctx, ch, rspEvent) {
				return
			}
			messages = append(messages, model.NewUserMessage(
				fmt.Sprintf("Tool %s returned: %v", call.Name, result)))
		}
	}
	log.Warnf("agent %s: tool iteration limit reached", a.name)
}

// delegate routes the conversation to a named sub-agent and forwards its
// events. Returns true when the turn is over.
func (a *LLMAgent) delegate(ctx context.Context, inv *agent.Invocation, ch chan<- *event.Event, call model.ToolCall) bool {
	name, _ := call.Args["agent_name"].(string)
	sub := a.FindSubAgent(name)
	if sub == nil {
		log.Warnf("agent %s: cannot transfer to unknown agent %q", a.name, name)
		return false
	}
	subCh, err := sub.Run(ctx, inv.Clone(agent.WithAgentName(name)))
	if err != nil {
		log.Errorf("agent %s: transfer to %q failed: %v", a.name, name, err)
		return false
	}
	for e := range subCh {
		if !agent.EmitEvent(ctx, ch, e) {
			return true
		}
	}
	return true
}

func (a *LLMAgent) callTool(ctx context.Context, call model.ToolCall) any {
	for _, t := range a.tools {
		if t.Declaration().Name != call.Name {
			continue
		}
		result, err := t.Call(ctx, call.Args)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return result
	}
	return fmt.Sprintf("error: unknown tool %q", call.Name)
}

// buildMessages renders the session history plus the new user message
// into a model message list, led by the system instruction.
func (a *LLMAgent) buildMessages(inv *agent.Invocation) []model.Message {
	var messages []model.Message
	if a.instruction != "" {
		messages = append(messages, model.NewSystemMessage(a.instruction))
	}
	if inv.Session != nil {
		for i := range inv.Session.Events {
			e := inv.Session.Events[i]
			if msg, ok := eventMessage(&e); ok {
				messages = append(messages, msg)
			}
		}
	}
	if inv.Message != nil {
		messages = append(messages, *inv.Message)
	}
	return messages
}

// eventMessage renders one event as a chat message.
func eventMessage(e *event.Event) (model.Message, bool) {
	if calls := e.FunctionCalls(); len(calls) > 0 {
		return model.NewAssistantMessage(fmt.Sprintf("[Called tool: %s]", calls[0].Name)), true
	}
	if rsps := e.FunctionResponses(); len(rsps) > 0 {
		return model.NewUserMessage(fmt.Sprintf("[Tool %s returned result]", rsps[0].Name)), true
	}
	text := e.Text()
	if text == "" {
		return model.Message{}, false
	}
	switch e.Author {
	case event.AuthorUser:
		return model.NewUserMessage(text), true
	case event.AuthorSystem:
		return model.NewSystemMessage(text), true
	default:
		return model.NewAssistantMessage(text), true
	}
}

func (a *LLMAgent) toolDeclarations() []model.ToolDeclaration {
	var decls []model.ToolDeclaration
	for _, t := range a.tools {
		d := t.Declaration()
		decls = append(decls, model.ToolDeclaration{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	if len(a.subAgents) > 0 {
		var names []string
		for _, sub := range a.subAgents {
			names = append(names, sub.Info().Name)
		}
		decls = append(decls, model.ToolDeclaration{
			Name:        transferToolName,
			Description: fmt.Sprintf("Transfer the conversation to one of: %v", names),
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_name": map[string]any{"type": "string"},
				},
				"required": []any{"agent_name"},
			},
		})
	}
	return decls
}
