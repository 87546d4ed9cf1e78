//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package agent provides the core agent functionality.
package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/tool"
)

// Info is the identifying metadata of an agent.
type Info struct {
	// Name is the agent name; it authors the agent's events.
	Name string

	// Description tells coordinating agents what this agent is for.
	Description string
}

// Agent is the interface that all agents must implement. Run streams
// events; the producer must honor ctx cancellation between safe points
// so aborting the outer stream cascades cleanly.
type Agent interface {
	// Info returns the agent metadata.
	Info() Info

	// Run executes the agent against the invocation, streaming events.
	// The returned channel is closed when the run finishes.
	Run(ctx context.Context, inv *Invocation) (<-chan *event.Event, error)

	// Tools returns the tools available to this agent.
	Tools() []tool.CallableTool

	// SubAgents returns the sub-agents this agent may delegate to.
	SubAgents() []Agent

	// Close releases agent resources, sub-agents first.
	Close() error
}

// Invocation carries one agent run's inputs: the session, the optional
// new user message, and the persistence hook.
type Invocation struct {
	// InvocationID ties all events of this run together.
	InvocationID string

	// AgentName is the name of the agent being invoked.
	AgentName string

	// Branch identifies the parallel branch, when any.
	Branch string

	// Session is the conversational state the agent runs against.
	Session *session.Session

	// Message is the new user message, when any.
	Message *model.Message

	// Service persists appended events when set; nil keeps the run
	// purely in-memory.
	Service session.Service
}

// NewInvocation creates an invocation with a generated id.
func NewInvocation(sess *session.Session, message *model.Message) *Invocation {
	return &Invocation{
		InvocationID: uuid.New().String(),
		Session:      sess,
		Message:      message,
	}
}

// CloneOption mutates a cloned invocation.
type CloneOption func(*Invocation)

// WithBranch sets the branch of the clone.
func WithBranch(branch string) CloneOption {
	return func(inv *Invocation) { inv.Branch = branch }
}

// WithMessage sets the message of the clone.
func WithMessage(message *model.Message) CloneOption {
	return func(inv *Invocation) { inv.Message = message }
}

// WithAgentName sets the agent name of the clone.
func WithAgentName(name string) CloneOption {
	return func(inv *Invocation) { inv.AgentName = name }
}

// Clone copies the invocation, applying options. The session pointer is
// shared; parallel branches coordinate through distinct state slots.
func (inv *Invocation) Clone(opts ...CloneOption) *Invocation {
	clone := *inv
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// AppendEvent records an event on the invocation's session, persisting
// through the service when one is attached. In-memory appends are
// serialized through the session's event mutex so parallel branches
// sharing a session never race on the log.
func (inv *Invocation) AppendEvent(ctx context.Context, e *event.Event) error {
	if inv.Session == nil {
		return nil
	}
	if inv.Service != nil {
		return inv.Service.AppendEvent(ctx, inv.Session, e)
	}
	inv.Session.EventMu.Lock()
	inv.Session.Events = append(inv.Session.Events, *e)
	inv.Session.EventMu.Unlock()
	return nil
}

// EmitEvent forwards an event to the channel unless the context is
// cancelled. Returns false when the send was abandoned.
func EmitEvent(ctx context.Context, ch chan<- *event.Event, e *event.Event) bool {
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
