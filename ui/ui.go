//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package ui defines the typed render events the orchestration core
// emits and the bus that fans them out to registered renderers. The
// core never formats terminal output itself; it dispatches events and
// whatever frontends are attached decide how to draw them.
package ui

import (
	"sync"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/session"
)

// Event is a render event. The concrete types below are the full set
// the core dispatches.
type Event interface {
	uiEvent()
}

// AgentEventEnvelope wraps a raw agent event for display.
type AgentEventEnvelope struct {
	Event *event.Event
}

// LlmCallEvent announces a direct workflow model call before it runs.
type LlmCallEvent struct {
	PromptName string
	Model      string
	PromptText string
}

// LlmResponseEvent carries a direct workflow model response. IsFinal
// marks the workflow's final response.
type LlmResponseEvent struct {
	PromptName string
	Content    string
	IsFinal    bool
}

// Info is an informational message.
type Info struct {
	Text string
}

// Warn is a warning message.
type Warn struct {
	Text string
}

// Error is an error message.
type Error struct {
	Text string
}

// Markdown is a message to render as markdown.
type Markdown struct {
	Text string
}

// DisplaySessionsList asks the frontend to render the user's sessions.
type DisplaySessionsList struct {
	AppName  string
	UserID   string
	Sessions []session.Metadata
}

func (AgentEventEnvelope) uiEvent()  {}
func (LlmCallEvent) uiEvent()        {}
func (LlmResponseEvent) uiEvent()    {}
func (Info) uiEvent()                {}
func (Warn) uiEvent()                {}
func (Error) uiEvent()               {}
func (Markdown) uiEvent()            {}
func (DisplaySessionsList) uiEvent() {}

// Renderer consumes render events. Implementations must not block for
// long; dispatch is synchronous.
type Renderer interface {
	Render(e Event)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(e Event)

// Render implements Renderer.
func (f RendererFunc) Render(e Event) { f(e) }

// Bus fans render events out to every registered renderer. A Bus with
// no renderers swallows events silently, which keeps headless runs
// cheap.
type Bus struct {
	mu        sync.RWMutex
	renderers []Renderer
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds a renderer to the bus.
func (b *Bus) Register(r Renderer) {
	if r == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.renderers = append(b.renderers, r)
}

// Dispatch delivers the event to every renderer in registration order.
// A panicking renderer is logged and skipped; rendering never takes the
// orchestration down.
func (b *Bus) Dispatch(e Event) {
	if b == nil || e == nil {
		return
	}
	b.mu.RLock()
	renderers := make([]Renderer, len(b.renderers))
	copy(renderers, b.renderers)
	b.mu.RUnlock()
	for _, r := range renderers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorf("renderer panicked: %v", rec)
				}
			}()
			r.Render(e)
		}()
	}
}
