//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package event provides the event system for agent communication.
package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streetrace-ai/streetrace-go/model"
)

// Well-known event authors.
const (
	AuthorUser   = "user"
	AuthorSystem = "system"
)

// Event represents one step in a conversation between agents and users:
// a user message, a model output, a tool call, or a tool result.
// Events are immutable once appended to a session.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// InvocationID ties the event to one agent invocation.
	InvocationID string `json:"invocationId,omitempty"`

	// Author is "user", "system", or an agent name.
	Author string `json:"author"`

	// Branch identifies the parallel branch that produced the event.
	Branch string `json:"branch,omitempty"`

	// Content is the ordered part sequence; may be empty.
	Content []Part `json:"-"`

	// Usage carries token usage reported by the model, when known.
	Usage *model.Usage `json:"usage,omitempty"`

	// Escalate signals that the agent requires human input.
	Escalate bool `json:"escalate,omitempty"`

	// Partial marks streaming chunks that are not yet complete.
	Partial bool `json:"partial,omitempty"`

	// Timestamp is the event creation time.
	Timestamp time.Time `json:"timestamp"`
}

// Option configures an Event at construction time.
type Option func(*Event)

// WithContent sets the event content parts.
func WithContent(parts ...Part) Option {
	return func(e *Event) { e.Content = parts }
}

// WithUsage attaches token usage metadata.
func WithUsage(usage *model.Usage) Option {
	return func(e *Event) { e.Usage = usage }
}

// WithEscalate marks the event as an escalation signal.
func WithEscalate() Option {
	return func(e *Event) { e.Escalate = true }
}

// WithBranch tags the event with a parallel branch identifier.
func WithBranch(branch string) Option {
	return func(e *Event) { e.Branch = branch }
}

// WithPartial marks the event as a partial streaming chunk.
func WithPartial() Option {
	return func(e *Event) { e.Partial = true }
}

// New creates a new Event with a generated ID and the current timestamp.
func New(invocationID, author string, opts ...Option) *Event {
	e := &Event{
		ID:           uuid.New().String(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewUserText creates a user-authored text event.
func NewUserText(invocationID string, texts ...string) *Event {
	parts := make([]Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, Text{Text: t})
	}
	return New(invocationID, AuthorUser, WithContent(parts...))
}

// Text concatenates all text parts of the event.
func (e *Event) Text() string {
	var sb strings.Builder
	for _, p := range e.Content {
		if t, ok := p.(Text); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// FunctionCalls returns the function call parts of the event.
func (e *Event) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range e.Content {
		if c, ok := p.(FunctionCall); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// FunctionResponses returns the function response parts of the event.
func (e *Event) FunctionResponses() []FunctionResponse {
	var rsps []FunctionResponse
	for _, p := range e.Content {
		if r, ok := p.(FunctionResponse); ok {
			rsps = append(rsps, r)
		}
	}
	return rsps
}

// HasFunctionCall reports whether any part is a function call.
func (e *Event) HasFunctionCall() bool {
	return len(e.FunctionCalls()) > 0
}

// HasFunctionResponse reports whether any part is a function response.
func (e *Event) HasFunctionResponse() bool {
	return len(e.FunctionResponses()) > 0
}

// HasContent reports whether the event carries any content parts.
func (e *Event) HasContent() bool {
	return len(e.Content) > 0
}

// IsFinalResponse reports whether the event is a complete response that
// ends a turn: not a partial chunk and free of pending tool traffic.
func (e *Event) IsFinalResponse() bool {
	if e.Partial {
		return false
	}
	return !e.HasFunctionCall() && !e.HasFunctionResponse()
}

// TokenCount returns the authoritative token count for the event when
// usage metadata is present, otherwise zero.
func (e *Event) TokenCount() int {
	return e.Usage.Total()
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Content = make([]Part, len(e.Content))
	copy(clone.Content, e.Content)
	if e.Usage != nil {
		usage := *e.Usage
		clone.Usage = &usage
	}
	return &clone
}

// eventJSON is the serialized event shape; Content is encoded through
// the part envelope so unknown kinds survive a round trip.
type eventJSON struct {
	ID           string            `json:"id"`
	InvocationID string            `json:"invocationId,omitempty"`
	Author       string            `json:"author"`
	Branch       string            `json:"branch,omitempty"`
	Content      []json.RawMessage `json:"content,omitempty"`
	Usage        *model.Usage      `json:"usage,omitempty"`
	Escalate     bool              `json:"escalate,omitempty"`
	Partial      bool              `json:"partial,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:           e.ID,
		InvocationID: e.InvocationID,
		Author:       e.Author,
		Branch:       e.Branch,
		Usage:        e.Usage,
		Escalate:     e.Escalate,
		Partial:      e.Partial,
		Timestamp:    e.Timestamp,
	}
	for _, p := range e.Content {
		raw, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.ID = in.ID
	e.InvocationID = in.InvocationID
	e.Author = in.Author
	e.Branch = in.Branch
	e.Usage = in.Usage
	e.Escalate = in.Escalate
	e.Partial = in.Partial
	e.Timestamp = in.Timestamp
	e.Content = nil
	for _, raw := range in.Content {
		p, err := unmarshalPart(raw)
		if err != nil {
			return err
		}
		e.Content = append(e.Content, p)
	}
	return nil
}
