//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the LLM abstraction consumed by the orchestration core.
package model

import "context"

// Role constants for messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single chat message sent to or received from a model.
type Message struct {
	// Role is one of the Role* constants.
	Role string `json:"role"`

	// Content is the plain-text content of the message.
	Content string `json:"content"`
}

// NewUserMessage creates a user-role message with the given content.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewSystemMessage creates a system-role message with the given content.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewAssistantMessage creates an assistant-role message with the given content.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Usage represents token usage information reported by a model.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens in the response.
	TotalTokens int `json:"total_tokens"`
}

// Total returns the authoritative total when reported, otherwise the
// sum of prompt and completion tokens.
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// ToolDeclaration describes a callable tool in provider-neutral,
// OpenAI-compatible form.
type ToolDeclaration struct {
	// Name is the function name.
	Name string `json:"name"`

	// Description explains to the model what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON schema of the tool arguments.
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call identifier.
	ID string `json:"id"`

	// Name is the function name.
	Name string `json:"name"`

	// Args holds the decoded function arguments.
	Args map[string]any `json:"args,omitempty"`
}

// Request is a chat completion request.
type Request struct {
	// Model is the model identifier; empty selects the provider default.
	Model string `json:"model,omitempty"`

	// Messages is the ordered message list.
	Messages []Message `json:"messages"`

	// Tools lists the tools the model may call.
	Tools []ToolDeclaration `json:"tools,omitempty"`
}

// Response is a chat completion response.
type Response struct {
	// Content is the text content of the response.
	Content string `json:"content"`

	// ToolCalls holds function invocations requested by the model, if any.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Usage contains token usage information (may be nil).
	Usage *Usage `json:"usage,omitempty"`
}

// Model is the interface all LLM backends must implement.
type Model interface {
	// GenerateContent performs one chat completion round trip.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)

	// Info returns metadata describing the backend.
	Info() Info
}

// Info is the model metadata.
type Info struct {
	// Name is the model identifier, e.g. "gpt-4o".
	Name string
}

// Factory builds a Model for the given model identifier. An empty
// identifier selects the factory's default model.
type Factory func(name string) (Model, error)
