//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI-backed implementation of model.Model.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
)

// defaultModel is used when the caller does not name a model.
const defaultModel = "gpt-4o"

// Model implements model.Model backed by the OpenAI chat completions API.
type Model struct {
	name   string
	client openai.Client
}

// Option configures the Model.
type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	httpOption []openaiopt.RequestOption
}

// WithAPIKey sets the API key explicitly instead of reading the environment.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// New creates an OpenAI-backed model for the given model identifier.
func New(name string, opts ...Option) *Model {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = defaultModel
	}
	clientOpts := o.httpOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	return &Model{
		name:   name,
		client: openai.NewClient(clientOpts...),
	}
}

// Factory returns a model.Factory producing OpenAI-backed models.
func Factory(opts ...Option) model.Factory {
	return func(name string) (model.Model, error) {
		return New(name, opts...), nil
	}
}

// Info returns model metadata.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent performs one chat completion round trip.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (*model.Response, error) {
	if request == nil {
		return nil, fmt.Errorf("openai: request is nil")
	}
	name := request.Model
	if name == "" {
		name = m.name
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(name),
		Messages: convertMessages(request.Messages),
	}
	if len(request.Tools) > 0 {
		params.Tools = convertTools(request.Tools)
	}
	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: completion returned no choices")
	}
	choice := completion.Choices[0]
	rsp := &model.Response{
		Content: choice.Message.Content,
		Usage: &model.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				log.Warnf("openai: undecodable tool call arguments for %s: %v", tc.Function.Name, err)
			}
		}
		rsp.ToolCalls = append(rsp.ToolCalls, model.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return rsp, nil
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func convertTools(tools []model.ToolDeclaration) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.InputSchema),
			},
		})
	}
	return result
}
