//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"encoding/json"
	"fmt"
)

// Part kind discriminators used in the serialized form.
const (
	KindText             = "text"
	KindFunctionCall     = "function_call"
	KindFunctionResponse = "function_response"
)

// Part is one element of an event's content: plain text, a tool
// invocation, or a tool result. Unknown serialized kinds are preserved
// verbatim as Opaque parts so sessions round-trip losslessly.
type Part interface {
	// Kind returns the part kind discriminator.
	Kind() string
}

// Text is a plain-text content part.
type Text struct {
	Text string `json:"text"`
}

// Kind implements Part.
func (Text) Kind() string { return KindText }

// FunctionCall is a tool invocation requested by an agent.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Kind implements Part.
func (FunctionCall) Kind() string { return KindFunctionCall }

// FunctionResponse is the result of a tool invocation.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
}

// Kind implements Part.
func (FunctionResponse) Kind() string { return KindFunctionResponse }

// Opaque preserves a part of unknown kind exactly as it appeared on disk.
type Opaque struct {
	Raw json.RawMessage
}

// Kind implements Part.
func (o Opaque) Kind() string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(o.Raw, &probe); err != nil {
		return ""
	}
	return probe.Type
}

// Matches reports whether call and response form a pair: by id when both
// carry one, otherwise by function name.
func Matches(call FunctionCall, rsp FunctionResponse) bool {
	if call.ID != "" && rsp.ID != "" {
		return call.ID == rsp.ID
	}
	return call.Name == rsp.Name
}

// marshalPart serializes a part with its kind discriminator.
func marshalPart(p Part) (json.RawMessage, error) {
	switch v := p.(type) {
	case Text:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: KindText, Text: v.Text})
	case FunctionCall:
		return json.Marshal(struct {
			Type string         `json:"type"`
			ID   string         `json:"id,omitempty"`
			Name string         `json:"name"`
			Args map[string]any `json:"args,omitempty"`
		}{Type: KindFunctionCall, ID: v.ID, Name: v.Name, Args: v.Args})
	case FunctionResponse:
		return json.Marshal(struct {
			Type     string `json:"type"`
			ID       string `json:"id,omitempty"`
			Name     string `json:"name"`
			Response any    `json:"response,omitempty"`
		}{Type: KindFunctionResponse, ID: v.ID, Name: v.Name, Response: v.Response})
	case Opaque:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("event: unsupported part type %T", p)
	}
}

// unmarshalPart deserializes a part by its kind discriminator. Unknown
// kinds come back as Opaque.
func unmarshalPart(raw json.RawMessage) (Part, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("event: undecodable part: %w", err)
	}
	switch probe.Type {
	case KindText:
		var p Text
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindFunctionCall:
		var p FunctionCall
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindFunctionResponse:
		var p FunctionResponse
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		keep := make(json.RawMessage, len(raw))
		copy(keep, raw)
		return Opaque{Raw: keep}, nil
	}
}
