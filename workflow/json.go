//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ExtractJSON parses a model response as JSON. A response wrapped in
// exactly one fenced code block (with or without a json label) is
// unwrapped first; more than one fenced block is ambiguous and fails.
func ExtractJSON(content string) (any, error) {
	text := strings.TrimSpace(content)
	blocks := fencedBlockRe.FindAllStringSubmatch(text, -1)
	switch {
	case len(blocks) > 1:
		return nil, &JSONParseError{Reason: "multiple code blocks", RawResponse: content}
	case len(blocks) == 1:
		text = strings.TrimSpace(blocks[0][1])
	}
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, &JSONParseError{Reason: err.Error(), RawResponse: content}
	}
	return value, nil
}
