//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tiktoken provides a tiktoken-go based token counter keyed by
// model identifier, with a character-length fallback when encoding fails.
package tiktoken

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Counter estimates token counts for text using the tokenizer that
// matches a model identifier.
type Counter struct {
	encoding tokenizer.Codec
}

// New creates a tiktoken-based counter for the given model identifier.
// Unsupported models fall back to cl100k_base for broad compatibility.
func New(modelName string) (*Counter, error) {
	enc, err := tokenizer.ForModel(tokenizer.Model(modelName))
	if err != nil {
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, fmt.Errorf("tiktoken: failed to get fallback tokenizer: %w", err)
		}
	}
	return &Counter{encoding: enc}, nil
}

// CountText returns the token count for a single text. When encoding
// fails the estimate degrades to len(text)/4.
func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	toks, _, err := c.encoding.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(toks)
}
