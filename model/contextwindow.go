//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import "strings"

// DefaultContextWindow is used when the model identifier is unknown.
const DefaultContextWindow = 128_000

// contextWindows maps model identifier prefixes to context window sizes.
// Longest prefix wins so that more specific entries shadow family defaults.
var contextWindows = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4.1":           1_047_576,
	"gpt-4-turbo":       128_000,
	"gpt-4":             8_192,
	"gpt-3.5-turbo":     16_385,
	"o1":                200_000,
	"o3":                200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,
	"claude-3-opus":     200_000,
	"gemini-1.5-pro":    2_097_152,
	"gemini-1.5-flash":  1_048_576,
	"gemini-2.0-flash":  1_048_576,
}

// ContextWindow returns the context window size for the given model
// identifier, falling back to DefaultContextWindow when unknown.
func ContextWindow(name string) int {
	best := ""
	for prefix := range contextWindows {
		if strings.HasPrefix(name, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return DefaultContextWindow
	}
	return contextWindows[best]
}
