//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package guardrail provides text guardrails for workflow runs: PII
// masking and jailbreak detection. The provider contract allows an
// LLM-backed implementation to replace the regex one without changing
// call sites.
package guardrail

import (
	"regexp"
	"strings"

	"github.com/streetrace-ai/streetrace-go/log"
)

// Guardrail kinds understood by the regex provider.
const (
	KindPII       = "pii"
	KindJailbreak = "jailbreak"
)

// Provider masks or checks text for a named guardrail kind.
type Provider interface {
	// Mask returns text with sensitive spans redacted. Unknown kinds log
	// a warning and return the input unchanged.
	Mask(kind, text string) string

	// Check reports whether text trips the guardrail. Unknown kinds log
	// a warning and return false.
	Check(kind, text string) bool
}

// piiPattern pairs a regex with its replacement marker. Order matters:
// credit card before SSN before phone before email, so a 16-digit run is
// not partially consumed by a shorter pattern.
type piiPattern struct {
	re          *regexp.Regexp
	replacement string
}

var piiPatterns = []piiPattern{
	{regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{4}\b`), "[CREDIT_CARD]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
}

// jailbreakPatterns is a small fixed list of instruction-override
// phrasings, persona-jailbreak markers and system-prompt probes.
var jailbreakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(?:your|the)\s+(?:system\s+prompt|instructions)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|in)\b`),
	regexp.MustCompile(`(?i)pretend\s+(?:to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)\bdan\s+mode\b`),
	regexp.MustCompile(`(?i)\bdeveloper\s+mode\b`),
	regexp.MustCompile(`(?i)(?:reveal|show|print)\s+(?:me\s+)?your\s+(?:system\s+)?prompt`),
	regexp.MustCompile(`(?i)bypass\s+safety`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
}

// Regex is the default regex-backed guardrail provider. Intentionally
// coarse; see the Provider contract for swapping in something smarter.
type Regex struct{}

// NewRegex creates the regex guardrail provider.
func NewRegex() *Regex { return &Regex{} }

// Mask implements Provider.
func (r *Regex) Mask(kind, text string) string {
	switch strings.ToLower(kind) {
	case KindPII:
		for _, p := range piiPatterns {
			text = p.re.ReplaceAllString(text, p.replacement)
		}
		return text
	default:
		log.Warnf("guardrail: unknown mask kind %q", kind)
		return text
	}
}

// Check implements Provider.
func (r *Regex) Check(kind, text string) bool {
	switch strings.ToLower(kind) {
	case KindJailbreak:
		for _, re := range jailbreakPatterns {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	default:
		log.Warnf("guardrail: unknown check kind %q", kind)
		return false
	}
}
