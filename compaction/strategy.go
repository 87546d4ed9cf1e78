//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package compaction rewrites conversation history to keep a session
// under its model's context window during multi-step runs, without
// fracturing tool-call/tool-result pairs.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/session"
)

// Defaults for strategy parameters.
const (
	DefaultThresholdRatio      = 0.80
	DefaultTruncateKeepRecent  = 6
	DefaultSummarizeKeepRecent = 4

	// maxRenderedTextLen caps each text part when rendering events for
	// summarization.
	maxRenderedTextLen = 2000

	summaryPrefix = "[Previous conversation summary: "
	summarySuffix = "]"
)

// ContinuationMessage seeds the restarted agent run after a compaction.
// Agent loops require a non-empty user message when resuming a
// non-empty session.
const ContinuationMessage = "Session compacted. Continue from where you left off."

// Strategy rewrites a session's event list. Compact must return a
// session whose events preserve enough state for the agent to continue.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// ThresholdRatio is the fraction of the context window at which the
	// runner triggers compaction, in (0, 1].
	ThresholdRatio() float64

	// Compact rewrites the session in place and returns it.
	Compact(ctx context.Context, sess *session.Session) (*session.Session, error)
}

// Truncate drops middle events, keeping the leading context seed and
// the most recent events.
type Truncate struct {
	KeepRecent     int
	thresholdRatio float64
}

// NewTruncate creates a truncation strategy; keepRecent <= 0 selects
// the default.
func NewTruncate(keepRecent int) *Truncate {
	if keepRecent <= 0 {
		keepRecent = DefaultTruncateKeepRecent
	}
	return &Truncate{KeepRecent: keepRecent, thresholdRatio: DefaultThresholdRatio}
}

// Name implements Strategy.
func (t *Truncate) Name() string { return "truncate" }

// ThresholdRatio implements Strategy.
func (t *Truncate) ThresholdRatio() float64 { return t.thresholdRatio }

// Compact keeps the first event when it is the system or user context
// seed, drops the middle, and keeps the last KeepRecent events. The
// result is always a subsequence of the input.
func (t *Truncate) Compact(_ context.Context, sess *session.Session) (*session.Session, error) {
	events := sess.Events
	var head []event.Event
	if len(events) > 0 {
		switch events[0].Author {
		case event.AuthorSystem, event.AuthorUser:
			head = events[:1]
			events = events[1:]
		}
	}
	if len(events) > t.KeepRecent {
		events = events[len(events)-t.KeepRecent:]
	}
	compacted := make([]event.Event, 0, len(head)+len(events))
	compacted = append(compacted, head...)
	compacted = append(compacted, events...)
	sess.Events = compacted
	return sess, nil
}

// Summarizer condenses a rendered transcript into a short summary.
type Summarizer func(ctx context.Context, transcript string) (string, error)

// Summarize collapses the conversation into a single system-authored
// summary event produced by an injected LLM closure.
type Summarize struct {
	KeepRecent     int
	summarize      Summarizer
	thresholdRatio float64
}

// NewSummarize creates a summarization strategy; keepRecent <= 0
// selects the default.
func NewSummarize(keepRecent int, summarize Summarizer) *Summarize {
	if keepRecent <= 0 {
		keepRecent = DefaultSummarizeKeepRecent
	}
	return &Summarize{
		KeepRecent:     keepRecent,
		summarize:      summarize,
		thresholdRatio: DefaultThresholdRatio,
	}
}

// Name implements Strategy.
func (s *Summarize) Name() string { return "summarize" }

// ThresholdRatio implements Strategy.
func (s *Summarize) ThresholdRatio() float64 { return s.thresholdRatio }

// Compact keeps the first event when system-authored and replaces all
// remaining events with a single system-authored summary. Sessions with
// no more than KeepRecent+1 events pass through unchanged.
func (s *Summarize) Compact(ctx context.Context, sess *session.Session) (*session.Session, error) {
	events := sess.Events
	if s.KeepRecent+1 >= len(events) {
		return sess, nil
	}
	var head []event.Event
	if len(events) > 0 && events[0].Author == event.AuthorSystem {
		head = events[:1]
		events = events[1:]
	}
	transcript := RenderTranscript(events)
	summary, err := s.summarize(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("summarize history: %w", err)
	}
	summaryEvent := event.New("", event.AuthorSystem,
		event.WithContent(event.Text{Text: summaryPrefix + summary + summarySuffix}))

	compacted := make([]event.Event, 0, len(head)+1)
	compacted = append(compacted, head...)
	compacted = append(compacted, *summaryEvent)
	sess.Events = compacted
	return sess, nil
}

// RenderTranscript renders events line by line for summarization. Tool
// activity renders as markers rather than payloads; long text parts are
// truncated.
func RenderTranscript(events []event.Event) string {
	lines := make([]string, 0, len(events))
	for i := range events {
		lines = append(lines, renderEvent(&events[i]))
	}
	return strings.Join(lines, "\n")
}

func renderEvent(e *event.Event) string {
	var content string
	switch {
	case e.HasFunctionCall():
		content = fmt.Sprintf("[Called tool: %s]", e.FunctionCalls()[0].Name)
	case e.HasFunctionResponse():
		content = fmt.Sprintf("[Tool %s returned result]", e.FunctionResponses()[0].Name)
	default:
		content = truncateText(e.Text())
	}
	return fmt.Sprintf("%s: %s", e.Author, content)
}

func truncateText(text string) string {
	if len(text) <= maxRenderedTextLen {
		return text
	}
	return text[:maxRenderedTextLen] + "... [truncated]"
}
