//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/streetrace-ai/streetrace-go/model"
)

// MessageCompactor is the message-list form of compaction, for callers
// holding a raw chat transcript rather than a session.
type MessageCompactor struct {
	keepRecent int
	summarize  Summarizer
}

// NewMessageCompactor creates a message compactor; keepRecent <= 0
// selects the summarize default.
func NewMessageCompactor(keepRecent int, summarize Summarizer) *MessageCompactor {
	if keepRecent <= 0 {
		keepRecent = DefaultSummarizeKeepRecent
	}
	return &MessageCompactor{keepRecent: keepRecent, summarize: summarize}
}

// Compact keeps a leading system message and the last keepRecent
// messages, replacing the middle with a single system-authored summary.
// Transcripts with no middle to fold pass through unchanged.
func (c *MessageCompactor) Compact(ctx context.Context, messages []model.Message) ([]model.Message, error) {
	var head []model.Message
	rest := messages
	if len(rest) > 0 && rest[0].Role == model.RoleSystem {
		head = rest[:1]
		rest = rest[1:]
	}
	if len(rest) <= c.keepRecent {
		return messages, nil
	}
	middle := rest[:len(rest)-c.keepRecent]
	tail := rest[len(rest)-c.keepRecent:]

	summary, err := c.summarize(ctx, renderMessages(middle))
	if err != nil {
		return nil, fmt.Errorf("summarize messages: %w", err)
	}
	compacted := make([]model.Message, 0, len(head)+1+len(tail))
	compacted = append(compacted, head...)
	compacted = append(compacted,
		model.NewSystemMessage(summaryPrefix+summary+summarySuffix))
	compacted = append(compacted, tail...)
	return compacted, nil
}

func renderMessages(messages []model.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, truncateText(m.Content)))
	}
	return strings.Join(lines, "\n")
}
