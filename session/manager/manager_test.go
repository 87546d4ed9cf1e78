//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package manager

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/session/local"
)

func newManager(t *testing.T, opts ...Option) (*Manager, *local.Service) {
	t.Helper()
	svc := local.New(t.TempDir())
	t.Cleanup(func() { _ = svc.Close() })
	opts = append([]Option{WithSessionID("test-session")}, opts...)
	return New(svc, "streetrace", "alice", opts...), svc
}

func callEvent(name string, seq int) event.Event {
	return *event.New("inv", "coder", event.WithContent(
		event.FunctionCall{ID: fmt.Sprintf("call-%d", seq), Name: name},
	))
}

func responseEvent(name string, seq int) event.Event {
	return *event.New("inv", "coder", event.WithContent(
		event.FunctionResponse{ID: fmt.Sprintf("call-%d", seq), Name: name, Response: "ok"},
	))
}

func textEvent(author, text string) event.Event {
	return *event.New("inv", author, event.WithContent(event.Text{Text: text}))
}

// Appending 25 tool pairs and trimming must keep exactly the last 20
// pairs, i.e. pairs 5 through 24, with non-tool events untouched.
func TestManageCurrentSessionTrimsToolPairs(t *testing.T) {
	ctx := context.Background()
	m, svc := newManager(t)

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	lead := textEvent(event.AuthorUser, "please run the tools")
	require.NoError(t, svc.AppendEvent(ctx, sess, &lead))
	for i := 0; i < 25; i++ {
		call := callEvent(fmt.Sprintf("tool_%d", i), i)
		rsp := responseEvent(fmt.Sprintf("tool_%d", i), i)
		require.NoError(t, svc.AppendEvent(ctx, sess, &call))
		require.NoError(t, svc.AppendEvent(ctx, sess, &rsp))
	}
	tail := textEvent("coder", "all done")
	require.NoError(t, svc.AppendEvent(ctx, sess, &tail))

	require.NoError(t, m.ManageCurrentSession(ctx))

	got, err := svc.GetSession(ctx, m.CurrentKey())
	require.NoError(t, err)

	var pairs []string
	var texts []string
	for i := range got.Events {
		e := got.Events[i]
		if calls := e.FunctionCalls(); len(calls) > 0 {
			pairs = append(pairs, calls[0].Name)
			// Pairs stay adjacent after the trim.
			require.True(t, got.Events[i+1].HasFunctionResponse())
			require.Equal(t, calls[0].Name, got.Events[i+1].FunctionResponses()[0].Name)
		}
		if e.IsFinalResponse() && e.HasContent() {
			texts = append(texts, e.Text())
		}
	}
	require.Len(t, pairs, MaxToolCallsInSession)
	require.Equal(t, "tool_5", pairs[0])
	require.Equal(t, "tool_24", pairs[len(pairs)-1])
	require.Contains(t, texts, "please run the tools")
	require.Contains(t, texts, "all done")
}

// Trimming is idempotent: a second pass over a capped session is a
// no-op.
func TestManageCurrentSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	m, svc := newManager(t)

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		call := callEvent(fmt.Sprintf("tool_%d", i), i)
		rsp := responseEvent(fmt.Sprintf("tool_%d", i), i)
		require.NoError(t, svc.AppendEvent(ctx, sess, &call))
		require.NoError(t, svc.AppendEvent(ctx, sess, &rsp))
	}
	require.NoError(t, m.ManageCurrentSession(ctx))
	first, err := svc.GetSession(ctx, m.CurrentKey())
	require.NoError(t, err)

	require.NoError(t, m.ManageCurrentSession(ctx))
	second, err := svc.GetSession(ctx, m.CurrentKey())
	require.NoError(t, err)
	require.Equal(t, len(first.Events), len(second.Events))
}

func TestManageCurrentSessionNameMismatch(t *testing.T) {
	ctx := context.Background()
	m, svc := newManager(t)

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)
	for i := 0; i < 21; i++ {
		call := *event.New("inv", "coder", event.WithContent(
			event.FunctionCall{Name: fmt.Sprintf("tool_%d", i)}))
		rsp := *event.New("inv", "coder", event.WithContent(
			event.FunctionResponse{Name: fmt.Sprintf("other_%d", i), Response: "ok"}))
		require.NoError(t, svc.AppendEvent(ctx, sess, &call))
		require.NoError(t, svc.AppendEvent(ctx, sess, &rsp))
	}

	err = m.ManageCurrentSession(ctx)
	require.ErrorIs(t, err, ErrInvariantViolation)
}

// Orphan repair: a response without its call is dropped, a call without
// its response is dropped, and valid pairs survive.
func TestValidateSessionRepairsOrphans(t *testing.T) {
	ctx := context.Background()
	m, svc := newManager(t)

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	orphanRsp := responseEvent("lonely", 99)
	goodCall := callEvent("read_file", 1)
	goodRsp := responseEvent("read_file", 1)
	danglingCall := callEvent("write_file", 2)
	final := textEvent("coder", "done")

	for _, e := range []event.Event{orphanRsp, goodCall, goodRsp, danglingCall, final} {
		ec := e
		require.NoError(t, svc.AppendEvent(ctx, sess, &ec))
	}

	repaired, err := m.ValidateSession(ctx, sess)
	require.NoError(t, err)

	var callNames, rspNames []string
	for i := range repaired.Events {
		e := repaired.Events[i]
		for _, c := range e.FunctionCalls() {
			callNames = append(callNames, c.Name)
		}
		for _, r := range e.FunctionResponses() {
			rspNames = append(rspNames, r.Name)
		}
	}
	require.Equal(t, []string{"read_file"}, callNames)
	require.Equal(t, []string{"read_file"}, rspNames)

	// The repaired form persists.
	fresh, err := svc.GetSession(ctx, m.CurrentKey())
	require.NoError(t, err)
	require.Equal(t, len(repaired.Events), len(fresh.Events))
}

// A clean session passes validation untouched, without a store write.
func TestValidateSessionNoChange(t *testing.T) {
	ctx := context.Background()
	m, svc := newManager(t)

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)
	call := callEvent("ls", 1)
	rsp := responseEvent("ls", 1)
	require.NoError(t, svc.AppendEvent(ctx, sess, &call))
	require.NoError(t, svc.AppendEvent(ctx, sess, &rsp))

	before := len(sess.Events)
	repaired, err := m.ValidateSession(ctx, sess)
	require.NoError(t, err)
	require.Same(t, sess, repaired)
	require.Len(t, repaired.Events, before)
}

func TestPostProcessSquashesTurn(t *testing.T) {
	ctx := context.Background()
	var recordedInput, recordedText string
	m, svc := newManager(t, WithContextRecorder(func(userInput, assistantText string) {
		recordedInput = userInput
		recordedText = assistantText
	}))

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	events := []event.Event{
		textEvent(event.AuthorUser, "fix the bug"),
		callEvent("read_file", 1),
		responseEvent("read_file", 1),
		*event.New("inv", "coder", event.WithContent(event.Text{Text: "thinking"}), event.WithPartial()),
		textEvent("coder", "The bug is fixed."),
	}
	for i := range events {
		require.NoError(t, svc.AppendEvent(ctx, sess, &events[i]))
	}

	require.NoError(t, m.PostProcess(ctx, "fix the bug", sess))

	got, err := svc.GetSession(ctx, m.CurrentKey())
	require.NoError(t, err)
	for i := range got.Events {
		e := got.Events[i]
		require.True(t, e.IsFinalResponse())
		require.True(t, e.HasContent())
	}
	require.Equal(t, "fix the bug", recordedInput)
	require.Equal(t, "The bug is fixed.", recordedText)
}

func TestPostProcessDerivesUserInput(t *testing.T) {
	ctx := context.Background()
	var recordedInput string
	m, svc := newManager(t, WithContextRecorder(func(userInput, _ string) {
		recordedInput = userInput
	}))

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)
	first := textEvent(event.AuthorUser, "first ask")
	second := textEvent(event.AuthorUser, "second ask")
	require.NoError(t, svc.AppendEvent(ctx, sess, &first))
	require.NoError(t, svc.AppendEvent(ctx, sess, &second))

	require.NoError(t, m.PostProcess(ctx, "", sess))
	require.Equal(t, "first ask\nsecond ask", recordedInput)
}

func TestStripBashPreamble(t *testing.T) {
	require.Equal(t, "echo x", StripBashPreamble("!echo x"))
	require.Equal(t, "echo x", StripBashPreamble("! echo x"))
	require.Equal(t, "  echo x", StripBashPreamble("  !  echo x"))
	require.Equal(t, "plain input", StripBashPreamble("plain input"))
	require.Equal(t, "a ! b", StripBashPreamble("a ! b"))
}
