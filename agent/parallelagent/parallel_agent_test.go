//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package parallelagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/tool"
)

// stubAgent emits a partial then a final event and records the user
// message it received.
type stubAgent struct {
	name     string
	final    string
	received string
}

func (a *stubAgent) Info() agent.Info           { return agent.Info{Name: a.name} }
func (a *stubAgent) Tools() []tool.CallableTool { return nil }
func (a *stubAgent) SubAgents() []agent.Agent   { return nil }
func (a *stubAgent) Close() error               { return nil }

func (a *stubAgent) Run(ctx context.Context, inv *agent.Invocation) (<-chan *event.Event, error) {
	if inv.Message != nil {
		a.received = inv.Message.Content
	}
	ch := make(chan *event.Event, 2)
	go func() {
		defer close(ch)
		partial := event.New(inv.InvocationID, a.name,
			event.WithContent(event.Text{Text: "working"}), event.WithPartial())
		final := event.New(inv.InvocationID, a.name,
			event.WithContent(event.Text{Text: a.final}))
		agent.EmitEvent(ctx, ch, partial)
		agent.EmitEvent(ctx, ch, final)
	}()
	return ch, nil
}

func TestRunMergesBranchesAndCapturesFinals(t *testing.T) {
	left := &stubAgent{name: "left", final: "left done"}
	right := &stubAgent{name: "right", final: "right done"}
	leftMsg := model.NewUserMessage("analyze A")
	rightMsg := model.NewUserMessage("analyze B")

	pa := New("fanout", WithBranches(
		Branch{Agent: left, Message: &leftMsg, OutputKey: "out_left"},
		Branch{Agent: right, Message: &rightMsg, OutputKey: "out_right"},
	))
	t.Cleanup(func() { _ = pa.Close() })

	sess := session.New("app", "user", "s1")
	inv := agent.NewInvocation(sess, nil)

	ch, err := pa.Run(context.Background(), inv)
	require.NoError(t, err)

	perAuthor := make(map[string]int)
	for e := range ch {
		perAuthor[e.Author]++
	}

	// Every branch event is forwarded exactly once.
	require.Equal(t, map[string]int{"left": 2, "right": 2}, perAuthor)

	// Final texts land under the branches' output keys.
	require.Equal(t, "left done", sess.State["out_left"])
	require.Equal(t, "right done", sess.State["out_right"])

	// Branches received their own messages, not the parent's.
	require.Equal(t, "analyze A", left.received)
	require.Equal(t, "analyze B", right.received)
}

// appendingAgent records events on the shared session through the
// invocation, the way model-backed agents do.
type appendingAgent struct {
	name  string
	count int
}

func (a *appendingAgent) Info() agent.Info           { return agent.Info{Name: a.name} }
func (a *appendingAgent) Tools() []tool.CallableTool { return nil }
func (a *appendingAgent) SubAgents() []agent.Agent   { return nil }
func (a *appendingAgent) Close() error               { return nil }

func (a *appendingAgent) Run(ctx context.Context, inv *agent.Invocation) (<-chan *event.Event, error) {
	ch := make(chan *event.Event, 1)
	go func() {
		defer close(ch)
		for i := 0; i < a.count; i++ {
			e := event.New(inv.InvocationID, a.name, event.WithContent(event.Text{Text: "step"}))
			if err := inv.AppendEvent(ctx, e); err != nil {
				return
			}
		}
		agent.EmitEvent(ctx, ch, event.New(inv.InvocationID, a.name,
			event.WithContent(event.Text{Text: "done"})))
	}()
	return ch, nil
}

// Branches append to the shared session concurrently; no append may be
// lost.
func TestRunBranchesShareSessionSafely(t *testing.T) {
	const perBranch = 200
	pa := New("fanout", WithBranches(
		Branch{Agent: &appendingAgent{name: "left", count: perBranch}},
		Branch{Agent: &appendingAgent{name: "right", count: perBranch}},
	))

	sess := session.New("app", "user", "s1")
	ch, err := pa.Run(context.Background(), agent.NewInvocation(sess, nil))
	require.NoError(t, err)
	for range ch {
	}
	require.Len(t, sess.Events, 2*perBranch)
}

func TestRunEmptyOutputKeyDropsResult(t *testing.T) {
	a := &stubAgent{name: "solo", final: "done"}
	pa := New("fanout", WithBranches(Branch{Agent: a}))

	sess := session.New("app", "user", "s1")
	ch, err := pa.Run(context.Background(), agent.NewInvocation(sess, nil))
	require.NoError(t, err)
	for range ch {
	}
	require.Empty(t, sess.State)
}
