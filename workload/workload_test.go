//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/tool"
	"github.com/streetrace-ai/streetrace-go/ui"
)

func writeCard(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCardValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := readCard(writeCard(t, dir, "good.yaml", `
name: reviewer
description: reviews code
instruction: review it
`))
	require.NoError(t, err)

	_, err = readCard(writeCard(t, dir, "badname.yaml", `
name: "has spaces"
instruction: x
`))
	require.Error(t, err)

	_, err = readCard(writeCard(t, dir, "schema_tools.yaml", `
name: conflicted
tools: [fs]
output_schema:
  type: object
`))
	require.ErrorContains(t, err, "mutually exclusive")

	_, err = readCard(writeCard(t, dir, "schema_subs.yaml", `
name: conflicted2
sub_agents: [helper]
output_schema:
  type: object
`))
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestCardEnvExpansion(t *testing.T) {
	t.Setenv("REVIEW_MODEL", "gpt-4o")
	dir := t.TempDir()

	c, err := readCard(writeCard(t, dir, "card.yaml", `
name: reviewer
model: ${REVIEW_MODEL}
instruction: use ${UNSET_STYLE:-strict} style on ${UNSET_NO_DEFAULT}
`))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", c.Model)
	require.Equal(t, "use strict style on ", c.Instruction)
}

// The name field never expands, so cards stay addressable across
// environments.
func TestCardNameNotExpanded(t *testing.T) {
	t.Setenv("AGENT_NAME", "expanded")
	dir := t.TempDir()

	path := writeCard(t, dir, "card.yaml", "name: fixed\ninstruction: ${AGENT_NAME}\n")
	c, err := readCard(path)
	require.NoError(t, err)
	require.Equal(t, "fixed", c.Name)
	require.Equal(t, "expanded", c.Instruction)
}

func discoverManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	m := NewManager(opts...)
	require.NoError(t, m.Discover(context.Background()))
	return m
}

// The first location to produce a name claims it; later duplicates are
// shadowed, case-insensitively.
func TestDiscoverLocationPriority(t *testing.T) {
	high := t.TempDir()
	low := t.TempDir()
	writeCard(t, high, "reviewer.yaml", "name: reviewer\ndescription: from high\n")
	writeCard(t, low, "reviewer.yaml", "name: Reviewer\ndescription: from low\n")
	writeCard(t, low, "fixer.yaml", "name: fixer\ndescription: fixes\n")

	m := discoverManager(t, WithLocations(NewDirLocation(high), NewDirLocation(low)))

	defs := m.List()
	require.Len(t, defs, 2)
	require.Equal(t, "reviewer", defs[0].Name)
	require.Equal(t, "from high", defs[0].Description)
	require.Equal(t, high, defs[0].Location)
	require.Equal(t, "fixer", defs[1].Name)
}

func TestDiscoverSkipsHiddenAndBlocklistedDirs(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "visible.yaml", "name: visible\n")
	writeCard(t, dir, ".hidden/secret.yaml", "name: secret\n")
	writeCard(t, dir, "node_modules/dep.yaml", "name: dep\n")
	writeCard(t, dir, "nested/deep.yaml", "name: deep\n")
	// Non-card YAML is ignored, not an error.
	writeCard(t, dir, "config.yaml", "retries: 3\n")

	m := discoverManager(t, WithLocations(NewDirLocation(dir)))

	var names []string
	for _, def := range m.List() {
		names = append(names, def.Name)
	}
	require.ElementsMatch(t, []string{"visible", "deep"}, names)
}

// stubAgent emits one final event per run.
type stubAgent struct {
	name   string
	closed bool
}

func (a *stubAgent) Info() agent.Info           { return agent.Info{Name: a.name} }
func (a *stubAgent) Tools() []tool.CallableTool { return nil }
func (a *stubAgent) SubAgents() []agent.Agent   { return nil }
func (a *stubAgent) Close() error               { a.closed = true; return nil }

func (a *stubAgent) Run(ctx context.Context, inv *agent.Invocation) (<-chan *event.Event, error) {
	ch := make(chan *event.Event, 1)
	e := event.New(inv.InvocationID, a.name, event.WithContent(event.Text{Text: "done"}))
	agent.EmitEvent(ctx, ch, e)
	close(ch)
	return ch, nil
}

func TestCreateWorkloadDefaultAlias(t *testing.T) {
	ag := &stubAgent{name: "coder"}
	m := discoverManager(t, WithDefaultWorkload(func(context.Context) (agent.Agent, error) {
		return ag, nil
	}))

	// The alias resolves case-insensitively even with nothing discovered.
	w, err := m.CreateWorkload(context.Background(), "DEFAULT")
	require.NoError(t, err)
	require.Equal(t, DefaultName, w.Name())

	sess := session.New("app", "user", "s1")
	msg := model.NewUserMessage("go")
	stream, err := w.RunAsync(context.Background(), sess, &msg)
	require.NoError(t, err)

	var texts []string
	for e := range stream.Events() {
		env, ok := e.(ui.AgentEventEnvelope)
		require.True(t, ok)
		texts = append(texts, env.Event.Text())
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []string{"done"}, texts)
}

func TestCreateWorkloadUnknownName(t *testing.T) {
	m := discoverManager(t)
	_, err := m.CreateWorkload(context.Background(), "ghost")
	require.ErrorContains(t, err, "not found")
}

// WithWorkload closes the workload even when fn fails.
func TestWithWorkloadAlwaysCloses(t *testing.T) {
	ag := &stubAgent{name: "coder"}
	m := discoverManager(t, WithDefaultWorkload(func(context.Context) (agent.Agent, error) {
		return ag, nil
	}))

	wantErr := os.ErrDeadlineExceeded
	err := m.WithWorkload(context.Background(), "default", func(Workload) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.True(t, ag.closed)
}

func TestRegistryWorkloads(t *testing.T) {
	reg := NewRegistry("host")
	ag := &stubAgent{name: "builtin"}
	reg.RegisterAgent("builtin", "host agent", func(context.Context) (agent.Agent, error) {
		return ag, nil
	})

	m := discoverManager(t, WithLocations(reg))

	defs := m.List()
	require.Len(t, defs, 1)
	require.Equal(t, FormatCode, defs[0].Format)
	require.Equal(t, "host", defs[0].Location)

	w, err := m.CreateWorkload(context.Background(), "Builtin")
	require.NoError(t, err)
	require.Equal(t, "builtin", w.Name())
	require.NoError(t, w.Close())
	require.True(t, ag.closed)
}

func TestYAMLWorkloadLoads(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "planner.yaml", `
name: planner
description: plans the work
model: test-model
instruction: plan it
sub_agents: [executor]
`)
	writeCard(t, dir, "executor.yaml", "name: executor\ninstruction: execute\n")

	var requested []string
	factory := func(name string) (model.Model, error) {
		requested = append(requested, name)
		return nil, nil
	}
	m := discoverManager(t,
		WithLocations(NewDirLocation(dir)),
		WithModelFactory(factory),
		WithDefaultModel("fallback-model"),
	)

	w, err := m.CreateWorkload(context.Background(), "planner")
	require.NoError(t, err)
	require.Equal(t, "planner", w.Name())
	require.NoError(t, w.Close())

	// The card's own model wins; the sub-agent card falls back.
	require.Equal(t, []string{"test-model", "fallback-model"}, requested)
}

func TestYAMLSubAgentCycleFails(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "a.yaml", "name: a\nsub_agents: [b]\n")
	writeCard(t, dir, "b.yaml", "name: b\nsub_agents: [a]\n")

	m := discoverManager(t,
		WithLocations(NewDirLocation(dir)),
		WithModelFactory(func(string) (model.Model, error) { return nil, nil }),
	)

	_, err := m.CreateWorkload(context.Background(), "a")
	require.ErrorContains(t, err, "cycle")
}
