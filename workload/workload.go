//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package workload discovers runnable agent definitions across
// prioritized locations and instantiates them behind one uniform
// interface, whatever their source format.
package workload

import (
	"context"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/compaction"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/ui"
)

// Format identifies a workload's source format.
type Format string

const (
	// FormatYAML is a declarative agent card.
	FormatYAML Format = "yaml"
	// FormatCode is a host-registered agent constructor.
	FormatCode Format = "code"
	// FormatDSL is a compiled workflow program.
	FormatDSL Format = "dsl"
)

// Definition is one discovered workload.
type Definition struct {
	// Name uniquely identifies the workload, case-insensitively.
	Name string

	// Description tells users what the workload does.
	Description string

	// Format selects the loader that materializes the workload.
	Format Format

	// SourcePath locates the definition for filesystem formats.
	SourcePath string

	// Location names the search location that claimed the definition.
	Location string
}

// Stream is a workload run in flight. Err is valid once the event
// channel has closed.
type Stream interface {
	// Events returns the run's event stream.
	Events() <-chan ui.Event

	// Err returns the error that ended the run, if any.
	Err() error
}

// Workload is a runnable agent or workflow.
type Workload interface {
	// Name returns the workload name.
	Name() string

	// RunAsync starts a run against the session with the new message.
	RunAsync(ctx context.Context, sess *session.Session, message *model.Message) (Stream, error)

	// Close releases the workload's resources.
	Close() error
}

// eventStream adapts a plain channel to the Stream interface. The
// producer sets err before closing the channel.
type eventStream struct {
	events chan ui.Event
	err    error
}

func (s *eventStream) Events() <-chan ui.Event { return s.events }
func (s *eventStream) Err() error              { return s.err }

// agentWorkload runs a single runtime agent, optionally under a
// token-aware compaction runner.
type agentWorkload struct {
	name   string
	agent  agent.Agent
	svc    session.Service
	runner *compaction.Runner
}

// NewAgentWorkload wraps a runtime agent as a workload. The session
// service, when set, persists events appended during the run; the
// compaction runner, when set, wraps the execution loop.
func NewAgentWorkload(name string, ag agent.Agent, svc session.Service, runner *compaction.Runner) Workload {
	return &agentWorkload{name: name, agent: ag, svc: svc, runner: runner}
}

func (w *agentWorkload) Name() string { return w.name }

func (w *agentWorkload) RunAsync(ctx context.Context, sess *session.Session, message *model.Message) (Stream, error) {
	inv := agent.NewInvocation(sess, message)
	inv.AgentName = w.name
	inv.Service = w.svc

	var ch <-chan *event.Event
	var err error
	if w.runner != nil {
		ch, err = w.runner.Run(ctx, w.agent, inv)
	} else {
		ch, err = w.agent.Run(ctx, inv)
	}
	if err != nil {
		return nil, err
	}
	stream := &eventStream{events: make(chan ui.Event, 64)}
	go func() {
		defer close(stream.events)
		for e := range ch {
			select {
			case stream.events <- ui.AgentEventEnvelope{Event: e}:
			case <-ctx.Done():
				stream.err = ctx.Err()
				return
			}
		}
	}()
	return stream, nil
}

func (w *agentWorkload) Close() error {
	return w.agent.Close()
}
