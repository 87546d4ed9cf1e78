//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package parallelagent provides a parallel agent implementation: a
// composite that runs its branches concurrently, merges their event
// streams and stashes each branch's final response under its output key
// in the session state.
package parallelagent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/tool"
)

// Branch is one concurrent run inside the composite.
type Branch struct {
	// Agent is the sub-agent to run.
	Agent agent.Agent

	// Message is the branch's user message, evaluated eagerly by the
	// caller; may be nil.
	Message *model.Message

	// OutputKey names the session-state slot receiving the branch's
	// final response text; empty drops the result.
	OutputKey string
}

// ParallelAgent runs its branches in parallel in an isolated manner.
type ParallelAgent struct {
	name       string
	branches   []Branch
	bufferSize int
}

// Option configures a ParallelAgent.
type Option func(*options)

type options struct {
	branches   []Branch
	bufferSize int
}

var defaultOptions = options{bufferSize: 256}

// WithBranches sets the branches to run.
func WithBranches(branches ...Branch) Option {
	return func(o *options) { o.branches = append(o.branches, branches...) }
}

// WithChannelBufferSize sets the merged channel buffer size.
func WithChannelBufferSize(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// New creates a new ParallelAgent with the given name and options.
func New(name string, opts ...Option) *ParallelAgent {
	cfg := defaultOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &ParallelAgent{
		name:       name,
		branches:   cfg.branches,
		bufferSize: cfg.bufferSize,
	}
}

// Info implements agent.Agent.
func (a *ParallelAgent) Info() agent.Info {
	return agent.Info{Name: a.name, Description: "parallel composite"}
}

// Tools implements agent.Agent; composites hold no tools of their own.
func (a *ParallelAgent) Tools() []tool.CallableTool { return nil }

// SubAgents implements agent.Agent.
func (a *ParallelAgent) SubAgents() []agent.Agent {
	subs := make([]agent.Agent, 0, len(a.branches))
	for _, b := range a.branches {
		subs = append(subs, b.Agent)
	}
	return subs
}

// Close closes every branch agent, collecting the first error.
func (a *ParallelAgent) Close() error {
	var firstErr error
	for _, b := range a.branches {
		if err := b.Agent.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run implements agent.Agent. Events are forwarded exactly once each, in
// arrival order from the branches. After a branch completes, its final
// response text lands in session state under the branch's output key.
func (a *ParallelAgent) Run(ctx context.Context, inv *agent.Invocation) (<-chan *event.Event, error) {
	merged := make(chan *event.Event, a.bufferSize)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	var stateMu sync.Mutex

	for i, branch := range a.branches {
		wg.Add(1)
		go func(idx int, b Branch) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("parallel branch %s (index %d) panicked: %v\n%s",
						b.Agent.Info().Name, idx, r, string(debug.Stack()))
				}
			}()
			a.runBranch(runCtx, inv, b, idx, merged, &stateMu)
		}(i, branch)
	}

	go func() {
		wg.Wait()
		cancel()
		close(merged)
	}()
	return merged, nil
}

func (a *ParallelAgent) runBranch(
	ctx context.Context,
	inv *agent.Invocation,
	b Branch,
	idx int,
	merged chan<- *event.Event,
	stateMu *sync.Mutex,
) {
	branchName := fmt.Sprintf("%s/%s", a.name, b.Agent.Info().Name)
	branchInv := inv.Clone(
		agent.WithBranch(branchName),
		agent.WithAgentName(b.Agent.Info().Name),
		agent.WithMessage(b.Message),
	)
	ch, err := b.Agent.Run(ctx, branchInv)
	if err != nil {
		log.Errorf("parallel branch %s failed to start: %v", branchName, err)
		return
	}
	var finalText string
	for e := range ch {
		if e.IsFinalResponse() && e.HasContent() {
			finalText = e.Text()
		}
		if !agent.EmitEvent(ctx, merged, e) {
			return
		}
	}
	if b.OutputKey != "" && inv.Session != nil {
		stateMu.Lock()
		inv.Session.State[b.OutputKey] = finalText
		stateMu.Unlock()
	}
}
