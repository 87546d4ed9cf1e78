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
	"fmt"
	"strings"
	"sync"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/workflow"
)

// AgentBuilder constructs a runtime agent on demand.
type AgentBuilder func(ctx context.Context) (agent.Agent, error)

// Registry is an in-process workload location: hosts register agent
// constructors and compiled workflow programs under names, and the
// manager discovers them like any filesystem location.
type Registry struct {
	name string

	mu       sync.RWMutex
	defs     []Definition
	agents   map[string]AgentBuilder
	programs map[string]*workflow.Runtime
}

// NewRegistry creates a named registry location.
func NewRegistry(name string) *Registry {
	return &Registry{
		name:     name,
		agents:   make(map[string]AgentBuilder),
		programs: make(map[string]*workflow.Runtime),
	}
}

// RegisterAgent registers a code-format workload.
func (r *Registry) RegisterAgent(name, description string, build AgentBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, Definition{
		Name:        name,
		Description: description,
		Format:      FormatCode,
		Location:    r.name,
	})
	r.agents[strings.ToLower(name)] = build
}

// RegisterProgram registers a dsl-format workload backed by a compiled
// workflow runtime.
func (r *Registry) RegisterProgram(name, description string, rt *workflow.Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, Definition{
		Name:        name,
		Description: description,
		Format:      FormatDSL,
		Location:    r.name,
	})
	r.programs[strings.ToLower(name)] = rt
}

// Name implements Location.
func (r *Registry) Name() string { return r.name }

func (r *Registry) discover(_ context.Context, _ *Manager) ([]Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, len(r.defs))
	copy(defs, r.defs)
	return defs, nil
}

func (r *Registry) load(ctx context.Context, m *Manager, def Definition) (Workload, error) {
	key := strings.ToLower(def.Name)
	r.mu.RLock()
	build, hasAgent := r.agents[key]
	rt, hasProgram := r.programs[key]
	r.mu.RUnlock()

	switch {
	case def.Format == FormatCode && hasAgent:
		ag, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build workload %q: %w", def.Name, err)
		}
		return NewAgentWorkload(def.Name, ag, m.service, m.runner), nil
	case def.Format == FormatDSL && hasProgram:
		return NewDSLWorkload(def.Name, rt), nil
	default:
		return nil, fmt.Errorf("workload %q not registered in %s", def.Name, r.name)
	}
}
