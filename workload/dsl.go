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

	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/workflow"
)

// dslWorkload runs a compiled workflow program. The user message is
// bound as the flow's "input" and "user_input" variables.
type dslWorkload struct {
	name    string
	runtime *workflow.Runtime
}

// NewDSLWorkload wraps a workflow runtime as a workload.
func NewDSLWorkload(name string, rt *workflow.Runtime) Workload {
	return &dslWorkload{name: name, runtime: rt}
}

func (w *dslWorkload) Name() string { return w.name }

func (w *dslWorkload) RunAsync(ctx context.Context, _ *session.Session, message *model.Message) (Stream, error) {
	var input string
	if message != nil {
		input = message.Content
	}
	vars := map[string]any{
		"input":      input,
		"user_input": input,
	}
	return w.runtime.Run(ctx, workflow.MainFlow, vars), nil
}

// Close implements Workload. Flow-built agents are closed per-run by
// the runtime, so there is nothing to release here.
func (w *dslWorkload) Close() error { return nil }
