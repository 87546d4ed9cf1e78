//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package supervisor is the single entry point for one user input: it
// resolves the target workload, prepares the session, streams the run's
// events to the UI bus and captures the final response.
package supervisor

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	sessionmanager "github.com/streetrace-ai/streetrace-go/session/manager"
	"github.com/streetrace-ai/streetrace-go/telemetry"
	"github.com/streetrace-ai/streetrace-go/ui"
	"github.com/streetrace-ai/streetrace-go/workload"
)

const (
	// spanName is the telemetry span wrapping one handled input.
	spanName = "streetrace_agent_run"

	// EscalatedResponse marks a run that ended with a content-free
	// escalation.
	EscalatedResponse = "escalated"

	// NoResponseFallback is reported when the stream produced nothing.
	NoResponseFallback = "Agent did not produce a final response."
)

// InputContext is the mutable per-input exchange between the host and
// the supervisor.
type InputContext struct {
	// UserInput is the raw user text.
	UserInput string

	// AgentName selects the workload; empty selects "default".
	AgentName string

	// FinalResponse receives the run's final payload.
	FinalResponse string

	// BashOutput carries host shell output attached to the input, when
	// any.
	BashOutput string
}

// AggregateError collects the concurrent errors a stream raised.
type AggregateError struct {
	Errs []error
}

// Error implements error.
func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return "agent run failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errs }

// Supervisor coordinates one input end to end.
type Supervisor struct {
	workloads *workload.Manager
	sessions  *sessionmanager.Manager
	bus       *ui.Bus
	tracer    trace.Tracer
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithTracer overrides the telemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Supervisor) { s.tracer = tracer }
}

// New creates a supervisor.
func New(workloads *workload.Manager, sessions *sessionmanager.Manager, bus *ui.Bus, opts ...Option) *Supervisor {
	s := &Supervisor{
		workloads: workloads,
		sessions:  sessions,
		bus:       bus,
		tracer:    telemetry.Tracer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// IsLongRunning reports that handled inputs may run for a long time, so
// upstream input handlers must not impose short timeouts.
func (s *Supervisor) IsLongRunning() bool { return true }

// Handle processes one user input. The session is post-processed
// best-effort whatever the outcome.
func (s *Supervisor) Handle(ctx context.Context, in *InputContext) error {
	agentName := in.AgentName
	if agentName == "" {
		agentName = workload.DefaultName
	}
	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("agent.name", agentName)))
	defer span.End()

	sess, err := s.sessions.GetOrCreateSession(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	sess, err = s.sessions.ValidateSession(ctx, sess)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	original := sess.Clone()

	runErr := s.workloads.WithWorkload(ctx, agentName, func(w workload.Workload) error {
		return s.runWorkload(ctx, w, sess, in)
	})

	if perr := s.sessions.PostProcess(ctx, in.UserInput, original); perr != nil {
		log.Warnf("post-process session: %v", perr)
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return runErr
	}
	return nil
}

func (s *Supervisor) runWorkload(ctx context.Context, w workload.Workload, sess *session.Session, in *InputContext) error {
	msg := model.NewUserMessage(in.UserInput)
	stream, err := w.RunAsync(ctx, sess, &msg)
	if err != nil {
		s.bus.Dispatch(ui.Error{Text: err.Error()})
		return &AggregateError{Errs: []error{err}}
	}

	var (
		final              string
		sawEvents          bool
		escalatedNoContent bool
	)
	for e := range stream.Events() {
		sawEvents = true
		switch ev := e.(type) {
		case ui.AgentEventEnvelope:
			s.bus.Dispatch(ev)
			if err := s.sessions.ManageCurrentSession(ctx); err != nil {
				log.Warnf("manage current session: %v", err)
			}
			if ev.Event.Escalate && !ev.Event.HasContent() {
				escalatedNoContent = true
			}
			if final == "" && ev.Event.IsFinalResponse() && ev.Event.HasContent() {
				final = ev.Event.Text()
			}
		case ui.LlmResponseEvent:
			s.bus.Dispatch(ev)
			if final == "" && ev.IsFinal {
				final = ev.Content
			}
		default:
			s.bus.Dispatch(e)
		}
	}
	if serr := stream.Err(); serr != nil {
		s.bus.Dispatch(ui.Error{Text: serr.Error()})
		return aggregate(serr)
	}

	if final == "" && escalatedNoContent {
		final = EscalatedResponse
	}
	if final == "" && !sawEvents {
		final = NoResponseFallback
	}
	in.FinalResponse = final
	return nil
}

// aggregate wraps a stream error, flattening an existing aggregate
// instead of nesting it.
func aggregate(err error) *AggregateError {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg
	}
	return &AggregateError{Errs: []error{err}}
}
