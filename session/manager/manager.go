//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package manager owns session lifecycle and invariants. All session
// mutation during a turn is routed through a single Manager instance so
// the store's single-writer discipline holds.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/session"
)

// MaxToolCallsInSession caps the number of (call, response) pairs kept in
// a session between turns.
const MaxToolCallsInSession = 20

// maxDerivedUserEvents caps how many user text events feed the derived
// project-context input when the caller supplies none.
const maxDerivedUserEvents = 10

var (
	// ErrSessionNotFound is returned when a mutation is requested and no
	// current session exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvariantViolation is returned when a kept tool pair does not
	// share a function name. Fatal for the turn.
	ErrInvariantViolation = errors.New("session invariant violation")
)

// ProjectContextFunc supplies the project-context strings used to seed a
// fresh session's first user event.
type ProjectContextFunc func() []string

// ContextRecorderFunc receives the turn's user input and the assistant's
// final text after a successful turn, for project-context capture.
type ContextRecorderFunc func(userInput, assistantText string)

// Manager guards one (app, user) pair and a current-session-id pointer.
type Manager struct {
	svc     session.Service
	appName string
	userID  string

	currentID      string
	projectContext ProjectContextFunc
	recorder       ContextRecorderFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionID pins the current session id instead of generating one.
func WithSessionID(id string) Option {
	return func(m *Manager) { m.currentID = id }
}

// WithProjectContext sets the project-context supplier.
func WithProjectContext(fn ProjectContextFunc) Option {
	return func(m *Manager) { m.projectContext = fn }
}

// WithContextRecorder sets the post-turn context capture sink.
func WithContextRecorder(fn ContextRecorderFunc) Option {
	return func(m *Manager) { m.recorder = fn }
}

// New creates a session manager for one (app, user) pair.
func New(svc session.Service, appName, userID string, opts ...Option) *Manager {
	m := &Manager{
		svc:     svc,
		appName: appName,
		userID:  userID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CurrentKey returns the key of the current session, generating a fresh
// id when none is set.
func (m *Manager) CurrentKey() session.Key {
	if m.currentID == "" {
		m.currentID = generateSessionID(time.Now())
	}
	return session.Key{AppName: m.appName, UserID: m.userID, SessionID: m.currentID}
}

// generateSessionID formats a local-timezone timestamp with minute
// resolution, e.g. 2026-08-24_15-04.
func generateSessionID(t time.Time) string {
	return t.Format("2006-01-02_15-04")
}

// ResetSession changes the current-session-id pointer. The next
// GetOrCreateSession materializes a new session if the id is unknown.
func (m *Manager) ResetSession(newID string) {
	m.currentID = newID
}

// GetOrCreateSession returns the current session, creating it and
// seeding it with a project-context user event when absent.
func (m *Manager) GetOrCreateSession(ctx context.Context) (*session.Session, error) {
	key := m.CurrentKey()
	sess, err := m.svc.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	sess, err = m.svc.CreateSession(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	var contexts []string
	if m.projectContext != nil {
		contexts = m.projectContext()
	}
	seed := event.NewUserText("", contexts...)
	if err := m.svc.AppendEvent(ctx, sess, seed); err != nil {
		return nil, err
	}
	return sess, nil
}

// ValidateSession enforces tool-call pairing by removing orphans:
// a function_response with no preceding unmatched function_call is
// dropped, a function_call not immediately followed by its matching
// function_response is dropped, and a pending call is dropped when a
// non-response event arrives. The session is returned unchanged when no
// violation exists; otherwise the repaired sequence is persisted via
// ReplaceEvents.
func (m *Manager) ValidateSession(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	repaired := make([]event.Event, 0, len(sess.Events))
	changed := false
	var pending *event.Event

	dropPending := func() {
		if pending != nil {
			log.Warnf("session validate: dropping unmatched function_call in session %s", sess.ID)
			changed = true
			pending = nil
		}
	}

	for i := range sess.Events {
		e := sess.Events[i]
		if e.HasFunctionResponse() {
			if pending != nil && pairMatches(pending, &e) {
				repaired = append(repaired, *pending, e)
				pending = nil
				continue
			}
			log.Warnf("session validate: dropping orphan function_response in session %s", sess.ID)
			changed = true
			continue
		}
		dropPending()
		if e.HasFunctionCall() {
			ec := e
			pending = &ec
			continue
		}
		repaired = append(repaired, e)
	}
	dropPending()

	if !changed {
		return sess, nil
	}
	return m.svc.ReplaceEvents(ctx, sess, repaired)
}

// ManageCurrentSession caps tool traffic in the current session: when
// more than MaxToolCallsInSession function-response events exist, only
// the most recent pairs are kept, alongside every non-tool event in
// original relative order.
func (m *Manager) ManageCurrentSession(ctx context.Context) error {
	sess, err := m.svc.GetSession(ctx, m.CurrentKey())
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	var responseIdx []int
	for i := range sess.Events {
		if sess.Events[i].HasFunctionResponse() {
			responseIdx = append(responseIdx, i)
		}
	}
	if len(responseIdx) <= MaxToolCallsInSession {
		return nil
	}

	keep := make(map[int]bool, 2*MaxToolCallsInSession)
	for _, ri := range responseIdx[len(responseIdx)-MaxToolCallsInSession:] {
		ci := ri - 1
		if ci < 0 || !sess.Events[ci].HasFunctionCall() {
			return fmt.Errorf("%w: function_response at %d has no preceding call", ErrInvariantViolation, ri)
		}
		if !pairMatches(&sess.Events[ci], &sess.Events[ri]) {
			return fmt.Errorf("%w: call/response name mismatch at %d", ErrInvariantViolation, ri)
		}
		keep[ci] = true
		keep[ri] = true
	}

	trimmed := make([]event.Event, 0, len(sess.Events))
	for i := range sess.Events {
		e := sess.Events[i]
		if e.HasFunctionCall() || e.HasFunctionResponse() {
			if keep[i] {
				trimmed = append(trimmed, e)
			}
			continue
		}
		trimmed = append(trimmed, e)
	}
	_, err = m.svc.ReplaceEvents(ctx, sess, trimmed)
	return err
}

// PostProcess squashes the finished turn: only final-response events
// that carry content remain as canonical history, and the assistant's
// last text is fed back into project context together with the user
// input. Experimental behavior, kept as a single policy.
func (m *Manager) PostProcess(ctx context.Context, userInput string, original *session.Session) error {
	if original == nil {
		return ErrSessionNotFound
	}
	sess, err := m.svc.GetSession(ctx, original.Key())
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	if userInput == "" {
		userInput = deriveUserInput(sess)
	}
	userInput = StripBashPreamble(userInput)

	squashed := make([]event.Event, 0, len(sess.Events))
	var lastAssistantText string
	for i := range sess.Events {
		e := sess.Events[i]
		if !e.IsFinalResponse() || !e.HasContent() {
			continue
		}
		squashed = append(squashed, e)
		if e.Author != event.AuthorUser && e.Author != event.AuthorSystem {
			if text := e.Text(); text != "" {
				lastAssistantText = text
			}
		}
	}
	if _, err := m.svc.ReplaceEvents(ctx, sess, squashed); err != nil {
		return err
	}
	if m.recorder != nil {
		m.recorder(userInput, lastAssistantText)
	}
	return nil
}

// ReplaceCurrentSessionEvents is a trusted bulk replace; it refuses when
// no current session exists.
func (m *Manager) ReplaceCurrentSessionEvents(ctx context.Context, events []event.Event) (*session.Session, error) {
	sess, err := m.svc.GetSession(ctx, m.CurrentKey())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return m.svc.ReplaceEvents(ctx, sess, events)
}

// deriveUserInput concatenates the session's most recent user text
// events. Best-effort experimental behavior; capped so a long-lived
// session cannot grow the derived input unboundedly.
func deriveUserInput(sess *session.Session) string {
	var texts []string
	for i := range sess.Events {
		e := sess.Events[i]
		if e.Author != event.AuthorUser {
			continue
		}
		if text := e.Text(); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) > maxDerivedUserEvents {
		texts = texts[len(texts)-maxDerivedUserEvents:]
	}
	return strings.Join(texts, "\n")
}

// StripBashPreamble removes a leading "!" command marker while keeping
// the whitespace that precedes it: "  !  echo x" becomes "  echo x".
func StripBashPreamble(input string) string {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "!") {
		return input
	}
	lead := input[:len(input)-len(trimmed)]
	rest := strings.TrimLeft(trimmed[1:], " \t")
	return lead + rest
}

func pairMatches(call, rsp *event.Event) bool {
	calls := call.FunctionCalls()
	rsps := rsp.FunctionResponses()
	if len(calls) == 0 || len(rsps) == 0 {
		return false
	}
	return event.Matches(calls[0], rsps[0])
}
