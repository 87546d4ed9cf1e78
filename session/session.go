//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package session provides the core session functionality.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/streetrace-ai/streetrace-go/event"
)

// StateMap is a map of state key-value pairs.
type StateMap map[string]any

var (
	// ErrAppNameRequired is the error for app name required.
	ErrAppNameRequired = errors.New("appName is required")
	// ErrUserIDRequired is the error for user id required.
	ErrUserIDRequired = errors.New("userID is required")
	// ErrSessionIDRequired is the error for session id required.
	ErrSessionIDRequired = errors.New("sessionID is required")
	// ErrAlreadyExists is returned when creating a session whose identity
	// already exists in memory or on disk.
	ErrAlreadyExists = errors.New("session already exists")
)

// Session is the persistent conversational log plus keyed state for one
// (app, user, session) identity.
type Session struct {
	ID        string        `json:"id"`               // ID is the session id.
	AppName   string        `json:"app_name"`         // AppName is the app name.
	UserID    string        `json:"user_id"`          // UserID is the user id.
	State     StateMap      `json:"state"`            // State is the session keyed state.
	Events    []event.Event `json:"events"`           // Events is the ordered event log.
	UpdatedAt time.Time     `json:"last_update_time"` // UpdatedAt is the last update time.

	EventMu sync.Mutex `json:"-"` // EventMu guards in-memory Events appends from parallel branches.
}

// Options configure session construction.
type Options func(*Session)

// WithEvents seeds the session event log.
func WithEvents(events []event.Event) Options {
	return func(sess *Session) { sess.Events = events }
}

// WithState seeds the session state.
func WithState(state StateMap) Options {
	return func(sess *Session) { sess.State = state }
}

// New creates a new session.
func New(appName, userID, sessionID string, options ...Options) *Session {
	sess := &Session{
		ID:        sessionID,
		AppName:   appName,
		UserID:    userID,
		State:     make(StateMap),
		Events:    []event.Event{},
		UpdatedAt: time.Now(),
	}
	for _, o := range options {
		o(sess)
	}
	return sess
}

// Key returns the session identity.
func (sess *Session) Key() Key {
	return Key{AppName: sess.AppName, UserID: sess.UserID, SessionID: sess.ID}
}

// Clone returns a copy of the session with an independent event slice
// and state map.
func (sess *Session) Clone() *Session {
	copied := &Session{
		ID:        sess.ID,
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		State:     make(StateMap, len(sess.State)),
		Events:    make([]event.Event, len(sess.Events)),
		UpdatedAt: sess.UpdatedAt,
	}
	copy(copied.Events, sess.Events)
	for k, v := range sess.State {
		copied.State[k] = v
	}
	return copied
}

// Metadata is the listing form of a session: identity and freshness,
// no events and no state.
type Metadata struct {
	ID        string    `json:"id"`
	AppName   string    `json:"app_name"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"last_update_time"`
}

// Service is the interface that all session stores must implement.
// Concurrent writers for the same identity are unsupported; callers
// route all mutations for a session through a single manager.
type Service interface {
	// CreateSession creates a new session; ErrAlreadyExists when the
	// identity is taken in memory or on disk.
	CreateSession(ctx context.Context, key Key, state StateMap) (*Session, error)

	// GetSession gets a session; nil when absent. Read failures are
	// logged and treated as absence.
	GetSession(ctx context.Context, key Key) (*Session, error)

	// ListSessions lists session metadata for a user. Invalid entries
	// are skipped with a log.
	ListSessions(ctx context.Context, userKey UserKey) ([]Metadata, error)

	// DeleteSession deletes a session and prunes now-empty parents.
	DeleteSession(ctx context.Context, key Key) error

	// AppendEvent appends an event, bumps the update time and persists.
	AppendEvent(ctx context.Context, sess *Session, e *event.Event) error

	// ReplaceEvents atomically rewrites the event list, preserving
	// identity and state, and persists.
	ReplaceEvents(ctx context.Context, sess *Session, events []event.Event) (*Session, error)

	// Close closes the service.
	Close() error
}

// Key is the key for a session.
type Key struct {
	AppName   string // app name
	UserID    string // user id
	SessionID string // session id
}

// CheckSessionKey checks if a session key is valid.
func (s *Key) CheckSessionKey() error {
	return checkSessionKey(s.AppName, s.UserID, s.SessionID)
}

// UserKey is the key for a user.
type UserKey struct {
	AppName string // app name
	UserID  string // user id
}

// CheckUserKey checks if a user key is valid.
func (s *UserKey) CheckUserKey() error {
	return checkUserKey(s.AppName, s.UserID)
}

func checkSessionKey(appName, userID, sessionID string) error {
	if appName == "" {
		return ErrAppNameRequired
	}
	if userID == "" {
		return ErrUserIDRequired
	}
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	return nil
}

func checkUserKey(appName, userID string) error {
	if appName == "" {
		return ErrAppNameRequired
	}
	if userID == "" {
		return ErrUserIDRequired
	}
	return nil
}
