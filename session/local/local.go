//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package local provides a JSON file-backed session service. Each session
// is stored whole under <root>/<app>/<user>/<session-id>.json and
// hydrated into memory on first read.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/session"
)

// Service implements session.Service on top of a rooted directory tree.
type Service struct {
	root string

	mu       sync.RWMutex
	sessions map[session.Key]*session.Session
}

// New creates a file-backed session service rooted at dir.
func New(dir string) *Service {
	return &Service{
		root:     dir,
		sessions: make(map[session.Key]*session.Session),
	}
}

// Root returns the storage root directory.
func (s *Service) Root() string { return s.root }

func (s *Service) sessionPath(key session.Key) string {
	return filepath.Join(s.root, key.AppName, key.UserID, key.SessionID+".json")
}

// CreateSession creates a new session, failing with ErrAlreadyExists when
// the identity is taken in memory or on disk.
func (s *Service) CreateSession(ctx context.Context, key session.Key, state session.StateMap) (*session.Session, error) {
	if err := key.CheckSessionKey(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", session.ErrAlreadyExists, key.AppName, key.UserID, key.SessionID)
	}
	if _, err := os.Stat(s.sessionPath(key)); err == nil {
		return nil, fmt.Errorf("%w: %s/%s/%s", session.ErrAlreadyExists, key.AppName, key.UserID, key.SessionID)
	}

	sess := session.New(key.AppName, key.UserID, key.SessionID)
	if state != nil {
		sess.State = state
	}
	if err := s.persist(sess); err != nil {
		return nil, err
	}
	s.sessions[key] = sess
	return sess, nil
}

// GetSession returns the in-memory session when present, otherwise loads
// it from disk and hydrates it. Absence and read failures both yield a
// nil session; read failures are logged, never fatal.
func (s *Service) GetSession(ctx context.Context, key session.Key) (*session.Session, error) {
	if err := key.CheckSessionKey(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.RUnlock()
		return sess, nil
	}
	s.mu.RUnlock()

	sess := s.loadFromDisk(key)
	if sess == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Another reader may have hydrated the session meanwhile.
	if existing, ok := s.sessions[key]; ok {
		return existing, nil
	}
	s.sessions[key] = sess
	return sess, nil
}

// ListSessions enumerates session metadata by scanning storage. Files
// that fail to decode are skipped with a log and do not abort the scan.
func (s *Service) ListSessions(ctx context.Context, userKey session.UserKey) ([]session.Metadata, error) {
	if err := userKey.CheckUserKey(); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, userKey.AppName, userKey.UserID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		log.Warnf("session list: cannot read %s: %v", dir, err)
		return nil, nil
	}
	var result []session.Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warnf("session list: skipping %s: %v", entry.Name(), err)
			continue
		}
		var meta session.Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			log.Warnf("session list: skipping invalid file %s: %v", entry.Name(), err)
			continue
		}
		result = append(result, meta)
	}
	return result, nil
}

// DeleteSession removes the session file and prunes now-empty user and
// app directories. A directory at the file path is logged, not raised.
func (s *Service) DeleteSession(ctx context.Context, key session.Key) error {
	if err := key.CheckSessionKey(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()

	path := s.sessionPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete session %s: %w", key.SessionID, err)
	}
	if info.IsDir() {
		log.Errorf("session delete: %s is a directory, refusing to remove", path)
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete session %s: %w", key.SessionID, err)
	}
	// Prune empty parents: user dir first, then app dir.
	for _, dir := range []string{filepath.Dir(path), filepath.Dir(filepath.Dir(path))} {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			log.Warnf("session delete: cannot prune %s: %v", dir, err)
			break
		}
	}
	return nil
}

// AppendEvent appends to the in-memory events, bumps the update time and
// persists the whole session file.
func (s *Service) AppendEvent(ctx context.Context, sess *session.Session, e *event.Event) error {
	if sess == nil || e == nil {
		return fmt.Errorf("session and event are required")
	}
	sess.Events = append(sess.Events, *e)
	bumpUpdateTime(sess)
	s.mu.Lock()
	s.sessions[sess.Key()] = sess
	s.mu.Unlock()
	return s.persist(sess)
}

// ReplaceEvents atomically rewrites the event list, preserving identity
// and state, and persists.
func (s *Service) ReplaceEvents(ctx context.Context, sess *session.Session, events []event.Event) (*session.Session, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}
	sess.Events = make([]event.Event, len(events))
	copy(sess.Events, events)
	bumpUpdateTime(sess)
	s.mu.Lock()
	s.sessions[sess.Key()] = sess
	s.mu.Unlock()
	if err := s.persist(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Close releases the in-memory cache.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[session.Key]*session.Session)
	return nil
}

func (s *Service) loadFromDisk(key session.Key) *session.Session {
	data, err := os.ReadFile(s.sessionPath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("session read: %s: %v", s.sessionPath(key), err)
		}
		return nil
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		log.Warnf("session read: invalid file %s: %v", s.sessionPath(key), err)
		return nil
	}
	if sess.State == nil {
		sess.State = make(session.StateMap)
	}
	return &sess
}

func (s *Service) persist(sess *session.Session) error {
	path := s.sessionPath(sess.Key())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	return nil
}

// bumpUpdateTime keeps UpdatedAt monotonically non-decreasing.
func bumpUpdateTime(sess *session.Session) {
	now := time.Now()
	if now.After(sess.UpdatedAt) {
		sess.UpdatedAt = now
	}
}
