//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/session"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc := New(t.TempDir())
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func testKey(id string) session.Key {
	return session.Key{AppName: "streetrace", UserID: "alice", SessionID: id}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := testKey("s1")

	created, err := svc.CreateSession(ctx, key, nil)
	require.NoError(t, err)
	require.Equal(t, "s1", created.ID)
	require.FileExists(t, filepath.Join(svc.Root(), "streetrace", "alice", "s1.json"))

	got, err := svc.GetSession(ctx, key)
	require.NoError(t, err)
	require.Same(t, created, got)
}

func TestCreateDuplicateFails(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := testKey("s1")

	_, err := svc.CreateSession(ctx, key, nil)
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, key, nil)
	require.ErrorIs(t, err, session.ErrAlreadyExists)
}

// A session created by a previous process (present on disk, not in
// memory) still blocks creation and still loads.
func TestDiskHydration(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := testKey("s1")

	first := New(dir)
	created, err := first.CreateSession(ctx, key, nil)
	require.NoError(t, err)
	e := event.NewUserText("inv", "hello")
	require.NoError(t, first.AppendEvent(ctx, created, e))
	require.NoError(t, first.Close())

	second := New(dir)
	_, err = second.CreateSession(ctx, key, nil)
	require.ErrorIs(t, err, session.ErrAlreadyExists)

	got, err := second.GetSession(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Events, 1)
	require.Equal(t, "hello", got.Events[0].Text())
}

func TestGetMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	got, err := svc.GetSession(ctx, testKey("absent"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CreateSession(ctx, session.Key{UserID: "u", SessionID: "s"}, nil)
	require.Error(t, err)
	_, err = svc.GetSession(ctx, session.Key{AppName: "a", SessionID: "s"})
	require.Error(t, err)
}

func TestListSkipsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CreateSession(ctx, testKey("good"), nil)
	require.NoError(t, err)

	dir := filepath.Join(svc.Root(), "streetrace", "alice")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	metas, err := svc.ListSessions(ctx, session.UserKey{AppName: "streetrace", UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, "good", metas[0].ID)
}

func TestDeletePrunesEmptyDirs(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := testKey("s1")

	_, err := svc.CreateSession(ctx, key, nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSession(ctx, key))

	require.NoDirExists(t, filepath.Join(svc.Root(), "streetrace", "alice"))
	require.NoDirExists(t, filepath.Join(svc.Root(), "streetrace"))

	// Deleting again is a no-op.
	require.NoError(t, svc.DeleteSession(ctx, key))
}

func TestReplaceEventsPersists(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := testKey("s1")

	sess, err := svc.CreateSession(ctx, key, nil)
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, svc.AppendEvent(ctx, sess, event.NewUserText("inv", text)))
	}
	before := sess.UpdatedAt

	replaced, err := svc.ReplaceEvents(ctx, sess, sess.Events[2:])
	require.NoError(t, err)
	require.Len(t, replaced.Events, 1)
	require.Equal(t, "three", replaced.Events[0].Text())
	require.False(t, replaced.UpdatedAt.Before(before))

	// The file reflects the replacement.
	fresh := New(svc.Root())
	got, err := fresh.GetSession(ctx, key)
	require.NoError(t, err)
	require.Len(t, got.Events, 1)
}
