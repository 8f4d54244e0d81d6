package boltrepo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/sessions"
	"github.com/jrsteele09/crm-session/sessions/boltrepo"
	"github.com/jrsteele09/crm-session/users"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "sessions.bolt"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_SaveReadClear(t *testing.T) {
	ctx := context.Background()
	store := boltrepo.New(openDB(t), boltrepo.Bucket("device-1"))

	_, err := store.Read(ctx)
	require.ErrorIs(t, err, errors.ErrNotFound)

	saved := &sessions.Record{
		UserID:      "u-1",
		DisplayName: "Asha",
		Email:       "asha@example.com",
		Role:        users.RoleAdmin,
		SavedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, saved, got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Read(ctx)
	require.ErrorIs(t, err, errors.ErrNotFound)

	// Clearing again is fine
	require.NoError(t, store.Clear(ctx))
}

func TestStore_BucketsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	a := boltrepo.New(db, boltrepo.Bucket("a"))
	b := boltrepo.New(db, boltrepo.Bucket("b"))

	require.NoError(t, a.Save(ctx, &sessions.Record{UserID: "u-a"}))
	_, err := b.Read(ctx)
	require.ErrorIs(t, err, errors.ErrNotFound)
}
