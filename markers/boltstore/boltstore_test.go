package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/crm-session/markers"
	"github.com/jrsteele09/crm-session/markers/boltstore"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "markers.bolt")

	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	store := boltstore.New(db, boltstore.Bucket("dev-1"))

	_, ok, err := store.Get(ctx, markers.LoopBroken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, markers.SetFlag(ctx, store, markers.LoopBroken))
	require.NoError(t, markers.SetFlag(ctx, store, markers.LoggingOut))
	require.NoError(t, store.Remove(ctx, markers.LoggingOut))
	require.NoError(t, db.Close())

	db, err = bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	store = boltstore.New(db, boltstore.Bucket("dev-1"))

	tripped, err := markers.LoopTripped(ctx, store)
	require.NoError(t, err)
	require.True(t, tripped)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, map[markers.Key]string{markers.LoopBroken: "true"}, all)

	devices, err := boltstore.Devices(db)
	require.NoError(t, err)
	require.Equal(t, []string{"dev-1"}, devices)
}

func TestStore_RemoveWithoutBucket(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "m.bolt"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	store := boltstore.New(db, boltstore.Bucket("fresh"))
	require.NoError(t, store.Remove(context.Background(), markers.ManualReload))
}
