package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/jrsteele09/crm-session/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDatabases(t *testing.T) {
	dir := t.TempDir()
	c, err := config.NewFromMap(map[string]string{"FOLDER": filepath.Join(dir, "nested")})
	require.NoError(t, err)

	s, err := storage.Open(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, s.Users)
	require.NotNil(t, s.Sessions)
	require.Nil(t, s.Redis)
	require.FileExists(t, c.GetUsersDBPath())
	require.FileExists(t, c.GetSessionsDBPath())
	s.Close()

	db, err := storage.OpenSessions(c)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpen_RedisUnreachable(t *testing.T) {
	dir := t.TempDir()
	c, err := config.NewFromMap(map[string]string{
		"FOLDER":     dir,
		"REDIS_ADDR": "127.0.0.1:1",
	})
	require.NoError(t, err)

	_, err = storage.Open(context.Background(), c)
	require.Error(t, err)
}
