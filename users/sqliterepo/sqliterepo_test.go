package sqliterepo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/users"
	"github.com/jrsteele09/crm-session/users/sqliterepo"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *sqliterepo.Store {
	t.Helper()
	store, err := sqliterepo.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqliterepo.Open(" ")
	require.Error(t, err)
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, &users.User{
		ID:           "u-1",
		Name:         "Asha Rao",
		Email:        "Asha@Example.com",
		Role:         users.RoleSalesAgent,
		PasswordHash: "hash",
		CreatedAt:    created,
	}))

	byID, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, "asha@example.com", byID.Email)
	require.Equal(t, users.RoleSalesAgent, byID.Role)
	require.Equal(t, created, byID.CreatedAt)

	byEmail, err := store.GetByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	require.Equal(t, "u-1", byEmail.ID)

	byID.Name = "Asha R."
	byID.Role = users.RoleAdmin
	require.NoError(t, store.Upsert(ctx, byID))
	updated, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, "Asha R.", updated.Name)
	require.Equal(t, users.RoleAdmin, updated.Role)
}

func TestGetMissing(t *testing.T) {
	store := openTempStore(t)
	_, err := store.GetByID(context.Background(), "nobody")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSetDisabledAndDelete(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	require.NoError(t, store.Upsert(ctx, &users.User{ID: "u-2", Email: "op@example.com", Name: "Op", Role: users.RoleOperator}))

	require.NoError(t, store.SetDisabled(ctx, "u-2", true))
	u, err := store.GetByID(ctx, "u-2")
	require.NoError(t, err)
	require.True(t, u.Disabled)

	require.NoError(t, store.Delete(ctx, "u-2"))
	require.ErrorIs(t, store.Delete(ctx, "u-2"), errors.ErrNotFound)
	require.ErrorIs(t, store.SetDisabled(ctx, "u-2", false), errors.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	for _, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		require.NoError(t, store.Upsert(ctx, &users.User{ID: email, Email: email, Name: email, Role: users.RoleOperator}))
	}

	all, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a@example.com", all[0].Email)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "b@example.com", page[0].Email)
}
