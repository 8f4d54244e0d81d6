package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/crm-session/sessions"
	"github.com/jrsteele09/crm-session/users"
	"github.com/stretchr/testify/require"
)

func TestHolder(t *testing.T) {
	h := sessions.NewHolder()
	_, ok := h.Get()
	require.False(t, ok)
	require.False(t, h.Clear())
	require.Equal(t, uint64(0), h.Revision())

	s := &sessions.Session{UserID: "u-1", Role: users.RoleOperator}
	h.Set(s)
	require.True(t, h.IsAuthenticated())
	require.True(t, h.Matches("u-1"))
	require.False(t, h.Matches("u-2"))

	// The holder keeps its own copy
	s.UserID = "mutated"
	got, ok := h.Get()
	require.True(t, ok)
	require.Equal(t, "u-1", got.UserID)

	require.True(t, h.Clear())
	require.False(t, h.IsAuthenticated())
	require.Equal(t, uint64(2), h.Revision())
}

func TestRecord_Valid(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	session := sessions.NewSession(&users.User{ID: "u-1", Name: "Ravi", Email: "ravi@example.com", Role: users.RoleSalesAgent}, "tok", now)

	record := session.Record(now.Add(-time.Hour))
	require.True(t, record.Valid(now, 24*time.Hour))
	require.False(t, record.Valid(now, 30*time.Minute))
	require.True(t, record.Valid(now, 0))

	var missing *sessions.Record
	require.False(t, missing.Valid(now, time.Hour))
	require.False(t, (&sessions.Record{}).Valid(now, time.Hour))

	restored := record.Session()
	require.Equal(t, "u-1", restored.UserID)
	require.Equal(t, users.RoleSalesAgent, restored.Role)
	require.Empty(t, restored.Token)
}
