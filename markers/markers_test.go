package markers_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session/markers"
	"github.com/stretchr/testify/require"
)

func TestTypedHelpers(t *testing.T) {
	ctx := context.Background()
	s := markers.NewMemoryStore()

	t.Run("flag", func(t *testing.T) {
		set, err := markers.Flag(ctx, s, markers.ManualReload)
		require.NoError(t, err)
		require.False(t, set)

		require.NoError(t, markers.SetFlag(ctx, s, markers.ManualReload))
		set, err = markers.Flag(ctx, s, markers.ManualReload)
		require.NoError(t, err)
		require.True(t, set)

		require.NoError(t, s.Set(ctx, markers.ManualReload, "false"))
		set, _ = markers.Flag(ctx, s, markers.ManualReload)
		require.False(t, set)
	})

	t.Run("int", func(t *testing.T) {
		n, err := markers.Int(ctx, s, markers.AuthLoopCount)
		require.NoError(t, err)
		require.Zero(t, n)

		require.NoError(t, markers.SetInt(ctx, s, markers.AuthLoopCount, 4))
		n, _ = markers.Int(ctx, s, markers.AuthLoopCount)
		require.Equal(t, 4, n)

		require.NoError(t, s.Set(ctx, markers.AuthLoopCount, "garbage"))
		n, err = markers.Int(ctx, s, markers.AuthLoopCount)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("time", func(t *testing.T) {
		ts, err := markers.Time(ctx, s, markers.LastLogout)
		require.NoError(t, err)
		require.True(t, ts.IsZero())

		at := time.UnixMilli(1_760_000_000_123)
		require.NoError(t, markers.SetTime(ctx, s, markers.LastLogout, at))
		ts, _ = markers.Time(ctx, s, markers.LastLogout)
		require.True(t, at.Equal(ts))
	})
}

func TestLoopTrippedAndClear(t *testing.T) {
	ctx := context.Background()
	s := markers.NewMemoryStore()

	tripped, err := markers.LoopTripped(ctx, s)
	require.NoError(t, err)
	require.False(t, tripped)

	require.NoError(t, markers.SetFlag(ctx, s, markers.ReloadLoopDetected))
	tripped, _ = markers.LoopTripped(ctx, s)
	require.True(t, tripped)

	require.NoError(t, markers.SetFlag(ctx, s, markers.LoopBroken))
	require.NoError(t, markers.ClearLoopBroken(ctx, s))
	tripped, _ = markers.LoopTripped(ctx, s)
	require.False(t, tripped)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
