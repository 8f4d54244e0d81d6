// Package markers holds the small string-keyed flags and timestamps the
// session reconciler keeps between notifications. Durable markers survive
// reloads and restarts; volatile markers live only as long as a tab.
package markers

import (
	"context"
	"strconv"
	"time"
)

// Key names a marker.
type Key string

// Durable markers.
const (
	LoopBroken         Key = "auth-loop-broken"
	ReloadLoopDetected Key = "reload-loop-detected"
	LoggingOut         Key = "logging-out"
)

// Volatile markers.
const (
	ExplicitAuthAction           Key = "explicit-auth-action"
	LastAuthUpdate               Key = "last-auth-update-time"
	AuthLoopCount                Key = "auth-loop-count"
	ManualReload                 Key = "manual-reload"
	LastLogout                   Key = "last-logout-time"
	LastPersistentCheck          Key = "last-persistent-check"
	UserAuthenticatedThisSession Key = "user-authenticated-this-session"
)

// Store is a string-keyed marker store.
type Store interface {
	// Get reports ok=false when the key is not set
	Get(ctx context.Context, key Key) (value string, ok bool, err error)
	Set(ctx context.Context, key Key, value string) error
	// Remove is a no-op for keys that are not set
	Remove(ctx context.Context, key Key) error
}

// Lister is implemented by stores that can enumerate their markers.
type Lister interface {
	List(ctx context.Context) (map[Key]string, error)
}

const flagTrue = "true"

func Flag(ctx context.Context, s Store, key Key) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return v == flagTrue, nil
}

func SetFlag(ctx context.Context, s Store, key Key) error {
	return s.Set(ctx, key, flagTrue)
}

// Int returns 0 for unset or unparsable values.
func Int(ctx context.Context, s Store, key Key) (int, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func SetInt(ctx context.Context, s Store, key Key, n int) error {
	return s.Set(ctx, key, strconv.Itoa(n))
}

// Time reads a millisecond timestamp. Unset or unparsable values give the
// zero time.
func Time(ctx context.Context, s Store, key Key) (time.Time, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func SetTime(ctx context.Context, s Store, key Key, t time.Time) error {
	return s.Set(ctx, key, strconv.FormatInt(t.UnixMilli(), 10))
}

// LoopTripped reports whether either durable circuit-breaker flag is set.
func LoopTripped(ctx context.Context, durable Store) (bool, error) {
	broken, err := Flag(ctx, durable, LoopBroken)
	if err != nil || broken {
		return broken, err
	}
	return Flag(ctx, durable, ReloadLoopDetected)
}

// ClearLoopBroken re-arms the circuit breaker for the next process start.
func ClearLoopBroken(ctx context.Context, durable Store) error {
	if err := durable.Remove(ctx, LoopBroken); err != nil {
		return err
	}
	return durable.Remove(ctx, ReloadLoopDetected)
}
