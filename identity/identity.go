// Package identity describes the external identity provider the CRM
// delegates authentication to: its notification stream, its sign-in and
// sign-out calls and its credential tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Identity is what the provider knows about the signed-in account.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

type EventKind int

const (
	UserAbsent EventKind = iota
	UserPresent
)

func (k EventKind) String() string {
	if k == UserPresent {
		return "user_present"
	}
	return "user_absent"
}

// Notification is one auth-state change reported by the provider. The
// provider re-fires these on token refresh, tab focus and multi-tab sync,
// so consecutive notifications can carry the same state.
type Notification struct {
	Kind     EventKind
	Identity *Identity // Set for UserPresent
}

func Present(id Identity) Notification {
	return Notification{Kind: UserPresent, Identity: &id}
}

func Absent() Notification {
	return Notification{Kind: UserAbsent}
}

// Handler receives notifications. Providers never call a handler
// concurrently with itself.
type Handler func(ctx context.Context, n Notification)

type Provider interface {
	// Subscribe registers h and reports the current state to it. The returned
	// function removes the subscription.
	Subscribe(ctx context.Context, h Handler) (unsubscribe func(), err error)

	// SignIn authenticates with email and password. Failures are *Error.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	SignOut(ctx context.Context) error

	// IDToken returns a credential token for the current identity, minting a
	// new one when forceRefresh is set.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// Code is a provider error code.
type Code string

const (
	CodeInvalidCredential Code = "auth/invalid-credential"
	CodeUserNotFound      Code = "auth/user-not-found"
	CodeWrongPassword     Code = "auth/wrong-password"
	CodeTooManyRequests   Code = "auth/too-many-requests"
	CodeUserDisabled      Code = "auth/user-disabled"
	CodeNoCurrentUser     Code = "auth/no-current-user"
	CodeInternal          Code = "auth/internal-error"
)

// Error is returned by providers for rejected calls.
type Error struct {
	Code Code
	Err  error
}

func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the provider code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}
