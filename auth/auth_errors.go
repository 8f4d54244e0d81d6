package auth

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/crm-session/identity"
)

// ErrLoopDetected marks a tripped circuit breaker. It is only logged; the
// loop is surfaced through the durable flags and a redirect to sign-in.
var ErrLoopDetected = errors.New("auth notification loop detected")

// Reason is the stable category of a failed sign-in.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonInvalidCredentials
	ReasonAccountNotFound
	ReasonIncorrectPassword
	ReasonAccountDisabled
	ReasonRateLimited
)

var reasonNames = map[Reason]string{
	ReasonUnknown:            "unknown",
	ReasonInvalidCredentials: "invalid_credentials",
	ReasonAccountNotFound:    "account_not_found",
	ReasonIncorrectPassword:  "incorrect_password",
	ReasonAccountDisabled:    "account_disabled",
	ReasonRateLimited:        "rate_limited",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return reasonNames[ReasonUnknown]
}

var reasonMessages = map[Reason]string{
	ReasonInvalidCredentials: "Invalid email or password. Please check your credentials and try again.",
	ReasonAccountNotFound:    "No account found with this email address.",
	ReasonIncorrectPassword:  "Incorrect password. Please try again.",
	ReasonAccountDisabled:    "This account has been disabled. Please contact support.",
	ReasonRateLimited:        "Too many failed login attempts. Please try again later.",
	ReasonUnknown:            "An error occurred during sign in. Please try again.",
}

// AuthenticationError is returned by SignIn when the provider rejects the
// credentials or the call fails.
type AuthenticationError struct {
	Reason Reason
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user.
func (e *AuthenticationError) Message() string {
	return reasonMessages[e.Reason]
}

func newAuthenticationError(err error) *AuthenticationError {
	reason := ReasonUnknown
	switch identity.CodeOf(err) {
	case identity.CodeInvalidCredential:
		reason = ReasonInvalidCredentials
	case identity.CodeUserNotFound:
		reason = ReasonAccountNotFound
	case identity.CodeWrongPassword:
		reason = ReasonIncorrectPassword
	case identity.CodeUserDisabled:
		reason = ReasonAccountDisabled
	case identity.CodeTooManyRequests:
		reason = ReasonRateLimited
	}
	return &AuthenticationError{Reason: reason, Err: err}
}

// ProfileNotFoundError means the provider authenticated an identity that has
// no CRM profile. No session is installed.
type ProfileNotFoundError struct {
	UserID string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("no profile for user %s", e.UserID)
}

// SignOutError means the provider rejected sign-out. Local markers and the
// persistent record have already been cleared.
type SignOutError struct {
	Err error
}

func (e *SignOutError) Error() string {
	return fmt.Sprintf("sign out failed: %v", e.Err)
}

func (e *SignOutError) Unwrap() error {
	return e.Err
}
