package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session/auth"
	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/markers"
	internalerrors "github.com/jrsteele09/crm-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestSignIn_InstallsSession(t *testing.T) {
	f := newReconcilerFixture(t)
	f.start(t)
	f.advance(4 * time.Second)

	session, err := f.reconciler.SignIn(f.ctx, testUserEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testUserID, session.UserID)
	require.Equal(t, testUserEmail, session.Email)
	require.NotEmpty(t, session.Token)

	require.True(t, f.holder.Matches(testUserID))
	require.Equal(t, uint64(1), f.holder.Revision())
	require.Equal(t, 1, f.records.Saves())
	require.True(t, f.flag(t, f.volatile, markers.UserAuthenticatedThisSession))
	require.False(t, f.flag(t, f.volatile, markers.ExplicitAuthAction))
	require.Equal(t, auth.StateAuthenticated, f.reconciler.State())
}

func TestSignIn_BypassesUpdateThrottle(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addProfile(t, "uid-2", "sam@example.com", "operator")
	f.provider.AddAccount("sam@example.com", testPassword, identity.Identity{UID: "uid-2"})
	f.start(t)

	f.advance(2500 * time.Millisecond)
	f.present(testUserID)
	f.advance(spaced)

	_, err := f.reconciler.SignIn(f.ctx, "sam@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, f.holder.Matches("uid-2"))
	require.Equal(t, 1, f.profiles.Lookups("uid-2"))
}

func TestSignIn_WithoutNotification(t *testing.T) {
	f := newReconcilerFixture(t)
	f.provider.Silence(true)
	f.start(t)

	session, err := f.reconciler.SignIn(f.ctx, testUserEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testUserID, session.UserID)
	require.True(t, f.holder.Matches(testUserID))
	require.True(t, f.flag(t, f.volatile, markers.ExplicitAuthAction))

	f.advance(spaced)
	f.present(testUserID)
	require.Equal(t, uint64(1), f.holder.Revision())
	require.False(t, f.flag(t, f.volatile, markers.ExplicitAuthAction))
}

func TestSignIn_WrongPassword(t *testing.T) {
	f := newReconcilerFixture(t)
	f.start(t)

	session, err := f.reconciler.SignIn(f.ctx, testUserEmail, "wrong")
	require.Nil(t, session)

	var authErr *auth.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, auth.ReasonIncorrectPassword, authErr.Reason)
	require.Equal(t, "Incorrect password. Please try again.", authErr.Message())
	require.False(t, f.holder.IsAuthenticated())
	require.Equal(t, auth.StateIdle, f.reconciler.State())
}

func TestSignIn_ErrorReasons(t *testing.T) {
	tests := []struct {
		code   identity.Code
		reason auth.Reason
	}{
		{identity.CodeInvalidCredential, auth.ReasonInvalidCredentials},
		{identity.CodeUserNotFound, auth.ReasonAccountNotFound},
		{identity.CodeWrongPassword, auth.ReasonIncorrectPassword},
		{identity.CodeUserDisabled, auth.ReasonAccountDisabled},
		{identity.CodeTooManyRequests, auth.ReasonRateLimited},
		{identity.CodeInternal, auth.ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newReconcilerFixture(t)
			f.provider.FailSignIn(identity.NewError(tt.code, nil))

			_, err := f.reconciler.SignIn(f.ctx, testUserEmail, testPassword)
			var authErr *auth.AuthenticationError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tt.reason, authErr.Reason)
			require.NotEmpty(t, authErr.Message())
		})
	}

	f := newReconcilerFixture(t)
	f.provider.FailSignIn(errors.New("connection reset"))
	_, err := f.reconciler.SignIn(f.ctx, testUserEmail, testPassword)
	var authErr *auth.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, auth.ReasonUnknown, authErr.Reason)
}

func TestSignIn_ProfileNotFound(t *testing.T) {
	f := newReconcilerFixture(t)
	f.provider.AddAccount("ghost@example.com", testPassword, identity.Identity{UID: "uid-ghost"})
	f.start(t)

	_, err := f.reconciler.SignIn(f.ctx, "ghost@example.com", testPassword)
	var notFound *auth.ProfileNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "uid-ghost", notFound.UserID)
	require.False(t, f.holder.IsAuthenticated())
	require.Equal(t, auth.StateIdle, f.reconciler.State())
}

func TestSignIn_ClearsStaleLoggingOut(t *testing.T) {
	f := newReconcilerFixture(t)
	require.NoError(t, markers.SetFlag(f.ctx, f.durable, markers.LoggingOut))
	f.start(t)

	_, err := f.reconciler.SignIn(f.ctx, testUserEmail, testPassword)
	require.NoError(t, err)
	require.False(t, f.flag(t, f.durable, markers.LoggingOut))
}

func TestSignOut_ClearsSessionOnce(t *testing.T) {
	f := newReconcilerFixture(t)
	f.start(t)
	f.advance(spaced)
	_, err := f.reconciler.SignIn(f.ctx, testUserEmail, testPassword)
	require.NoError(t, err)
	f.advance(4 * time.Second)

	require.NoError(t, f.reconciler.SignOut(f.ctx))
	require.False(t, f.holder.IsAuthenticated())
	require.Equal(t, uint64(2), f.holder.Revision())
	require.Equal(t, f.now.UnixMilli(), f.markerTime(t, f.volatile, markers.LastLogout).UnixMilli())
	require.False(t, f.flag(t, f.durable, markers.LoggingOut))
	require.False(t, f.flag(t, f.volatile, markers.UserAuthenticatedThisSession))
	require.Equal(t, auth.StateIdle, f.reconciler.State())

	_, err = f.records.Read(f.ctx)
	require.ErrorIs(t, err, internalerrors.ErrNotFound)

	loggedOutAt := f.markerTime(t, f.volatile, markers.LastLogout)
	f.absentSpaced(3)
	require.Equal(t, uint64(2), f.holder.Revision())
	require.Equal(t, loggedOutAt, f.markerTime(t, f.volatile, markers.LastLogout))
	require.Empty(t, f.scheduled)
}

func TestSignOut_AbsenceDeliveredLater(t *testing.T) {
	f := newReconcilerFixture(t)
	f.signedInPastPageLoad(t)
	f.provider.Silence(true)

	require.NoError(t, f.reconciler.SignOut(f.ctx))
	require.False(t, f.holder.IsAuthenticated())

	f.absent()
	f.absentSpaced(3)
	require.Equal(t, uint64(2), f.holder.Revision())
	require.Empty(t, f.scheduled)
}

func TestSignOut_ProviderFailure(t *testing.T) {
	f := newReconcilerFixture(t)
	f.signedInPastPageLoad(t)
	f.provider.FailSignOut(errors.New("provider unavailable"))

	err := f.reconciler.SignOut(f.ctx)
	var signOutErr *auth.SignOutError
	require.ErrorAs(t, err, &signOutErr)

	require.Equal(t, 1, f.records.Clears())
	require.False(t, f.flag(t, f.volatile, markers.UserAuthenticatedThisSession))
	require.True(t, f.flag(t, f.durable, markers.LoggingOut))
	require.True(t, f.holder.IsAuthenticated())
	require.Equal(t, auth.StateAuthenticated, f.reconciler.State())

	f.absentSpaced(3)
	require.False(t, f.holder.IsAuthenticated())
	require.False(t, f.flag(t, f.durable, markers.LoggingOut))
}
