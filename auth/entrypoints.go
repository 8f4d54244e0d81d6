package auth

import (
	"context"

	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/markers"
	"github.com/jrsteele09/crm-session/sessions"
	pkgerrors "github.com/pkg/errors"
)

// SignIn authenticates against the provider and installs the resulting
// session. Provider rejections come back as *AuthenticationError and a
// missing CRM profile as *ProfileNotFoundError.
func (r *Reconciler) SignIn(ctx context.Context, email, password string) (*sessions.Session, error) {
	r.mu.Lock()
	r.setFlag(ctx, r.c.Volatile, markers.ExplicitAuthAction)
	r.remove(ctx, r.c.Durable, markers.LoggingOut)
	r.setState(StateAuthenticating)
	r.mu.Unlock()

	// The provider may notify from inside SignIn, so it is called unlocked.
	id, err := r.c.Provider.SignIn(ctx, email, password)
	if err != nil {
		authErr := newAuthenticationError(err)
		r.logger.Warn().Err(err).Str("reason", authErr.Reason.String()).Msg("sign in rejected")
		r.mu.Lock()
		r.settleState()
		r.mu.Unlock()
		return nil, authErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The notification for this sign-in may already have installed it.
	if r.c.Holder.Matches(id.UID) {
		session, _ := r.c.Holder.Get()
		r.setState(StateAuthenticated)
		return &session, nil
	}

	tok, err := r.c.Provider.IDToken(ctx, true)
	if err != nil {
		r.settleState()
		return nil, pkgerrors.Wrap(err, "[Reconciler.SignIn] IDToken")
	}

	profile, err := r.c.Profiles.GetByID(ctx, id.UID)
	if err != nil {
		r.settleState()
		if errors.Is(err, errors.ErrNotFound) {
			return nil, &ProfileNotFoundError{UserID: id.UID}
		}
		return nil, pkgerrors.Wrap(err, "[Reconciler.SignIn] GetByID")
	}

	session := r.install(ctx, profile, tok, r.nowTime())
	return &session, nil
}

// SignOut clears the local record and markers, signs out of the provider and
// clears the session. When the provider call fails the session stays in
// place with the logging-out marker set, so the next absence clears it.
func (r *Reconciler) SignOut(ctx context.Context) error {
	r.mu.Lock()
	r.setFlag(ctx, r.c.Volatile, markers.ExplicitAuthAction)
	r.setFlag(ctx, r.c.Durable, markers.LoggingOut)
	r.setState(StateLoggingOut)
	if err := r.c.Records.Clear(ctx); err != nil {
		r.logger.Error().Err(err).Msg("clearing persistent auth record")
	}
	r.remove(ctx, r.c.Volatile, markers.UserAuthenticatedThisSession)
	r.mu.Unlock()

	if err := r.c.Provider.SignOut(ctx); err != nil {
		r.logger.Error().Err(err).Msg("provider sign out failed")
		r.mu.Lock()
		r.settleState()
		r.mu.Unlock()
		return &SignOutError{Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A synchronous provider may already have delivered the absence.
	r.resolveExplicitLogout(ctx, r.nowTime())
	r.settleState()
	return nil
}

// MarkManualReload flags the next ambiguous absence as part of a deliberate
// reload so it does not clear the session.
func (r *Reconciler) MarkManualReload(ctx context.Context) error {
	if err := markers.SetFlag(ctx, r.c.Volatile, markers.ManualReload); err != nil {
		return pkgerrors.Wrap(err, "[Reconciler.MarkManualReload] SetFlag")
	}
	return nil
}
