// Package oidc signs CRM users in against an external OpenID Connect
// identity platform using the resource owner password grant, and verifies
// the ID tokens it returns.
package oidc

import (
	"context"
	"net/http"
	"strings"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type idClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Provider struct {
	oauth      oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	dispatcher *identity.Dispatcher

	mu      sync.Mutex
	current *identity.Identity
	token   *oauth2.Token
	idToken string
}

var _ identity.Provider = (*Provider)(nil)

// NewProvider discovers the issuer's endpoints and signing keys.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, pkgerrors.New("[oidc.NewProvider] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, pkgerrors.New("[oidc.NewProvider] client ID is required")
	}

	discovered, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[oidc.NewProvider] discovery")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile", gooidc.ScopeOfflineAccess}
	}

	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     discovered.Endpoint(),
			Scopes:       scopes,
		},
		verifier:   discovered.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		dispatcher: identity.NewDispatcher(),
	}, nil
}

// Fork returns a provider with its own sign-in state and subscribers that
// shares the discovered endpoints and key set.
func (p *Provider) Fork() *Provider {
	return &Provider{
		oauth:      p.oauth,
		verifier:   p.verifier,
		dispatcher: identity.NewDispatcher(),
	}
}

// Subscribe registers h and queues the current state for h alone.
func (p *Provider) Subscribe(ctx context.Context, h identity.Handler) (func(), error) {
	id, unsubscribe := p.dispatcher.Subscribe(ctx, h)
	p.dispatcher.PublishTo(id, p.currentNotification())
	return unsubscribe, nil
}

// Refresh re-announces the current state to every subscriber.
func (p *Provider) Refresh() {
	p.dispatcher.Publish(p.currentNotification())
}

func (p *Provider) Close() {
	p.dispatcher.Close()
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	tok, err := p.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, mapTokenError(err)
	}

	id, rawID, err := p.verify(ctx, tok)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = id
	p.token = tok
	p.idToken = rawID
	p.mu.Unlock()

	log.Info().Str("uid", id.UID).Msg("oidc identity signed in")
	p.dispatcher.Publish(identity.Present(*id))
	out := *id
	return &out, nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.token = nil
	p.idToken = ""
	p.mu.Unlock()

	p.dispatcher.Publish(identity.Absent())
	return nil
}

// IDToken returns the cached ID token, or redeems the refresh token for a
// new one when forceRefresh is set or the cached token no longer verifies.
func (p *Provider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	current, tok, rawID := p.current, p.token, p.idToken
	p.mu.Unlock()

	if current == nil || tok == nil {
		return "", identity.NewError(identity.CodeNoCurrentUser, errors.ErrNoCurrentUser)
	}
	if !forceRefresh && rawID != "" {
		if _, err := p.verifier.Verify(ctx, rawID); err == nil {
			return rawID, nil
		}
	}
	if tok.RefreshToken == "" {
		return "", identity.NewError(identity.CodeInternal, errors.Wrapf(errors.ErrInvalidToken, "no refresh token"))
	}

	refreshed, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		return "", mapTokenError(err)
	}
	id, newRaw, err := p.verify(ctx, refreshed)
	if err != nil {
		return "", err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}

	p.mu.Lock()
	p.current = id
	p.token = refreshed
	p.idToken = newRaw
	p.mu.Unlock()
	return newRaw, nil
}

func (p *Provider) verify(ctx context.Context, tok *oauth2.Token) (*identity.Identity, string, error) {
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, "", identity.NewError(identity.CodeInternal, errors.Wrapf(errors.ErrInvalidToken, "token response has no id_token"))
	}
	verified, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, "", identity.NewError(identity.CodeInternal, errors.Wrapf(errors.ErrInvalidToken, "%s", err.Error()))
	}
	var claims idClaims
	if err := verified.Claims(&claims); err != nil {
		return nil, "", identity.NewError(identity.CodeInternal, err)
	}
	return &identity.Identity{UID: verified.Subject, Email: claims.Email, DisplayName: claims.Name}, rawID, nil
}

func (p *Provider) currentNotification() identity.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.Absent()
	}
	return identity.Present(*p.current)
}

// mapTokenError turns a token endpoint failure into a provider error code.
func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return identity.NewError(identity.CodeInternal, err)
	}
	if re.Response != nil && re.Response.StatusCode == http.StatusTooManyRequests {
		return identity.NewError(identity.CodeTooManyRequests, err)
	}
	switch re.ErrorCode {
	case "invalid_grant":
		if strings.Contains(strings.ToLower(re.ErrorDescription), "disabled") {
			return identity.NewError(identity.CodeUserDisabled, err)
		}
		return identity.NewError(identity.CodeInvalidCredential, err)
	case "temporarily_unavailable", "slow_down":
		return identity.NewError(identity.CodeTooManyRequests, err)
	}
	return identity.NewError(identity.CodeInternal, err)
}
