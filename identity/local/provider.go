// Package local is the built-in identity provider: email and password
// accounts kept in the CRM's own user store, with HS256 ID tokens.
//
// One Provider models one browser's identity state. Every tab of that
// browser subscribes to the same Provider, the way tabs share an identity
// platform session.
package local

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/token"
	"github.com/jrsteele09/crm-session/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxFailedAttempts   = 5
	defaultFailedAttemptWindow = 15 * time.Minute
)

type attempts struct {
	count int
	first time.Time
}

type Provider struct {
	users      users.Repo
	issuer     *token.Issuer
	dispatcher *identity.Dispatcher
	nowTime    func() time.Time

	maxFailedAttempts   int
	failedAttemptWindow time.Duration

	mu      sync.Mutex
	current *identity.Identity
	idToken string
	failed  map[string]*attempts
}

var _ identity.Provider = (*Provider)(nil)

type ProviderOption func(*Provider)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// WithAttemptLimit sets how many failed sign-ins an email gets within window
// before further attempts are rejected as too many requests.
func WithAttemptLimit(max int, window time.Duration) ProviderOption {
	return func(p *Provider) {
		p.maxFailedAttempts = max
		p.failedAttemptWindow = window
	}
}

func WithDispatcher(d *identity.Dispatcher) ProviderOption {
	return func(p *Provider) {
		p.dispatcher = d
	}
}

func NewProvider(userRepo users.Repo, issuer *token.Issuer, options ...ProviderOption) (*Provider, error) {
	if userRepo == nil {
		return nil, pkgerrors.New("[local.NewProvider] users repo is required")
	}
	if issuer == nil {
		return nil, pkgerrors.New("[local.NewProvider] token issuer is required")
	}

	p := &Provider{
		users:               userRepo,
		issuer:              issuer,
		nowTime:             time.Now,
		maxFailedAttempts:   defaultMaxFailedAttempts,
		failedAttemptWindow: defaultFailedAttemptWindow,
		failed:              make(map[string]*attempts),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.dispatcher == nil {
		p.dispatcher = identity.NewDispatcher()
	}
	return p, nil
}

// Subscribe registers h and queues the current state for h alone. Tabs that
// are already subscribed do not hear about the newcomer.
func (p *Provider) Subscribe(ctx context.Context, h identity.Handler) (func(), error) {
	id, unsubscribe := p.dispatcher.Subscribe(ctx, h)
	p.dispatcher.PublishTo(id, p.currentNotification())
	return unsubscribe, nil
}

// Refresh re-announces the current state to every subscriber, the way an
// identity platform re-fires on token refresh or tab focus.
func (p *Provider) Refresh() {
	p.dispatcher.Publish(p.currentNotification())
}

func (p *Provider) Close() {
	p.dispatcher.Close()
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	email = users.NormalizeEmail(email)

	if p.throttled(email) {
		return nil, identity.NewError(identity.CodeTooManyRequests, nil)
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			p.recordFailure(email)
			return nil, identity.NewError(identity.CodeUserNotFound, err)
		}
		return nil, identity.NewError(identity.CodeInternal, err)
	}
	if user.Disabled {
		return nil, identity.NewError(identity.CodeUserDisabled, errors.ErrUserDisabled)
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		p.recordFailure(email)
		return nil, identity.NewError(identity.CodeWrongPassword, errors.ErrInvalidCredentials)
	}

	issued, err := p.issuer.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, identity.NewError(identity.CodeInternal, err)
	}

	id := identity.Identity{UID: user.ID, Email: user.Email, DisplayName: user.Name}
	p.mu.Lock()
	delete(p.failed, email)
	p.current = &id
	p.idToken = issued.Raw
	p.mu.Unlock()

	log.Info().Str("uid", user.ID).Msg("local identity signed in")
	p.dispatcher.Publish(identity.Present(id))
	out := id
	return &out, nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.idToken = ""
	p.mu.Unlock()

	p.dispatcher.Publish(identity.Absent())
	return nil
}

func (p *Provider) IDToken(_ context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return "", identity.NewError(identity.CodeNoCurrentUser, errors.ErrNoCurrentUser)
	}
	if !forceRefresh && p.idToken != "" {
		if _, err := p.issuer.Parse(p.idToken); err == nil {
			return p.idToken, nil
		}
	}
	issued, err := p.issuer.Issue(p.current.UID, p.current.Email, p.current.DisplayName)
	if err != nil {
		return "", identity.NewError(identity.CodeInternal, err)
	}
	p.idToken = issued.Raw
	return p.idToken, nil
}

// Resume signs id back in without notifying anyone. It is used when a
// browser returns with a valid persistent auth record after its provider
// was released.
func (p *Provider) Resume(id identity.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &id
	p.idToken = ""
}

// Current returns the signed-in identity, if any.
func (p *Provider) Current() (identity.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.Identity{}, false
	}
	return *p.current, true
}

// Register creates an account in the user store.
func (p *Provider) Register(ctx context.Context, email, password, name string, role users.Role) (*users.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[local.Register] email %q", email)
	}
	if !role.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[local.Register] role %q", role)
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[local.Register] %s", err.Error())
	}
	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[local.Register] %s already registered", email)
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "[local.Register] GetByEmail")
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[local.Register] HashPassword")
	}
	user := &users.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    p.nowTime(),
	}
	if err := p.users.Upsert(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(err, "[local.Register] Upsert")
	}
	return user, nil
}

func (p *Provider) currentNotification() identity.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.Absent()
	}
	return identity.Present(*p.current)
}

func (p *Provider) throttled(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.failed[email]
	if !ok {
		return false
	}
	if p.nowTime().Sub(a.first) > p.failedAttemptWindow {
		delete(p.failed, email)
		return false
	}
	return a.count >= p.maxFailedAttempts
}

func (p *Provider) recordFailure(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.nowTime()
	a, ok := p.failed[email]
	if !ok || now.Sub(a.first) > p.failedAttemptWindow {
		p.failed[email] = &attempts{count: 1, first: now}
		return
	}
	a.count++
}
