// Package auth reconciles the identity provider's notification stream with
// the CRM's local session. It decides when to install, keep or clear the
// session, suppresses the update storms a re-firing provider causes, and
// trips a circuit breaker when the stream loops.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/markers"
	"github.com/jrsteele09/crm-session/navigation"
	"github.com/jrsteele09/crm-session/sessions"
	"github.com/jrsteele09/crm-session/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Collaborators holds everything the reconciler reads and writes.
type Collaborators struct {
	Provider  identity.Provider    // Source of notifications, sign-in and tokens
	Profiles  users.ProfileRepo    // Authoritative user profiles
	Records   sessions.Repo        // Persistent auth record for the browser profile
	Durable   markers.Store        // Markers that survive reloads and restarts
	Volatile  markers.Store        // Markers scoped to one tab
	Navigator navigation.Navigator // Current route and forced redirects
	Holder    *sessions.Holder     // In-memory session read by route guards
}

// AfterFunc runs f once after d.
type AfterFunc func(d time.Duration, f func())

// Reconciler owns the session lifecycle of one tab. Notifications, the
// sign-in and sign-out entry points and delayed rechecks are serialized by
// a single mutex.
type Reconciler struct {
	c         Collaborators
	cfg       config.ReconcilerConfig
	nowTime   func() time.Time
	afterFunc AfterFunc
	logger    zerolog.Logger

	mu               sync.Mutex
	state            State
	started          bool
	stopped          bool
	disabled         bool
	unsubscribe      func()
	bootedAt         time.Time // Start of the page-load grace window
	startedAt        time.Time // Start of the rate guard's observation
	events           int       // Notifications received since Start
	lastNotification time.Time
	absences         int // Consecutive UserAbsent notifications
}

// ReconcilerOption defines a function type to modify the Reconciler instance.
type ReconcilerOption func(*Reconciler)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.nowTime = nowFunc
	}
}

// WithAfterFunc replaces the timer used for delayed rechecks and redirects.
func WithAfterFunc(after AfterFunc) ReconcilerOption {
	return func(r *Reconciler) {
		r.afterFunc = after
	}
}

func WithLogger(logger zerolog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func NewReconciler(c Collaborators, cfg config.ReconcilerConfig, options ...ReconcilerOption) (*Reconciler, error) {
	if c.Provider == nil {
		return nil, pkgerrors.New("[NewReconciler] Provider is required")
	}
	if c.Profiles == nil {
		return nil, pkgerrors.New("[NewReconciler] Profiles repo is required")
	}
	if c.Records == nil {
		return nil, pkgerrors.New("[NewReconciler] Records repo is required")
	}
	if c.Durable == nil || c.Volatile == nil {
		return nil, pkgerrors.New("[NewReconciler] Durable and Volatile marker stores are required")
	}
	if c.Navigator == nil {
		return nil, pkgerrors.New("[NewReconciler] Navigator is required")
	}
	if c.Holder == nil {
		return nil, pkgerrors.New("[NewReconciler] Holder is required")
	}
	if cfg == nil {
		cfg = config.DefaultReconciler()
	}

	r := &Reconciler{
		c:       c,
		cfg:     cfg,
		nowTime: time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		logger: log.Logger.With().Str("component", "auth.reconciler").Logger(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.bootedAt = r.nowTime()
	return r, nil
}

// Start subscribes to the provider. Only the first call does anything. When
// a previous run tripped the loop breaker, Start leaves the tab as it is and
// does not subscribe.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		r.logger.Debug().Msg("reconciler already started")
		return nil
	}
	tripped, err := markers.LoopTripped(ctx, r.c.Durable)
	if err != nil {
		r.mu.Unlock()
		return pkgerrors.Wrap(err, "[Reconciler.Start] LoopTripped")
	}
	r.started = true
	r.startedAt = r.nowTime()
	if tripped {
		r.disabled = true
		r.setState(StateLoopBroken)
		r.mu.Unlock()
		r.logger.Error().Err(ErrLoopDetected).Msg("loop flag set, not subscribing to auth notifications")
		return nil
	}
	r.mu.Unlock()

	// Providers may deliver the current state from inside Subscribe.
	unsubscribe, err := r.c.Provider.Subscribe(ctx, r.handle)
	if err != nil {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return pkgerrors.Wrap(err, "[Reconciler.Start] Subscribe")
	}

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
	r.logger.Info().Msg("auth reconciler started")
	return nil
}

// Stop unsubscribes from the provider and ignores any pending rechecks.
// A stopped reconciler cannot be started again.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	r.stopped = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns the session the route guards currently see.
func (r *Reconciler) Session() (sessions.Session, bool) {
	return r.c.Holder.Get()
}

func (r *Reconciler) handle(ctx context.Context, n identity.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.disabled {
		return
	}
	r.events++

	// Another tab, or an earlier notification, may have tripped the breaker.
	if tripped, err := markers.LoopTripped(ctx, r.c.Durable); err != nil {
		r.logger.Error().Err(err).Msg("reading loop flags")
	} else if tripped {
		r.disable()
		r.logger.Error().Err(ErrLoopDetected).Msg("loop flag set during notification, ignoring")
		return
	}

	now := r.nowTime()
	if r.rateExceeded(now) {
		r.tripRateGuard(ctx, now)
		return
	}
	if r.rapidFire(ctx, now) {
		return
	}
	r.lastNotification = now

	explicit := r.readFlag(ctx, r.c.Volatile, markers.ExplicitAuthAction)
	if explicit {
		r.remove(ctx, r.c.Volatile, markers.ExplicitAuthAction)
	}

	pageLoad := r.inPageLoad(now)
	r.logger.Debug().
		Str("kind", n.Kind.String()).
		Bool("page_load", pageLoad).
		Bool("explicit", explicit).
		Msg("auth notification")

	if n.Kind == identity.UserPresent && n.Identity != nil {
		r.userPresent(ctx, *n.Identity, explicit, pageLoad, now)
		return
	}
	r.userAbsent(ctx, pageLoad, now)
}

// rateExceeded is the lifetime rate guard: more than the event limit at an
// average spacing below the configured minimum.
func (r *Reconciler) rateExceeded(now time.Time) bool {
	if r.events <= r.cfg.GetLoopEventLimit() {
		return false
	}
	elapsed := now.Sub(r.startedAt)
	return elapsed < time.Duration(r.events)*r.cfg.GetLoopMinAverageSpacing()
}

func (r *Reconciler) tripRateGuard(ctx context.Context, now time.Time) {
	r.setFlag(ctx, r.c.Durable, markers.LoopBroken)
	r.setFlag(ctx, r.c.Durable, markers.ReloadLoopDetected)
	r.disable()
	r.logger.Error().
		Err(ErrLoopDetected).
		Int("events", r.events).
		Dur("elapsed", now.Sub(r.startedAt)).
		Msg("auth notification rate exceeded, disabling reconciler")

	if r.onSignInSurface() {
		return
	}
	nav := r.c.Navigator
	r.afterFunc(r.cfg.GetLoopRedirectDelay(), nav.RedirectToSignIn)
}

// rapidFire counts notifications arriving closer together than the rapid
// fire spacing and trips the breaker once the count passes the limit.
func (r *Reconciler) rapidFire(ctx context.Context, now time.Time) bool {
	if r.lastNotification.IsZero() || now.Sub(r.lastNotification) >= r.cfg.GetRapidFireSpacing() {
		r.setInt(ctx, r.c.Volatile, markers.AuthLoopCount, 0)
		return false
	}

	count := r.readInt(ctx, r.c.Volatile, markers.AuthLoopCount) + 1
	r.setInt(ctx, r.c.Volatile, markers.AuthLoopCount, count)
	r.logger.Warn().Int("count", count).Dur("spacing", now.Sub(r.lastNotification)).Msg("rapid auth state changes")
	if count <= r.cfg.GetRapidFireLimit() {
		return false
	}

	r.setFlag(ctx, r.c.Durable, markers.LoopBroken)
	r.disable()
	r.logger.Error().Err(ErrLoopDetected).Int("count", count).Msg("rapid auth state change loop, disabling reconciler")
	return true
}

func (r *Reconciler) userPresent(ctx context.Context, id identity.Identity, explicit, pageLoad bool, now time.Time) {
	r.absences = 0

	if r.c.Holder.Matches(id.UID) {
		r.logger.Debug().Str("uid", id.UID).Msg("already authenticated with same user")
		r.setState(StateAuthenticated)
		return
	}

	if !explicit && !pageLoad {
		last := r.readTime(ctx, r.c.Volatile, markers.LastAuthUpdate)
		if !last.IsZero() && now.Sub(last) < r.cfg.GetUpdateThrottle() {
			r.logger.Debug().Str("uid", id.UID).Msg("throttling auth state update")
			return
		}
	}

	profile, err := r.c.Profiles.GetByID(ctx, id.UID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			r.logger.Warn().Err(&ProfileNotFoundError{UserID: id.UID}).Msg("authenticated identity has no profile")
			return
		}
		r.logger.Error().Err(err).Str("uid", id.UID).Msg("fetching user profile")
		return
	}

	tok, err := r.c.Provider.IDToken(ctx, true)
	if err != nil {
		r.logger.Error().Err(err).Str("uid", id.UID).Msg("refreshing ID token")
		return
	}

	r.install(ctx, profile, tok, now)
}

// install makes profile the current session and persists it.
func (r *Reconciler) install(ctx context.Context, profile *users.User, tok string, now time.Time) sessions.Session {
	session := sessions.NewSession(profile, tok, now)
	r.c.Holder.Set(session)
	if err := r.c.Records.Save(ctx, session.Record(now)); err != nil {
		r.logger.Error().Err(err).Str("uid", profile.ID).Msg("saving persistent auth record")
	}
	r.setFlag(ctx, r.c.Volatile, markers.UserAuthenticatedThisSession)
	r.setTime(ctx, r.c.Volatile, markers.LastAuthUpdate, now)
	r.setState(StateAuthenticated)
	r.logger.Info().Str("uid", profile.ID).Str("role", string(profile.Role)).Msg("session installed")
	return *session
}

func (r *Reconciler) userAbsent(ctx context.Context, pageLoad bool, now time.Time) {
	r.absences++
	if pageLoad || r.absences <= r.cfg.GetAbsenceNoiseLimit() {
		r.logger.Debug().Int("absences", r.absences).Bool("page_load", pageLoad).Msg("ignoring absence as initialization noise")
		return
	}

	if r.readFlag(ctx, r.c.Volatile, markers.ManualReload) {
		r.remove(ctx, r.c.Volatile, markers.ManualReload)
		r.logger.Debug().Msg("manual reload in progress, keeping session")
		return
	}

	if last := r.readTime(ctx, r.c.Volatile, markers.LastLogout); !last.IsZero() && now.Sub(last) < r.cfg.GetLogoutSettle() {
		r.logger.Debug().Msg("absence right after logout, ignoring")
		return
	}

	if r.resolveExplicitLogout(ctx, now) {
		return
	}

	authenticated := r.c.Holder.IsAuthenticated()
	if authenticated && r.onSignInSurface() {
		r.clearSession(ctx, now, "stale session on sign-in page")
		return
	}
	if !authenticated {
		r.setState(StateIdle)
		return
	}

	if last := r.readTime(ctx, r.c.Volatile, markers.LastPersistentCheck); !last.IsZero() && now.Sub(last) < r.cfg.GetAmbiguousCheckInterval() {
		r.logger.Debug().Msg("ambiguous absence checked recently, skipping")
		return
	}
	r.setTime(ctx, r.c.Volatile, markers.LastPersistentCheck, now)
	r.setState(StateAmbiguousPending)
	r.logger.Info().Int("absences", r.absences).Msg("ambiguous absence, scheduling persistent auth check")

	recheckCtx := context.WithoutCancel(ctx)
	r.afterFunc(r.cfg.GetAmbiguousRecheckDelay(), func() {
		r.recheck(recheckCtx)
	})
}

// resolveExplicitLogout clears the session when a logout is in progress. It
// reports whether the logging-out marker was set.
func (r *Reconciler) resolveExplicitLogout(ctx context.Context, now time.Time) bool {
	if !r.readFlag(ctx, r.c.Durable, markers.LoggingOut) {
		return false
	}
	r.clearSession(ctx, now, "explicit logout")
	r.remove(ctx, r.c.Durable, markers.LoggingOut)
	return true
}

// recheck runs after an ambiguous absence. It is not cancelled by newer
// notifications; whatever it decides is applied.
func (r *Reconciler) recheck(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.disabled {
		return
	}
	now := r.nowTime()

	record, err := r.c.Records.Read(ctx)
	switch {
	case err == nil && record.Valid(now, r.cfg.GetMaxRecordAge()):
		if !r.c.Holder.Matches(record.UserID) {
			r.c.Holder.Set(record.Session())
		}
		r.setState(StateAuthenticated)
		r.logger.Info().Str("uid", record.UserID).Msg("session restored from persistent auth record")
		return
	case err == nil:
		r.logger.Info().Str("uid", record.UserID).Msg("persistent auth record too old to restore")
	case errors.Is(err, errors.ErrNotFound):
		r.logger.Debug().Msg("no persistent auth record")
	default:
		r.logger.Error().Err(err).Msg("reading persistent auth record")
	}

	if !r.inPageLoad(now) && r.absences > r.cfg.GetAbsenceClearThreshold() {
		r.clearSession(ctx, now, "persistent absence")
		return
	}
	r.settleState()
}

func (r *Reconciler) clearSession(ctx context.Context, now time.Time, reason string) {
	if r.c.Holder.Clear() {
		r.logger.Info().Str("reason", reason).Msg("session cleared")
	}
	r.setTime(ctx, r.c.Volatile, markers.LastLogout, now)
	r.setState(StateIdle)
}

// settleState derives the resting state from the holder.
func (r *Reconciler) settleState() {
	if r.c.Holder.IsAuthenticated() {
		r.setState(StateAuthenticated)
		return
	}
	r.setState(StateIdle)
}

func (r *Reconciler) disable() {
	r.disabled = true
	r.setState(StateLoopBroken)
}

func (r *Reconciler) onSignInSurface() bool {
	return strings.HasPrefix(r.c.Navigator.CurrentPath(), r.cfg.GetSignInPath())
}

func (r *Reconciler) inPageLoad(now time.Time) bool {
	return now.Sub(r.bootedAt) < r.cfg.GetPageLoadGrace()
}

func (r *Reconciler) setState(s State) {
	if r.state == StateLoopBroken || r.state == s {
		return
	}
	r.logger.Debug().Str("from", r.state.String()).Str("to", s.String()).Msg("state change")
	r.state = s
}

// Marker access. Storage failures are logged and treated as unset.

func (r *Reconciler) readFlag(ctx context.Context, s markers.Store, key markers.Key) bool {
	v, err := markers.Flag(ctx, s, key)
	if err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("reading marker")
	}
	return v
}

func (r *Reconciler) setFlag(ctx context.Context, s markers.Store, key markers.Key) {
	if err := markers.SetFlag(ctx, s, key); err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("writing marker")
	}
}

func (r *Reconciler) readInt(ctx context.Context, s markers.Store, key markers.Key) int {
	v, err := markers.Int(ctx, s, key)
	if err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("reading marker")
	}
	return v
}

func (r *Reconciler) setInt(ctx context.Context, s markers.Store, key markers.Key, n int) {
	if err := markers.SetInt(ctx, s, key, n); err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("writing marker")
	}
}

func (r *Reconciler) readTime(ctx context.Context, s markers.Store, key markers.Key) time.Time {
	v, err := markers.Time(ctx, s, key)
	if err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("reading marker")
	}
	return v
}

func (r *Reconciler) setTime(ctx context.Context, s markers.Store, key markers.Key, t time.Time) {
	if err := markers.SetTime(ctx, s, key, t); err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("writing marker")
	}
}

func (r *Reconciler) remove(ctx context.Context, s markers.Store, key markers.Key) {
	if err := s.Remove(ctx, key); err != nil {
		r.logger.Error().Err(err).Str("marker", string(key)).Msg("removing marker")
	}
}
