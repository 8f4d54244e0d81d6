package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ReconcilerConfig holds the thresholds of the auth session reconciler.
type ReconcilerConfig interface {
	GetLoopEventLimit() int
	GetLoopMinAverageSpacing() time.Duration
	GetRapidFireSpacing() time.Duration
	GetRapidFireLimit() int
	GetPageLoadGrace() time.Duration
	GetUpdateThrottle() time.Duration
	GetAbsenceNoiseLimit() int
	GetAbsenceClearThreshold() int
	GetLogoutSettle() time.Duration
	GetAmbiguousCheckInterval() time.Duration
	GetAmbiguousRecheckDelay() time.Duration
	GetLoopRedirectDelay() time.Duration
	GetMaxRecordAge() time.Duration
	GetSignInPath() string
}

type Reconciler struct {
	LoopEventLimit         int           `env:"RECONCILER_LOOP_EVENT_LIMIT"          envDefault:"10"`
	LoopMinAverageSpacing  time.Duration `env:"RECONCILER_LOOP_MIN_AVERAGE_SPACING"  envDefault:"2s"`
	RapidFireSpacing       time.Duration `env:"RECONCILER_RAPID_FIRE_SPACING"        envDefault:"1s"`
	RapidFireLimit         int           `env:"RECONCILER_RAPID_FIRE_LIMIT"          envDefault:"3"`
	PageLoadGrace          time.Duration `env:"RECONCILER_PAGE_LOAD_GRACE"           envDefault:"3s"`
	UpdateThrottle         time.Duration `env:"RECONCILER_UPDATE_THROTTLE"           envDefault:"2s"`
	AbsenceNoiseLimit      int           `env:"RECONCILER_ABSENCE_NOISE_LIMIT"       envDefault:"2"`
	AbsenceClearThreshold  int           `env:"RECONCILER_ABSENCE_CLEAR_THRESHOLD"   envDefault:"3"`
	LogoutSettle           time.Duration `env:"RECONCILER_LOGOUT_SETTLE"             envDefault:"5s"`
	AmbiguousCheckInterval time.Duration `env:"RECONCILER_AMBIGUOUS_CHECK_INTERVAL"  envDefault:"3s"`
	AmbiguousRecheckDelay  time.Duration `env:"RECONCILER_AMBIGUOUS_RECHECK_DELAY"   envDefault:"100ms"`
	LoopRedirectDelay      time.Duration `env:"RECONCILER_LOOP_REDIRECT_DELAY"       envDefault:"500ms"`
	MaxRecordAge           time.Duration `env:"RECONCILER_MAX_RECORD_AGE"            envDefault:"720h"`
	SignInPath             string        `env:"RECONCILER_SIGN_IN_PATH"              envDefault:"/login"`
}

var _ ReconcilerConfig = Reconciler{}

// DefaultReconciler returns the reconciler thresholds with every field at its
// envDefault value, ignoring the process environment.
func DefaultReconciler() Reconciler {
	var r Reconciler
	// Only the defaults are applied so this cannot fail on user input.
	_ = env.ParseWithOptions(&r, env.Options{Environment: map[string]string{}})
	return r
}

func (r Reconciler) GetLoopEventLimit() int {
	return r.LoopEventLimit
}

func (r Reconciler) GetLoopMinAverageSpacing() time.Duration {
	return r.LoopMinAverageSpacing
}

func (r Reconciler) GetRapidFireSpacing() time.Duration {
	return r.RapidFireSpacing
}

func (r Reconciler) GetRapidFireLimit() int {
	return r.RapidFireLimit
}

func (r Reconciler) GetPageLoadGrace() time.Duration {
	return r.PageLoadGrace
}

func (r Reconciler) GetUpdateThrottle() time.Duration {
	return r.UpdateThrottle
}

func (r Reconciler) GetAbsenceNoiseLimit() int {
	return r.AbsenceNoiseLimit
}

func (r Reconciler) GetAbsenceClearThreshold() int {
	return r.AbsenceClearThreshold
}

func (r Reconciler) GetLogoutSettle() time.Duration {
	return r.LogoutSettle
}

func (r Reconciler) GetAmbiguousCheckInterval() time.Duration {
	return r.AmbiguousCheckInterval
}

func (r Reconciler) GetAmbiguousRecheckDelay() time.Duration {
	return r.AmbiguousRecheckDelay
}

func (r Reconciler) GetLoopRedirectDelay() time.Duration {
	return r.LoopRedirectDelay
}

func (r Reconciler) GetMaxRecordAge() time.Duration {
	return r.MaxRecordAge
}

func (r Reconciler) GetSignInPath() string {
	return r.SignInPath
}
