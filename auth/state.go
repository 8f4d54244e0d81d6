package auth

// State is where the reconciler stands in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateAuthenticated
	StateLoggingOut
	StateAmbiguousPending
	StateLoopBroken // Terminal for the reconciler's lifetime
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateAuthenticating:   "authenticating",
	StateAuthenticated:    "authenticated",
	StateLoggingOut:       "logging_out",
	StateAmbiguousPending: "ambiguous_pending",
	StateLoopBroken:       "loop_broken",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
