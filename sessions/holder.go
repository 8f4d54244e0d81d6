package sessions

import "sync"

// Holder keeps the authoritative in-memory Session. Route guards read it;
// only the session reconciler writes it.
type Holder struct {
	mu       sync.RWMutex
	current  *Session
	revision uint64
}

func NewHolder() *Holder {
	return &Holder{}
}

// Get returns a copy of the current session.
func (h *Holder) Get() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return Session{}, false
	}
	return *h.current, true
}

func (h *Holder) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current != nil
}

// Matches reports whether the current session belongs to userID.
func (h *Holder) Matches(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current != nil && h.current.UserID == userID
}

// Set installs s as the current session.
func (h *Holder) Set(s *Session) {
	cp := *s
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &cp
	h.revision++
}

// Clear removes the current session. It reports whether one was present.
func (h *Holder) Clear() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return false
	}
	h.current = nil
	h.revision++
	return true
}

// Revision increases on every Set and on every Clear that removed a session.
func (h *Holder) Revision() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}
