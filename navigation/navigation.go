// Package navigation is the reconciler's view of where a browser tab is and
// its way of forcing the tab back to the sign-in surface.
package navigation

import "sync"

// Navigator reports the current route and can force a hard redirect to the
// sign-in surface.
type Navigator interface {
	CurrentPath() string
	RedirectToSignIn()
}

// Tab is the Navigator for one browser tab served over HTTP. The HTTP layer
// records every path the tab requests and consumes the pending redirect on
// the tab's next request.
type Tab struct {
	lock      sync.Mutex
	path      string
	redirect  bool
	redirects int
}

var _ Navigator = (*Tab)(nil)

func NewTab(initialPath string) *Tab {
	return &Tab{path: initialPath}
}

func (t *Tab) SetPath(path string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.path = path
}

func (t *Tab) CurrentPath() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.path
}

func (t *Tab) RedirectToSignIn() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.redirect = true
	t.redirects++
}

// ConsumeRedirect reports whether a sign-in redirect is pending and clears it.
func (t *Tab) ConsumeRedirect() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	pending := t.redirect
	t.redirect = false
	return pending
}

// Redirects counts every redirect ever requested for the tab.
func (t *Tab) Redirects() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.redirects
}
