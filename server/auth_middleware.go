package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/crm-session/sessions"
	"github.com/jrsteele09/crm-session/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyTab stores the *Tab serving the request
	ContextKeyTab ContextKey = "tab"
	// ContextKeySession stores the sessions.Session the guard admitted
	ContextKeySession ContextKey = "session"
)

const (
	// deviceCookieName identifies the browser profile; durable markers and
	// the persistent auth record are keyed by it
	deviceCookieName = "crm_device"
	// tabCookieName identifies the tab; volatile markers are keyed by it
	tabCookieName = "crm_tab"
	// tabHeaderName lets scripts address a specific tab when several share
	// the cookie jar
	tabHeaderName = "X-CRM-Tab"

	deviceCookieMaxAge = 400 * 24 * 60 * 60
)

// TabMiddleware resolves the tab for the request, issuing device and tab
// cookies on first contact. When trackPath is set the request path becomes
// the tab's current route.
func (s *Server) TabMiddleware(trackPath bool) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			deviceID := cookieValue(r, deviceCookieName)
			if deviceID == "" {
				deviceID = uuid.NewString()
				s.setCookie(w, r, deviceCookieName, deviceID, deviceCookieMaxAge)
			}

			tabID := r.Header.Get(tabHeaderName)
			if tabID == "" {
				tabID = cookieValue(r, tabCookieName)
			}
			if tabID == "" {
				tabID = uuid.NewString()
				s.setCookie(w, r, tabCookieName, tabID, 0)
			}

			tab, err := s.tabs.Tab(r.Context(), deviceID, tabID, r.URL.Path)
			if err != nil {
				log.Err(err).Str("device", deviceID).Str("tab", tabID).Msg("Failed to open tab")
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			if trackPath {
				tab.Navigator.SetPath(r.URL.Path)
			}

			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyTab, tab)))
		}
	}
}

// RequireSession guards a route. A pending loop redirect sends the tab to
// the sign-in page; without a session API calls get 401 and pages are
// redirected; a session whose role is not in roles gets 403. An empty roles
// list admits any signed-in user.
func (s *Server) RequireSession(roles ...users.Role) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tab := tabFromContext(r.Context())
			if tab == nil {
				http.Error(w, "no tab", http.StatusInternalServerError)
				return
			}

			if tab.Navigator.ConsumeRedirect() {
				http.Redirect(w, r, s.signInPath, http.StatusSeeOther)
				return
			}

			session, ok := tab.Holder.Get()
			if !ok {
				if isAPIRequest(r) {
					writeJSONError(w, http.StatusUnauthorized, "not signed in")
					return
				}
				http.Redirect(w, r, s.signInPath, http.StatusSeeOther)
				return
			}

			if len(roles) > 0 && !roleAllowed(session.Role, roles) {
				if isAPIRequest(r) {
					writeJSONError(w, http.StatusForbidden, "role not allowed")
					return
				}
				http.Error(w, "403 - Forbidden", http.StatusForbidden)
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySession, session)))
		}
	}
}

func roleAllowed(role users.Role, allowed []users.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

func tabFromContext(ctx context.Context) *Tab {
	tab, _ := ctx.Value(ContextKeyTab).(*Tab)
	return tab
}

func sessionFromContext(ctx context.Context) (sessions.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(sessions.Session)
	return session, ok
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
