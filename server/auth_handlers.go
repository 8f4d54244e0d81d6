package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/crm-session/auth"
	"github.com/jrsteele09/crm-session/sessions"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the body of the session endpoints.
type SessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	State         string            `json:"state"`
	Session       *sessions.Session `json:"session,omitempty"`
	Dashboard     string            `json:"dashboard,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// LoginHandler signs the tab in (POST /api/auth/login).
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := tabFromContext(r.Context())

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		session, err := tab.Reconciler.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			var authErr *auth.AuthenticationError
			var profileErr *auth.ProfileNotFoundError
			switch {
			case errors.As(err, &authErr):
				status := http.StatusUnauthorized
				if authErr.Reason == auth.ReasonRateLimited {
					status = http.StatusTooManyRequests
				}
				writeJSON(w, status, errorResponse{Error: authErr.Message(), Reason: authErr.Reason.String()})
			case errors.As(err, &profileErr):
				writeJSON(w, http.StatusForbidden, errorResponse{Error: "User data not found", Reason: "profile_not_found"})
			default:
				log.Err(err).Str("tab", tab.ID).Msg("Sign in failed")
				writeJSONError(w, http.StatusInternalServerError, "sign in failed")
			}
			return
		}

		writeJSON(w, http.StatusOK, SessionResponse{
			Authenticated: true,
			State:         tab.Reconciler.State().String(),
			Session:       session,
			Dashboard:     dashboardFor(session.Role).Name,
		})
	}
}

// LogoutHandler signs the tab out (POST /api/auth/logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := tabFromContext(r.Context())
		if err := tab.Reconciler.SignOut(r.Context()); err != nil {
			log.Err(err).Str("tab", tab.ID).Msg("Sign out failed")
			writeJSONError(w, http.StatusBadGateway, "sign out failed, please try again")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionHandler reports what the route guards currently see
// (GET /api/auth/session).
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := tabFromContext(r.Context())
		resp := SessionResponse{State: tab.Reconciler.State().String()}
		if session, ok := tab.Reconciler.Session(); ok {
			resp.Authenticated = true
			resp.Session = &session
			resp.Dashboard = dashboardFor(session.Role).Name
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// MeHandler returns the session the guard admitted (GET /api/auth/me).
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, session)
	}
}

// ReloadHandler marks the tab's next reload as deliberate
// (POST /api/auth/reload).
func (s *Server) ReloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := tabFromContext(r.Context())
		if err := tab.Reconciler.MarkManualReload(r.Context()); err != nil {
			log.Err(err).Str("tab", tab.ID).Msg("Failed to mark manual reload")
			writeJSONError(w, http.StatusInternalServerError, "could not mark reload")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
