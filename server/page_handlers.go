package server

import (
	"html/template"
	"net/http"

	"github.com/jrsteele09/crm-session/sessions"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName string
	Error   string
	Email   string // Preserve email on error
}

// PageData contains data for rendering a CRM page
type PageData struct {
	AppName string
	Title   string
	Session sessions.Session
	Links   []string
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := LoginPageData{
			AppName: s.config.GetAppName(),
			Error:   r.URL.Query().Get("error"),
			Email:   r.URL.Query().Get("email"),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
		}
	}
}

// DashboardHandler renders the dashboard of the signed-in user's role.
func (s *Server) DashboardHandler(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionFromContext(r.Context())
		d, ok := dashboards[session.Role]
		if !ok {
			http.Redirect(w, r, s.signInPath, http.StatusSeeOther)
			return
		}
		s.renderPage(w, tmpl, PageData{
			AppName: s.config.GetAppName(),
			Title:   d.Title,
			Session: session,
			Links:   d.Links,
		})
	}
}

// CRMPageHandler renders a guarded CRM area.
func (s *Server) CRMPageHandler(tmpl *template.Template, page crmPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionFromContext(r.Context())
		s.renderPage(w, tmpl, PageData{
			AppName: s.config.GetAppName(),
			Title:   page.Title,
			Session: session,
		})
	}
}

func (s *Server) renderPage(w http.ResponseWriter, tmpl *template.Template, data PageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Str("page", data.Title).Msg("Failed to render page template")
	}
}
