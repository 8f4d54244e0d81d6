package server

import (
	"net/http"
)

func (s *Server) initRoutes() error {
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return err
	}
	pageTmpl, err := ParseTemplate("page.html")
	if err != nil {
		return err
	}

	s.RegisterRouteFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	})

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(loginTmpl), s.HTMLMiddleWare()...))

	// Auth API
	s.RegisterRouteHandler("POST "+RouteAPIAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIAuthSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIAuthReload, ChainMiddleware(s.ReloadHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireSession())...))

	// CRM pages
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(pageTmpl), s.HTMLMiddleWare(s.RequireSession())...))
	for _, page := range crmPages {
		s.RegisterRouteHandler("GET "+page.Pattern, ChainMiddleware(s.CRMPageHandler(pageTmpl, page), s.HTMLMiddleWare(s.RequireSession(page.Roles...))...))
	}

	// Anything else lands on the dashboard
	s.RegisterRouteFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	})
	return nil
}
