package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	tabs       *TabRegistry
	signInPath string
}

func New(config config.Config, tabs *TabRegistry) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if tabs == nil {
		return nil, errors.New("[Server New] tab registry is required")
	}

	s := &Server{
		mux:        http.NewServeMux(),
		config:     config,
		tabs:       tabs,
		env:        config.GetEnv(),
		signInPath: config.GetSignInPath(),
	}

	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] routes: %w", err)
	}
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1], 0)
		} else {
			logRoute("", parts[0], 0)
		}
	}
}

func logRoute(method, path string, status int) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	colour, ok := methodColors[method]
	if !ok {
		colour = Gray
	}
	line := fmt.Sprintf("[%s%s%s] %s", colour, paddedMethod, ResetColor, path)
	if status > 0 {
		line += fmt.Sprintf(" %s%d%s", statusColour(status), status, ResetColor)
	}
	log.Debug().Msg(line)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
