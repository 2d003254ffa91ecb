package server

import (
	"fmt"
	"net/http"

	"github.com/coleapp/session-service/accounts"
	"github.com/coleapp/session-service/internal/config"
	"github.com/rs/zerolog"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	accounts *accounts.Service
	repos    accounts.Repos
	logger   zerolog.Logger
}

func New(cfg config.Config, repos accounts.Repos, service *accounts.Service, logger zerolog.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("[Server New] accounts service is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		repos:    repos,
		accounts: service,
		logger:   logger,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requestLogger(s.mux).ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST /graphql", s.SessionHandler())
	s.RegisterRouteFunc("GET /healthz", s.HealthHandler())
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		s.logger.Debug().Str("route", route).Msg("registered")
	}
}
