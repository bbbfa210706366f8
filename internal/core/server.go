// Package core provides the API chassis: a chi router with the global
// middleware chain (panic recovery, request IDs, structured request
// logging, context timeouts), the standard JSON response envelopes, and
// request validation. Domain handlers are mounted via registrars to avoid
// import cycles between core and handler packages.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"groundwatch/internal/config"
)

// Server encapsulates the HTTP surface dependencies, allowing injection
// during testing and distinct configuration per environment.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars mount domain handler routes under /v1. Populated by
	// the application entry point before MountRoutes is called.
	V1RouteRegistrars []func(chi.Router)

	// RootRouteRegistrars mount routes outside the /v1 namespace (health).
	RootRouteRegistrars []func(chi.Router)

	// MetricsHandler serves the Prometheus registry at /metrics.
	MetricsHandler http.Handler

	router *chi.Mux
}

// NewServer initializes the server chassis. The caller mounts routes via
// MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MountRoutes registers the global middleware chain (strict order: recovery
// first, then timeouts, correlation IDs, and logging) and the route tree.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	for _, registrar := range s.RootRouteRegistrars {
		registrar(s.router)
	}

	if s.MetricsHandler != nil {
		s.router.Handle("/metrics", s.MetricsHandler)
	}
}
