// Package server exposes the coordinator over HTTP: submit work,
// inspect a unit, list units, cancel a unit, and introspect what is
// blocked and why. Its router setup, functional-options constructor,
// and middleware stack are grounded on
// _examples/wilke-GoWe/internal/server/server.go, generalized from a
// workflow-submission API to a work-unit one.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/coordinate/internal/coordinator"
)

// Server wraps a *coordinator.Coordinator with an HTTP admin API.
type Server struct {
	coord  *coordinator.Coordinator
	logger *slog.Logger
	router chi.Router
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds a Server wired to coord.
func New(coord *coordinator.Coordinator, opts ...Option) *Server {
	s := &Server{coord: coord, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/work", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/cancel", s.handleCancel)
	})

	r.Get("/api/v1/debug/blocked", s.handleDebugBlocked)

	return r
}
