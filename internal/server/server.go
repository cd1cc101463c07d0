// Package server wires the chi router for the petrel serve surface: health
// checks, task listing, and persisted progress reads.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/petrelhq/petrel/internal/errors"
	"github.com/petrelhq/petrel/internal/server/handlers"
	"github.com/petrelhq/petrel/internal/server/middleware"
	"github.com/petrelhq/petrel/pkg/statedoc"
)

// Server hosts the HTTP read surface.
type Server struct {
	host   string
	port   int
	router chi.Router
	health *handlers.HealthManager
	http   *http.Server
}

// New builds a server with routing and middleware installed but no
// domain handlers. Use RegisterTasks/RegisterHealthChecker before Start.
func New(host string, port int) *Server {
	s := &Server{
		host:   host,
		port:   port,
		health: handlers.NewHealthManager("dev"),
	}
	s.router = s.buildRouter(nil)
	return s
}

// NewWithVersion is New with an explicit version string for /health.
func NewWithVersion(host string, port int, version string) *Server {
	s := &Server{
		host:   host,
		port:   port,
		health: handlers.NewHealthManager(version),
	}
	s.router = s.buildRouter(nil)
	return s
}

func (s *Server) buildRouter(tasks *handlers.TasksHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, apperrors.CodeNotFound,
			"no route for "+req.URL.Path, middleware.RequestIDFrom(req), nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, apperrors.CodeMethodNotAllowed,
			req.Method+" not allowed for "+req.URL.Path, middleware.RequestIDFrom(req), nil)
	})

	r.Get("/health", s.health.HealthHandler)
	if tasks != nil {
		r.Get("/v1/tasks", tasks.ListTasks)
		r.Get("/v1/jobs/{jobID}/progress", tasks.GetJobProgress)
	}

	return r
}

// RegisterTasks installs the task registry and progress read endpoints.
func (s *Server) RegisterTasks(tasks handlers.TaskLister, backend statedoc.Backend) {
	s.router = s.buildRouter(handlers.NewTasksHandler(tasks, backend))
}

// RegisterHealthChecker adds a named dependency to /health.
func (s *Server) RegisterHealthChecker(name string, c handlers.HealthChecker) {
	s.health.RegisterChecker(name, c)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
