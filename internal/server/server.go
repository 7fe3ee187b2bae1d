// package server contains the HTTP control surface for sync runs
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route is one method and path pattern served by a [Handler]. Path patterns use gorilla/mux syntax.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Handler groups related endpoints (sync runs, metrics) so they register together.
type Handler interface {
	Routes() []Route // Routes returns the endpoints this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server runs a [Router] until its context is cancelled.
type Server struct {
	http   *http.Server
	logger *log.Logger
}

// New creates a server listening on host:port.
func New(cfg shared.ServerConfig, router Router, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// NewRouter wires the sync and metrics endpoints behind panic recovery and request logging.
func NewRouter(engine tasks.SyncEngine, root string, logger *log.Logger) *MuxRouter {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	r := NewMuxRouter()
	r.Use(Recoverer(logger), RequestLogger(logger))
	r.Handler(NewSyncHandler(engine, root, logger))
	r.Handler(MetricsHandler{})
	return r
}
