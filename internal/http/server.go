// Package httpserver exposes a read-only operations API over the migration
// engine: health, migration status and the pending schema diff.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	addr       string
	logger     *slog.Logger
	health     HealthHandler
	migrations *MigrationHandler
}

func New(addr string, logger *slog.Logger, health HealthHandler, migrations *MigrationHandler) *Server {
	return &Server{
		addr:       addr,
		logger:     logger,
		health:     health,
		migrations: migrations,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(RequestLogger(s.logger))

	r.Method(http.MethodGet, "/healthz", s.health)

	r.Route("/api", func(api chi.Router) {
		api.Get("/migrations", s.migrations.Status)
		api.Get("/migrations/{id}", s.migrations.Get)
		api.Get("/diff", s.migrations.Diff)
	})
	return r
}
