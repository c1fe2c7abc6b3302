package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/handler"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/middleware"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
)

// Config holds HTTP server parameters.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server owns the HTTP listener and drains it on context cancellation.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *logger.Logger
}

func New(cfg Config, router http.Handler, logger *logger.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server: listening",
			"addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("HTTP server: stopped")
	return nil
}

// NewRouter assembles the route table behind the gateway. Every route,
// public or protected, passes through the gateway middleware.
func NewRouter(
	gateway *middleware.Gateway,
	logging *middleware.Logging,
	auth *handler.Auth,
	recovery *handler.Recovery,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logging.Handle)
	r.Use(gateway.Handle)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", auth.Login)
		r.Post("/logout", auth.Logout)
		r.Post("/register", auth.Register)
		r.Post("/recovery/request", recovery.Request)
		r.Post("/recovery/confirm", recovery.Confirm)
	})

	r.Get("/api/me", handler.Me)

	return r
}
