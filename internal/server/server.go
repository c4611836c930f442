package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/config"
	"github.com/flatwithoutbrokerage/flatapi/internal/auth"
	"github.com/flatwithoutbrokerage/flatapi/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and the app behind it.
type Server struct {
	httpServer *http.Server
	app        *App
	logger     *slog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, storeKind string, logger *slog.Logger) (*Server, error) {
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	app, err := NewApp(ctx, cfg, storeKind, logger)
	if err != nil {
		return nil, err
	}

	router := NewRouter(app.Services, verifier, app.Logger, cfg.RequestTimeout)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// The write deadline must outlast the handler timeout.
	if cfg.RequestTimeout > httpServer.WriteTimeout {
		httpServer.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	}

	return &Server{
		httpServer: httpServer,
		app:        app,
		logger:     app.Logger,
	}, nil
}

// NewRouter builds the chi router with the standard middleware stack.
func NewRouter(svc handlers.Services, verifier *auth.Verifier, logger *slog.Logger, timeout time.Duration) *chi.Mux {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
			NoColor: true,
		}),
		middleware.Timeout(timeout),
	)
	handlers.Mount(router, svc, verifier)
	return router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		_ = s.app.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	return s.Shutdown()
}

// Shutdown drains in-flight requests, then closes backend connections.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.app.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}
