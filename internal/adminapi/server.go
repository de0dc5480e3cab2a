package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/idhost/internal/logger"
)

// Config configures the admin HTTP server's listener and JWT gate.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	JWTSecret string
	JWTTTL    time.Duration
}

// Server is the node's local-bind-only control surface.
type Server struct {
	httpServer *http.Server
	jwtSvc     *jwtService

	shutdownOnce sync.Once
}

// New builds a Server bound to 127.0.0.1:port: the admin surface is
// never exposed beyond localhost, so authentication only needs to
// defend against other local users, not the network.
func New(cfg Config, deps Deps) (*Server, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("adminapi: JWT secret must be at least 32 characters")
	}

	jwtSvc := newJWTService(cfg.JWTSecret, cfg.JWTTTL)
	router := NewRouter(deps, jwtSvc)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		jwtSvc: jwtSvc,
	}, nil
}

// IssueToken mints a bearer token for the admin surface, used by the
// `idhostd token` command.
func (s *Server) IssueToken(subject string) (string, time.Time, error) {
	return s.jwtSvc.IssueToken(subject)
}

// Start serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin api listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("adminapi: server failed: %w", err)
	}
}

// Stop gracefully shuts down the server; safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}
