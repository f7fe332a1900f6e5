// Package server provides the HTTP server for the metastage review API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/agentstation/metastage/pkg/logging"
	"github.com/agentstation/metastage/pkg/session"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	session *session.Session
	logger  *zerolog.Logger
	config  Config
	httpSrv *http.Server
}

// New creates a server over the given review session.
func New(sess *session.Session, cfg Config, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		session: sess,
		logger:  logger,
		config:  cfg,
	}
}

// Handler returns the configured http.Handler with the middleware chain
// applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// ListenAndServe starts the HTTP server and blocks until it stops or the
// context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Review API listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down review API")
	return s.httpSrv.Shutdown(ctx)
}
