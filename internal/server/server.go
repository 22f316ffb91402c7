package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/marketdesk/internal/app"
)

// Report generation and multipart uploads can hold a response open for a while
const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 60 * time.Second
)

// Server serves the dashboard API and the quote WebSocket
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server
}

// New builds the server from the app's config and handlers
func New(application *app.App) *Server {
	s := &Server{app: application}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.addr(),
		Handler:      s.withConditionalMiddleware(s.router),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) addr() string {
	cfg := s.app.Config.Server
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// Start blocks until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.server.Addr).
		Str("url", "http://"+s.server.Addr).
		Msg("Dashboard API available")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
