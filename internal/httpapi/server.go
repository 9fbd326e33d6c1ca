// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// Server hosts the REST surface and the websocket gateway on one
// listener.
type Server struct {
	addr       string
	handler    *Handler
	guard      *Guard
	gateway    http.Handler
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
}

// NewServer assembles the HTTP server. The gateway handler is mounted at
// /ws outside the route guard; it runs its own handshake auth.
func NewServer(addr string, handler *Handler, guard *Guard, gateway http.Handler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, oops.Errorf("handler is required")
	}
	if guard == nil {
		return nil, oops.Errorf("guard is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		handler: handler,
		guard:   guard,
		gateway: gateway,
		logger:  logger,
	}, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.handler.Register(mux)

	root := http.NewServeMux()
	root.Handle("/", s.guard.Middleware(mux))
	if s.gateway != nil {
		root.Handle("/ws", s.gateway)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return oops.With("operation", "shutdown http server").Wrap(err)
		}
		s.logger.Info("http server stopped")
		return nil
	case serveErr := <-errCh:
		if serveErr != nil {
			return oops.With("operation", "serve http").Wrap(serveErr)
		}
		return nil
	}
}

// Addr returns the bound listen address, or empty before Run.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
