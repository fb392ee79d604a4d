// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server runs the HTTP listener the services mount on.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	MAX_TCP_PORT = 1<<16 - 1

	defaultIOTimeout = 10 * time.Second
	shutdownGrace    = 10 * time.Second
)

type (
	// RegistrableService mounts its routes on the shared mux and names the
	// middlewares it needs around the whole mux.
	RegistrableService interface {
		Register(mux *http.ServeMux)
		Middlewares() []func(http.Handler) http.Handler
	}

	Server struct {
		server *http.Server
		mux    *http.ServeMux
		host   string
		port   uint16

		middlewares []func(http.Handler) http.Handler
		services    []RegistrableService
	}

	ServerOptions func(*Server)
)

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

func WithReadTimeout(t time.Duration) ServerOptions {
	return func(s *Server) { s.server.ReadTimeout = orDefault(t, defaultIOTimeout) }
}

func WithWriteTimeout(t time.Duration) ServerOptions {
	return func(s *Server) { s.server.WriteTimeout = orDefault(t, defaultIOTimeout) }
}

// WithIdleTimeout bounds keep-alive connections. Zero falls back to the read
// timeout, as net/http does.
func WithIdleTimeout(t time.Duration) ServerOptions {
	return func(s *Server) { s.server.IdleTimeout = t }
}

func WithServices(svcs ...RegistrableService) ServerOptions {
	return func(s *Server) { s.services = append(s.services, svcs...) }
}

// WithGlobalMiddlewares wraps the whole mux. The first middleware given is
// the outermost, and all of them run before any service middleware.
func WithGlobalMiddlewares(mw ...func(http.Handler) http.Handler) ServerOptions {
	return func(s *Server) { s.middlewares = append(s.middlewares, mw...) }
}

// New builds the server and mounts every service. An empty host binds all
// interfaces.
func New(host string, port int, opts ...ServerOptions) (*Server, error) {
	if port <= 0 || port > MAX_TCP_PORT {
		return nil, fmt.Errorf("server: bad port %d", port)
	}
	if host == "" {
		slog.Warn("empty host, binding to all interfaces")
		host = "0.0.0.0"
	}

	s := &Server{
		host:   host,
		port:   uint16(port),
		mux:    http.NewServeMux(),
		server: &http.Server{Addr: net.JoinHostPort(host, strconv.Itoa(port))},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	for _, svc := range s.services {
		svc.Register(s.mux)
		s.middlewares = append(s.middlewares, svc.Middlewares()...)
		slog.Info("registered service", slog.String("type", fmt.Sprintf("%T", svc)))
	}

	var handler http.Handler = s.mux
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		handler = s.middlewares[i](handler)
	}
	s.server.Handler = handler
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done or the listener fails, then drains in-flight
// requests for up to shutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	failed := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "started server", slog.String("host", s.host), slog.Int("port", int(s.port)))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-failed:
		slog.ErrorContext(ctx, "server error", slog.Any("error", serveErr))
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down...")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := s.server.Shutdown(drainCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}
