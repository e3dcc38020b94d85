// Copyright 2025 Poiesic Systems
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

// Package server exposes the project store over HTTP.
//
// Routes:
//
//	POST /add         {secret, data}      ingest one tagged page (data is a JSON string)
//	GET  /query?q=                        ranked search, up to the query limit
//	GET  /preview?uuid=                   full page at a position
//	POST /set_extras  {secret, id, ...}   replace embedding and side scores
//	GET  /similar?id=&limit=              nearest neighbours by embedding
//	GET  /status                          record counts and uptime
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/poiesic/projectsearch/core"
)

// DefaultQueryLimit is the number of results /query returns.
const DefaultQueryLimit = 500

// Backend is the service the HTTP layer fronts.
type Backend interface {
	IngestJSON(ctx context.Context, data []byte) (int, bool, error)
	Search(ctx context.Context, query string, k int) []core.SearchResult
	Preview(ctx context.Context, position int) (core.Page, error)
	SetExtras(ctx context.Context, position int, computed *core.ComputedData) error
	Similar(ctx context.Context, position, k int) ([]core.SearchResult, error)
	Len() int
	PendingCount() int
}

// Server serves the HTTP API.
type Server struct {
	backend       Backend
	secret        string
	allowedOrigin string
	queryLimit    int
	staticDir     string
	logger        *slog.Logger
	started       time.Time
}

// Option configures a Server.
type Option func(*Server) error

// WithSecret sets the shared secret required by write endpoints.
func WithSecret(secret string) Option {
	return func(s *Server) error {
		if secret == "" {
			return ErrSecretRequired
		}
		s.secret = secret
		return nil
	}
}

// WithAllowedOrigin sets the CORS allowed origin.
// Default is "http://localhost:6552".
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) error {
		s.allowedOrigin = origin
		return nil
	}
}

// WithQueryLimit sets how many results /query returns.
func WithQueryLimit(limit int) Option {
	return func(s *Server) error {
		if limit < 1 {
			return errors.New("query limit must be at least 1")
		}
		s.queryLimit = limit
		return nil
	}
}

// WithStaticDir serves the front end from dir at "/".
func WithStaticDir(dir string) Option {
	return func(s *Server) error {
		s.staticDir = dir
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a server. A secret is required.
func New(backend Backend, opts ...Option) (*Server, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	s := &Server{
		backend:       backend,
		allowedOrigin: "http://localhost:6552",
		queryLimit:    DefaultQueryLimit,
		logger:        slog.Default(),
		started:       time.Now(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.secret == "" {
		return nil, ErrSecretRequired
	}
	s.logger = s.logger.With("component", "http")
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /add", s.handleAdd)
	mux.HandleFunc("GET /query", s.handleQuery)
	mux.HandleFunc("GET /preview", s.handlePreview)
	mux.HandleFunc("POST /set_extras", s.handleSetExtras)
	mux.HandleFunc("GET /similar", s.handleSimilar)
	mux.HandleFunc("GET /status", s.handleStatus)
	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}

	return s.cors(s.logRequests(mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
