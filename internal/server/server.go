// Package server provides the HTTP API for ruiji.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/search"
	"github.com/hyperjump/ruiji/internal/storage"
)

// Server is the HTTP server for the ruiji API.
type Server struct {
	service *search.Service
	runs    storage.RunLog
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server over a query service. runs may be nil, in which case
// the ingest run endpoints answer 501.
func NewServer(service *search.Service, runs storage.RunLog, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service: service,
		runs:    runs,
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	timeout := 60 * time.Second
	if s.config != nil && s.config.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(s.config.RequestTimeoutSeconds) * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/documents/{position}", s.handleGetDocument)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/ingest/runs", s.handleListRuns)
	r.Get("/api/v1/ingest/runs/latest", s.handleLatestRun)
	r.Get("/api/v1/ingest/runs/{id}", s.handleGetRun)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops. A stop through Stop
// returns nil.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
