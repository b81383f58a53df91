// Package server provides the HTTP API for semidx.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/config"
	"github.com/personaldrive/semidx/internal/files"
	"github.com/personaldrive/semidx/internal/index"
	"github.com/personaldrive/semidx/internal/storage"
)

// Server is the HTTP server for the semidx API.
type Server struct {
	manager *index.Manager
	files   *files.Service
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	manager *index.Manager,
	fileSvc *files.Service,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		manager: manager,
		files:   fileSvc,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
}

// Routes builds the router. Exposed separately so tests can exercise the
// handler chain without a listening socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/documents", s.handleIndexDocument)
		r.Get("/stats", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Post("/search", s.handleSearch)
			r.Post("/upload/presign", s.handlePresignUpload)
			r.Post("/upload/complete", s.handleCompleteUpload)
			r.Get("/files", s.handleListFiles)
			r.Get("/files/{id}", s.handleGetFile)
			r.Patch("/files/{id}", s.handleUpdateFile)
			r.Delete("/files/{id}", s.handleDeleteFile)
			r.Get("/files/{id}/download", s.handleDownloadFile)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
