// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/answer"
	"github.com/plantops/kotae/internal/config"
	"github.com/plantops/kotae/internal/ingest"
	"github.com/plantops/kotae/internal/retrieval"
	"github.com/plantops/kotae/internal/store"
	"github.com/plantops/kotae/internal/vecindex"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	retriever   *retrieval.Orchestrator
	synthesizer *answer.Synthesizer
	ingester    *ingest.Service
	records     store.RecordStore
	index       *vecindex.Manager
	topN        int
	config      *config.ServerConfig
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. topN caps the
// relevant_logs rows returned per query.
func NewServer(
	retriever *retrieval.Orchestrator,
	synthesizer *answer.Synthesizer,
	ingester *ingest.Service,
	records store.RecordStore,
	index *vecindex.Manager,
	topN int,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		retriever:   retriever,
		synthesizer: synthesizer,
		ingester:    ingester,
		records:     records,
		index:       index,
		topN:        topN,
		config:      cfg,
		logger:      logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/records", s.handleIngestRecords)
	r.Get("/api/v1/records/{id}", s.handleGetRecord)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
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
