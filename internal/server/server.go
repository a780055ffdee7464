// Package server provides the HTTP API for Chie.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/genbatech/chie/internal/analyze"
	"github.com/genbatech/chie/internal/config"
	"github.com/genbatech/chie/internal/ingest"
	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/search"
	"github.com/genbatech/chie/internal/store"
	"github.com/genbatech/chie/internal/vector"
)

// Server is the HTTP server for the Chie API.
type Server struct {
	ingester     *ingest.Ingester
	engine       *search.Engine
	correlator   *analyze.Correlator
	store        store.Store
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingester *ingest.Ingester,
	engine *search.Engine,
	correlator *analyze.Correlator,
	st store.Store,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingester:     ingester,
		engine:       engine,
		correlator:   correlator,
		store:        st,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/knowledge", s.handleUpload)
	r.Get("/api/v1/knowledge", s.handleListDocuments)
	r.Get("/api/v1/knowledge/search", s.handleSearchDocuments)
	r.Get("/api/v1/knowledge/{id}", s.handleGetDocument)
	r.Delete("/api/v1/knowledge/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/diffs/{logicalType}", s.handleListDiffs)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/analyze", s.handleAnalyze)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
