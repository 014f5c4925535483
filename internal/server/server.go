// Package server provides the HTTP API for knowledgehub.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/config"
	"github.com/hyperjump/knowledgehub/internal/confluence"
	"github.com/hyperjump/knowledgehub/internal/extractor"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// DefaultRunTimeout bounds a run triggered over HTTP.
const DefaultRunTimeout = 15 * time.Minute

// Runner performs one extraction pass.
type Runner interface {
	Run(ctx context.Context) (*extractor.Report, error)
}

// WikiSyncer performs one wiki sync.
type WikiSyncer interface {
	Sync(ctx context.Context) (*confluence.SyncReport, error)
}

// Server is the HTTP server for the knowledgehub API.
type Server struct {
	store      storage.Store
	runner     Runner
	wiki       WikiSyncer
	config     *config.ServerConfig
	dbPath     string
	runTimeout time.Duration
	logger     *zap.Logger
	server     *http.Server

	// runMu serializes extraction and wiki runs within the process.
	runMu      sync.Mutex
	lastMu     sync.RWMutex
	lastReport *extractor.Report
	lastWiki   *confluence.SyncReport
}

// Option configures a Server.
type Option func(*Server)

// WithWikiSyncer enables POST /api/v1/wiki/sync.
func WithWikiSyncer(w WikiSyncer) Option {
	return func(s *Server) { s.wiki = w }
}

// WithDatabasePath reports the size of the SQLite database in status responses.
func WithDatabasePath(path string) Option {
	return func(s *Server) { s.dbPath = path }
}

// WithRunTimeout overrides DefaultRunTimeout.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(store storage.Store, runner Runner, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		store:      store,
		runner:     runner,
		config:     cfg,
		runTimeout: DefaultRunTimeout,
		logger:     utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/articles", s.handleListArticles)
		r.Get("/api/v1/articles/{id}", s.handleGetArticle)
		r.Post("/api/v1/export", s.handleExport)
	})

	// Runs outlive the request timeout; they are bounded by runTimeout instead.
	r.Post("/api/v1/extract", s.handleExtract)
	r.Post("/api/v1/wiki/sync", s.handleWikiSync)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
