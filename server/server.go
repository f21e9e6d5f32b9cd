// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/monitor"
)

const defaultMaxBodyBytes = 1 << 20

// Runner answers one query.
type Runner interface {
	Run(ctx context.Context, query string) (*core.AnswerResult, error)
}

// Config configures a new Server instance.
type Config struct {
	Engine         Runner
	Collector      monitor.Collector
	MetricsHandler http.Handler // Optional: served at GET /metrics
	Logger         *logger.Logger
	AllowedOrigins []string
	MaxBodyBytes   int64
}

type Server struct {
	engine         Runner
	collector      monitor.Collector
	metrics        http.Handler
	logger         *logger.Logger
	allowedOrigins []string
	maxBodyBytes   int64
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	collector := cfg.Collector
	if collector == nil {
		collector = monitor.NewNoOpCollector()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		engine:         cfg.Engine,
		collector:      collector,
		metrics:        cfg.MetricsHandler,
		logger:         log,
		allowedOrigins: origins,
		maxBodyBytes:   maxBody,
	}
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /prompt", s.handlePrompt)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.corsMiddleware(requestIDMiddleware(mux))
}
