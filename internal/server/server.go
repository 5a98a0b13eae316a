// Package server is the HTTP facade over the QA pipeline, the analytics
// agents, document ingestion and drawing extraction.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"buildrag/internal/agents"
	"buildrag/internal/cache"
	"buildrag/internal/config"
	"buildrag/internal/drawing"
	"buildrag/internal/logging"
	"buildrag/internal/rag"
	"buildrag/internal/workflowlog"
	"buildrag/pkg/types"
)

// defaultTopK applies when qa.ask carries no top_k.
const defaultTopK = 5

type qaService interface {
	Ask(ctx context.Context, req rag.Request) (*types.Answer, error)
}

type agentService interface {
	WeeklyReport(ctx context.Context, projectID string, opts agents.WeeklyOptions) (*types.WeeklyReport, error)
	AnalyzeRisk(ctx context.Context, projectID string, opts agents.RiskOptions) (*types.RiskReport, error)
	AnalyzeProgress(ctx context.Context, projectID string, opts agents.AnalysisOptions) (*types.ProgressReport, error)
	AnalyzeCost(ctx context.Context, projectID string, opts agents.AnalysisOptions) (*types.CostReport, error)
	AnalyzeSafety(ctx context.Context, projectID string, opts agents.AnalysisOptions) (*types.SafetyReport, error)
	QuickScan(ctx context.Context, projectID string) (*types.QuickScan, error)
}

type drawingService interface {
	Process(ctx context.Context, bundle *drawing.Bundle) (*types.DrawingProcessingRecord, error)
}

type ingestService interface {
	IngestDocument(ctx context.Context, doc *types.Document, text string) error
	ReindexDocument(ctx context.Context, docID string) error
	DeleteDocument(ctx context.Context, docID string) error
}

type workflowReader interface {
	List(ctx context.Context, filter workflowlog.Filter) ([]types.WorkflowLogEntry, error)
}

type diagnostics interface {
	Ping(ctx context.Context) error
	GetHotQueries(ctx context.Context, limit int) []cache.HotQuery
}

// Deps carries the services the server exposes. Drawing and diagnostics may
// be nil; their routes then answer 503.
type Deps struct {
	QA        qaService
	Agents    agentService
	Drawing   drawingService
	Ingest    ingestService
	Workflows workflowReader
	Cache     diagnostics
}

// Server is the HTTP facade.
type Server struct {
	cfg    *config.ServerConfig
	deps   Deps
	router chi.Router
	http   *http.Server
	logger logging.Logger
}

// New assembles the router.
func New(cfg *config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logging.WithComponent("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	writeTimeout := time.Duration(cfg.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	r.Use(middleware.Timeout(writeTimeout))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/qa/ask", s.handleAsk)

		r.Route("/agents", func(r chi.Router) {
			r.Post("/weekly-report", s.handleWeeklyReport)
			r.Post("/risk", s.handleRiskAnalyze)
			r.Post("/progress", s.handleProgressAnalyze)
			r.Post("/cost", s.handleCostAnalyze)
			r.Post("/safety", s.handleSafetyAnalyze)
			r.Get("/quick-scan/{projectID}", s.handleQuickScan)
		})

		r.Post("/drawings/process", s.handleDrawingProcess)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.handleIngestDocument)
			r.Post("/{docID}/reindex", s.handleReindexDocument)
			r.Delete("/{docID}", s.handleDeleteDocument)
		})

		r.Get("/workflows", s.handleListWorkflows)
		r.Get("/queries/hot", s.handleHotQueries)
	})

	s.router = r
	return s
}

// Handler exposes the router; used by tests and by Start.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
