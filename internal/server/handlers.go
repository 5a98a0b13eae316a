package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"buildrag/internal/agents"
	"buildrag/internal/drawing"
	"buildrag/internal/projectdb"
	"buildrag/internal/rag"
	"buildrag/internal/workflowlog"
	"buildrag/pkg/types"
)

type askRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	UseRerank bool   `json:"use_rerank,omitempty"`
	UseGraph  bool   `json:"use_graph,omitempty"`
	SkipCache bool   `json:"skip_cache,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	answer, err := s.deps.QA.Ask(r.Context(), rag.Request{
		Query:     req.Query,
		TopK:      topK,
		ProjectID: req.ProjectID,
		UseRerank: req.UseRerank,
		UseGraph:  req.UseGraph,
		SkipCache: req.SkipCache,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

type weeklyReportRequest struct {
	ProjectID string `json:"project_id"`
	Format    string `json:"format,omitempty"`
	IncludeAI bool   `json:"include_ai,omitempty"`
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	var req weeklyReportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProjectID == "" {
		s.writeError(w, &rag.InvalidRequestError{Field: "project_id", Reason: "project_id cannot be empty"})
		return
	}
	if req.Format != "" && req.Format != "json" && req.Format != "markdown" {
		s.writeError(w, &rag.InvalidRequestError{Field: "format", Reason: "format must be json or markdown"})
		return
	}

	report, err := s.deps.Agents.WeeklyReport(r.Context(), req.ProjectID, agents.WeeklyOptions{
		IncludeAIInsights: req.IncludeAI,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(agents.RenderMarkdown(report)))
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

type riskAnalyzeRequest struct {
	ProjectID      string `json:"project_id"`
	HistoricalDays int    `json:"historical_days,omitempty"`
	IncludeAI      bool   `json:"include_ai,omitempty"`
}

func (s *Server) handleRiskAnalyze(w http.ResponseWriter, r *http.Request) {
	var req riskAnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProjectID == "" {
		s.writeError(w, &rag.InvalidRequestError{Field: "project_id", Reason: "project_id cannot be empty"})
		return
	}
	report, err := s.deps.Agents.AnalyzeRisk(r.Context(), req.ProjectID, agents.RiskOptions{
		HistoricalDays:    req.HistoricalDays,
		IncludeAIInsights: req.IncludeAI,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

type analysisRequest struct {
	ProjectID  string `json:"project_id"`
	WindowDays int    `json:"window_days,omitempty"`
	IncludeAI  bool   `json:"include_ai,omitempty"`
}

func (s *Server) analysisOptions(w http.ResponseWriter, r *http.Request) (string, agents.AnalysisOptions, bool) {
	var req analysisRequest
	if !s.decode(w, r, &req) {
		return "", agents.AnalysisOptions{}, false
	}
	if req.ProjectID == "" {
		s.writeError(w, &rag.InvalidRequestError{Field: "project_id", Reason: "project_id cannot be empty"})
		return "", agents.AnalysisOptions{}, false
	}
	return req.ProjectID, agents.AnalysisOptions{
		WindowDays:        req.WindowDays,
		IncludeAIInsights: req.IncludeAI,
	}, true
}

func (s *Server) handleProgressAnalyze(w http.ResponseWriter, r *http.Request) {
	projectID, opts, ok := s.analysisOptions(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Agents.AnalyzeProgress(r.Context(), projectID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCostAnalyze(w http.ResponseWriter, r *http.Request) {
	projectID, opts, ok := s.analysisOptions(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Agents.AnalyzeCost(r.Context(), projectID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSafetyAnalyze(w http.ResponseWriter, r *http.Request) {
	projectID, opts, ok := s.analysisOptions(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Agents.AnalyzeSafety(r.Context(), projectID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleQuickScan(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	scan, err := s.deps.Agents.QuickScan(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scan)
}

type drawingProcessRequest struct {
	Name      string   `json:"name"`
	FileRef   string   `json:"file_ref"`
	ProjectID string   `json:"project_id,omitempty"`
	Pages     []string `json:"pages"`
	Tables    []struct {
		Caption string     `json:"caption,omitempty"`
		Rows    [][]string `json:"rows"`
	} `json:"tables,omitempty"`
}

type drawingProcessResponse struct {
	DocumentID    string `json:"document_id"`
	Status        string `json:"status"`
	EntityCount   int    `json:"entity_count"`
	RelationCount int    `json:"relation_count"`
	GraphSynced   bool   `json:"graph_synced"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) handleDrawingProcess(w http.ResponseWriter, r *http.Request) {
	if s.deps.Drawing == nil {
		s.writeErrorCode(w, http.StatusServiceUnavailable, "graph_unavailable",
			"drawing extraction requires the graph store")
		return
	}
	var req drawingProcessRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Pages) == 0 {
		s.writeError(w, &rag.InvalidRequestError{Field: "pages", Reason: "at least one page of text is required"})
		return
	}

	doc := types.NewDocument(req.Name, types.DocTypeDrawing, req.FileRef)
	doc.ProjectID = req.ProjectID

	bundle := &drawing.Bundle{Document: doc, Pages: req.Pages}
	for _, t := range req.Tables {
		bundle.Tables = append(bundle.Tables, drawing.Table{Caption: t.Caption, Rows: t.Rows})
	}

	record, err := s.deps.Drawing.Process(r.Context(), bundle)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, drawingProcessResponse{
		DocumentID:    record.DocumentID,
		Status:        string(record.Status),
		EntityCount:   record.EntityCount,
		RelationCount: record.RelationCount,
		GraphSynced:   record.GraphSynced,
		Error:         record.Error,
	})
}

type ingestDocumentRequest struct {
	Name            string `json:"name"`
	DocType         string `json:"doc_type"`
	PermissionLevel int    `json:"permission_level,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
	SourcePath      string `json:"source_path,omitempty"`
	Text            string `json:"text"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestDocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	docType := types.DocType(req.DocType)
	switch docType {
	case types.DocTypeRegulation, types.DocTypeProject, types.DocTypeContract,
		types.DocTypeDrawing, types.DocTypeOther:
	default:
		s.writeError(w, &rag.InvalidRequestError{Field: "doc_type", Reason: "unknown document type"})
		return
	}
	if req.Text == "" {
		s.writeError(w, &rag.InvalidRequestError{Field: "text", Reason: "text cannot be empty"})
		return
	}

	doc := types.NewDocument(req.Name, docType, req.SourcePath)
	doc.PermissionLevel = req.PermissionLevel
	doc.ProjectID = req.ProjectID

	if err := s.deps.Ingest.IngestDocument(r.Context(), doc, req.Text); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleReindexDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.deps.Ingest.ReindexDocument(r.Context(), docID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"document_id": docID, "status": "completed"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.deps.Ingest.DeleteDocument(r.Context(), docID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := workflowlog.Filter{
		ProjectID:    q.Get("project_id"),
		WorkflowType: types.WorkflowType(q.Get("workflow_type")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, &rag.InvalidRequestError{Field: "limit", Reason: "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, &rag.InvalidRequestError{Field: "from", Reason: "from must be RFC3339"})
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, &rag.InvalidRequestError{Field: "to", Reason: "to must be RFC3339"})
			return
		}
		filter.To = t
	}

	entries, err := s.deps.Workflows.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []types.WorkflowLogEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": entries})
}

func (s *Server) handleHotQueries(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.writeErrorCode(w, http.StatusServiceUnavailable, "cache_unavailable", "query statistics require redis")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, &rag.InvalidRequestError{Field: "limit", Reason: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	queries := s.deps.Cache.GetHotQueries(r.Context(), limit)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"queries": queries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]string{}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(r.Context()); err != nil {
			components["redis"] = "down"
			status = "degraded"
		} else {
			components["redis"] = "up"
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": components,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

// errorEnvelope is the uniform failure payload.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var invalid *rag.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		s.writeErrorCode(w, http.StatusBadRequest, "invalid_request", invalid.Error())
	case errors.Is(err, projectdb.ErrProjectNotFound):
		s.writeErrorCode(w, http.StatusNotFound, "project_not_found", projectdb.ErrProjectNotFound.Error())
	case errors.Is(err, projectdb.ErrNotFound):
		s.writeErrorCode(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		s.logger.Error("request failed", "error", err)
		s.writeErrorCode(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encoding failed", "error", err)
	}
}
