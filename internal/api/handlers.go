package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/portfolio/internal/analytics"
	"github.com/hyperengineering/portfolio/internal/prediction"
	"github.com/hyperengineering/portfolio/internal/types"
	"github.com/hyperengineering/portfolio/internal/validation"
)

// maxBodyBytes bounds request bodies for project drafts.
const maxBodyBytes = 1 << 20

// ProjectCache is the subset of the project cache used by the handlers.
type ProjectCache interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, draft types.ProjectDraft) (*types.Project, error)
	Update(ctx context.Context, id string, draft types.ProjectDraft) (*types.Project, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*types.Project, error)
	Snapshot() []types.Project
	Len() int
	LastLoad() *time.Time
}

// InsightEngine produces the recommendation digest.
type InsightEngine interface {
	Summarize(ctx context.Context, projects []types.Project) types.Insight
	ProviderName() string
}

// ReportBuilder assembles dashboard reports.
type ReportBuilder interface {
	Build(ctx context.Context) types.Report
}

// ReportExporter builds and uploads a report, returning its location or ""
// on failure.
type ReportExporter interface {
	Export(ctx context.Context) string
}

// ProjectAnalyzer serves the remote per-project analysis.
type ProjectAnalyzer interface {
	ProjectAnalysis(ctx context.Context, id string) (*types.AnalysisResponse, error)
}

// Deps are the collaborators of a Handler. Exporter is optional.
type Deps struct {
	Cache    ProjectCache
	Insights InsightEngine
	Graphics analytics.Source
	Reports  ReportBuilder
	Exporter ReportExporter
	APIKey   string
	Version  string
	Now      func() time.Time
}

// Handler implements the API handlers
type Handler struct {
	cache    ProjectCache
	insights InsightEngine
	graphics analytics.Source
	reports  ReportBuilder
	exporter ReportExporter
	apiKey   string
	version  string
	now      func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		cache:    d.Cache,
		insights: d.Insights,
		graphics: d.Graphics,
		reports:  d.Reports,
		exporter: d.Exporter,
		apiKey:   d.APIKey,
		version:  d.Version,
		now:      now,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		Provider:     h.insights.ProviderName(),
		ProjectCount: h.cache.Len(),
		LastLoad:     h.cache.LastLoad(),
	})
}

// ListProjects handles GET /api/v1/projects. An optional status query
// parameter filters the cached snapshot.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects := h.cache.Snapshot()

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := types.ParseStatus(raw)
		if !status.Valid() {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", raw))
			return
		}
		filtered := make([]types.Project, 0, len(projects))
		for _, p := range projects {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}

	writeJSON(w, r, http.StatusOK, projects)
}

// CreateProject handles POST /api/v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	created, err := h.cache.Create(r.Context(), draft)
	if err != nil {
		MapError(w, r, err)
		return
	}

	LoggerFromContext(r.Context()).Info("project created",
		"action", "create",
		"project_id", created.ID,
	)
	writeJSON(w, r, http.StatusCreated, created)
}

// GetProject handles GET /api/v1/projects/{id}. The remote store is
// authoritative; the cache is not modified.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.cache.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// UpdateProject handles PUT /api/v1/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	updated, err := h.cache.Update(r.Context(), id, draft)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// DeleteProject handles DELETE /api/v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.cache.Delete(r.Context(), id); err != nil {
		MapError(w, r, err)
		return
	}

	LoggerFromContext(r.Context()).Info("project deleted",
		"action", "delete",
		"project_id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

// ReloadProjects handles POST /api/v1/projects/reload
func (h *Handler) ReloadProjects(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Load(r.Context()); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"project_count": h.cache.Len(),
		"last_load":     h.cache.LastLoad(),
	})
}

// Predictions handles GET /api/v1/predictions
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, prediction.PredictAll(h.cache.Snapshot(), h.now()))
}

// Insights handles GET /api/v1/insights. Provider failures never surface;
// the engine falls back to the local analysis.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.insights.Summarize(r.Context(), h.cache.Snapshot()))
}

// Distribution handles GET /api/v1/analytics/distribution
func (h *Handler) Distribution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, analytics.Distribution(h.cache.Snapshot()))
}

// Timeline handles GET /api/v1/analytics/timeline
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, analytics.Timeline(h.cache.Snapshot(), h.now()))
}

// Graphics handles GET /api/v1/analytics/graphics
func (h *Handler) Graphics(w http.ResponseWriter, r *http.Request) {
	g, err := h.graphics.Graphics(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	w.Header().Set("X-Analytics-Source", h.graphics.Name())
	writeJSON(w, r, http.StatusOK, g)
}

// ProjectAnalysis handles GET /api/v1/analytics/projects/{id}. Only the
// remote analytics source serves per-project analysis.
func (h *Handler) ProjectAnalysis(w http.ResponseWriter, r *http.Request) {
	analyzer, ok := h.graphics.(ProjectAnalyzer)
	if !ok {
		WriteProblem(w, r, http.StatusNotFound, "Project analysis requires the remote analytics source")
		return
	}

	a, err := analyzer.ProjectAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// Report handles GET /api/v1/report
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.reports.Build(r.Context()))
}

// ExportReport handles POST /api/v1/report/export
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		WriteProblem(w, r, http.StatusNotFound, "Report export is not configured")
		return
	}

	location := h.exporter.Export(r.Context())
	if location == "" {
		WriteProblem(w, r, http.StatusBadGateway, "Report export failed")
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"location": location})
}

// decodeDraft reads a draft from the request body. Every failing field is
// reported at once with 422; the cache repeats the ordered checks before
// any network call.
func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (types.ProjectDraft, bool) {
	var draft types.ProjectDraft

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&draft); err != nil {
		var syntaxErr *json.SyntaxError
		detail := fmt.Sprintf("Invalid JSON: %s", err.Error())
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			detail = "Malformed JSON body"
		}
		WriteProblem(w, r, http.StatusBadRequest, detail)
		return draft, false
	}

	if errs := validation.ValidateDraftFields(draft, h.now()); len(errs) > 0 {
		WriteProblemWithErrors(w, r, http.StatusUnprocessableEntity, "Request contains invalid fields", errs)
		return draft, false
	}
	return draft, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		LoggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
