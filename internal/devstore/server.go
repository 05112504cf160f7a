// Package devstore serves the remote project REST contract on top of the
// SQLite store, for local development and end-to-end tests.
package devstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperengineering/portfolio/internal/analytics"
	"github.com/hyperengineering/portfolio/internal/api"
	"github.com/hyperengineering/portfolio/internal/prediction"
	"github.com/hyperengineering/portfolio/internal/store"
	"github.com/hyperengineering/portfolio/internal/types"
	"github.com/hyperengineering/portfolio/internal/validation"
)

// BasePath is the API root the remote client is pointed at.
const BasePath = "/api"

const maxBodyBytes = 1 << 20

// ErrorBody is the error document returned for every failed request.
type ErrorBody struct {
	Message string                       `json:"message"`
	Errors  []validation.ValidationError `json:"errors,omitempty"`
}

// Server exposes a Store over HTTP.
type Server struct {
	store  store.Store
	apiKey string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithClock overrides the clock used for validation and analysis.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server backed by st.
func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		now:    time.Now,
		logger: slog.Default().With("component", "devstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the chi router serving the contract under BasePath.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger("devstore"))
	r.Use(api.RecoveryMiddleware)

	r.Route(BasePath, func(r chi.Router) {
		r.Use(api.AuthMiddleware(s.apiKey, denyUnauthorized))

		r.Get("/project", s.listProjects)
		r.Post("/project", s.createProject)
		r.Get("/project/{id}", s.getProject)
		r.Put("/project/{id}", s.updateProject)
		r.Delete("/project/{id}", s.deleteProject)

		r.Get("/analytics/graphics", s.graphics)
		r.Get("/analytics/{id}", s.projectAnalysis)
	})

	return r
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.decodeDraft(w, r)
	if !ok {
		return
	}

	p, err := s.store.CreateProject(r.Context(), draft)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("project created", "action", "create", "project_id", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.decodeDraft(w, r)
	if !ok {
		return
	}

	p, err := s.store.UpdateProject(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("project updated", "action", "update", "project_id", p.ID)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("project deleted", "action", "delete", "project_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) graphics(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, analytics.GraphicsFromDistribution(analytics.DistributionFromCounts(counts, total)))
}

func (s *Server) projectAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := s.store.GetProject(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	now := s.now()
	writeJSON(w, http.StatusOK, types.AnalysisResponse{
		Summary:       summarize(*p, now),
		TotalProjects: len(projects),
		GeneratedAt:   now.UTC(),
	})
}

// summarize describes one project's standing relative to now.
func summarize(p types.Project, now time.Time) string {
	if p.Status == types.StatusCompleted {
		if p.EndDate != nil {
			return fmt.Sprintf("%s was completed on %s.", p.Name, p.EndDate)
		}
		return fmt.Sprintf("%s is completed.", p.Name)
	}

	pred := prediction.Predict(p, now)
	switch {
	case p.EndDate == nil:
		return fmt.Sprintf("%s has no deadline; estimated completion %s.", p.Name, pred.EstimatedCompletionDate)
	case pred.Overdue():
		return fmt.Sprintf("%s is %d day(s) overdue.", p.Name, -pred.DaysRemaining)
	default:
		return fmt.Sprintf("%s is due in %d day(s) (%s confidence).", p.Name, pred.DaysRemaining, pred.Confidence)
	}
}

// decodeDraft reads and validates a draft, reporting every failing field.
func (s *Server) decodeDraft(w http.ResponseWriter, r *http.Request) (types.ProjectDraft, bool) {
	var draft types.ProjectDraft
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Message: "Invalid JSON body"})
		return draft, false
	}

	if errs := validation.ValidateDraftFields(draft, s.now()); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{Message: "Validation failed", Errors: errs})
		return draft, false
	}
	return draft, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorBody{Message: "Project not found."})
	case errors.Is(err, store.ErrDuplicateName):
		writeJSON(w, http.StatusConflict, ErrorBody{
			Message: "Project already exists.",
			Errors:  []validation.ValidationError{{Field: validation.FieldName, Message: "must be unique"}},
		})
	default:
		// Never expose internal error details to client
		api.LoggerFromContext(r.Context()).Error("store failure", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Message: "Server error. Please try again later."})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func denyUnauthorized(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusUnauthorized, ErrorBody{Message: "Authentication required."})
}
