package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger("api"))
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (auth required when an API key is configured)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey, nil))

			r.Get("/projects", h.ListProjects)
			r.Post("/projects", h.CreateProject)
			r.Post("/projects/reload", h.ReloadProjects)
			r.Get("/projects/{id}", h.GetProject)
			r.Put("/projects/{id}", h.UpdateProject)
			r.Delete("/projects/{id}", h.DeleteProject)

			r.Get("/predictions", h.Predictions)
			r.Get("/insights", h.Insights)

			r.Get("/analytics/distribution", h.Distribution)
			r.Get("/analytics/timeline", h.Timeline)
			r.Get("/analytics/graphics", h.Graphics)
			r.Get("/analytics/projects/{id}", h.ProjectAnalysis)

			r.Get("/report", h.Report)
			r.Post("/report/export", h.ExportReport)
		})
	})

	return r
}
