/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Loaders:    Per-request default-tariff loader

ROUTE GROUPS:
  /api/health               Store liveness
  /api/sessions/*           Billing pipeline
  /api/enterprises/*        Budget consolidation
  /api/plans/*              Plan lifecycle
  /api/organizations/*      Slot conflicts and saves
  /api/alerts/*             Budget alert sweep
  /api/scenarios/*          Demo scenarios
  /*                        Landing page

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(LoaderMiddleware(h.Store))

		r.Get("/health", h.Health)

		// Billing routes
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/{id}/pipeline", h.GetPipeline)
			r.Get("/{id}/pipeline.xlsx", h.ExportPipeline)
		})

		// Budget routes
		r.Route("/enterprises", func(r chi.Router) {
			r.Get("/", h.ListEnterprises)
			r.Get("/{id}/budget", h.GetBudget)
			r.Get("/{id}/budget.xlsx", h.ExportBudget)
			r.Get("/{id}/budget/annual", h.GetAnnualBudget)
			r.Get("/{id}/budget/agencies", h.GetAgencyBudget)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/{id}/archive", h.ArchivePlan)
		})

		// Schedule routes
		r.Route("/organizations", func(r chi.Router) {
			r.Post("/{id}/slots/conflicts", h.CheckConflicts)
			r.Post("/{id}/slots", h.SaveSlot)
		})

		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/sweep", h.TriggerSweep)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Formation Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Formation Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/enterprises">/api/enterprises</a> - List enterprises</li>
<li><a href="/api/alerts">/api/alerts</a> - Latest budget alert sweep</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
