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

ROUTE GROUPS:
  /api/statements/*     Statement generation, edits, lifecycle
  /api/listings/*       Listing catalog and fee import
  /api/owners           Owner catalog
  /api/groups           Listing group catalog
  /api/schedule/*       Scheduler audit trail and manual trigger
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
		// Statement routes
		r.Route("/statements", func(r chi.Router) {
			r.Get("/", h.ListStatements)
			r.Post("/generate", h.GenerateStatement)
			r.Get("/jobs/{id}", h.GetJob)
			r.Get("/{id}", h.GetStatement)
			r.Put("/{id}/edit", h.EditStatement)
			r.Delete("/{id}", h.DeleteStatement)
			r.Post("/{id}/reconfigure", h.ReconfigureStatement)
			r.Post("/{id}/finalize", h.FinalizeStatement)
			r.Post("/{id}/send", h.SendStatement)
			r.Put("/{id}/payout-status", h.UpdatePayoutStatus)
			r.Put("/{id}/notes", h.UpdateNotes)
		})

		// Listing routes
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.ListListings)
			r.Post("/import-fees", h.ImportFees)
		})

		r.Get("/owners", h.ListOwners)
		r.Get("/groups", h.ListGroups)

		// Schedule routes
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/runs", h.ListScheduleRuns)
			r.Post("/trigger", h.TriggerSchedule)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
