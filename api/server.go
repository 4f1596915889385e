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
  /api/progress        Grant achievement progress
  /api/redeem          Redeem rewards
  /api/state/*         Derived user state
  /api/events/*        Raw ledger (audit)
  /api/catalog/*       Program definitions
  /api/healthz         Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/progress", h.SubmitProgress)
		r.Post("/redeem", h.SubmitRedemption)

		r.Get("/state/{userID}", h.GetState)
		r.Get("/events/{userID}", h.GetEvents)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/achievements", h.ListAchievements)
			r.Get("/badges", h.ListBadges)
			r.Get("/tiers", h.ListTiers)
			r.Get("/rewards", h.ListRewards)
		})

		r.Get("/healthz", h.Healthz)
	})

	return r
}
