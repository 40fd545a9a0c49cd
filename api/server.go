/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the operator frontend

ROUTE GROUPS:
  /api/tenants/*    Tenant references and per-tenant views
  /api/cycles/*     Billing cycle lifecycle
  /api/payments/*   Payment recording and corrections
  /health           Liveness probe

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Tenant routes
		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", h.ListTenants)
			r.Put("/{id}", h.UpsertTenant)
			r.Get("/{id}/cycles", h.ListCyclesForTenant)
			r.Get("/{id}/payments", h.ListPaymentsForTenant)
			r.Post("/{id}/payments/auto", h.AutoAllocatePayment)
			r.Get("/{id}/audit", h.AuditTenant)
			r.Post("/{id}/repair", h.RepairTenant)
		})

		// Cycle routes
		r.Route("/cycles", func(r chi.Router) {
			r.Post("/", h.CreateCycle)
			r.Get("/{id}", h.GetCycle)
			r.Put("/{id}/readings", h.UpdateReadings)
			r.Delete("/{id}", h.DeleteCycle)
			r.Get("/{id}/payments", h.ListPaymentsForCycle)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.RecordPayment)
			r.Put("/{id}", h.UpdatePayment)
			r.Delete("/{id}", h.DeletePayment)
		})
	})

	return r
}
