/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging (status-dependent level)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/lots, /api/items/*       Stock
  /api/compositions/*           Recipes and assemblies
  /api/feasibility              Read-only checks
  /api/production, /api/assembly Commits
  /api/actions/*                History and frozen costs
  /api/export*, /api/import     Backup
  /api/scenarios/*              Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/lots", h.ReceiveLot)

		r.Route("/items/{key}", func(r chi.Router) {
			r.Get("/lots", h.ListLots)
			r.Get("/available", h.GetAvailable)
		})

		r.Route("/compositions", func(r chi.Router) {
			r.Get("/", h.ListCompositions)
			r.Post("/validate", h.ValidateCompositionEdit)
			r.Get("/{key}", h.GetComposition)
			r.Put("/{key}", h.SaveComposition)
			r.Get("/{key}/cost", h.GetCompositionCost)
		})

		r.Post("/feasibility", h.CheckFeasibility)
		r.Post("/production", h.CommitProduction)
		r.Post("/assembly", h.CommitAssembly)

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.ListActions)
			r.Get("/{id}", h.GetAction)
			r.Get("/{id}/cost", h.GetActionCost)
		})

		r.Get("/export", h.ExportJSON)
		r.Get("/export.xlsx", h.ExportWorkbook)
		r.Post("/import", h.Import)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// RequestLogger logs one line per request. 5xx logs at error, 4xx at warn.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var event *zerolog.Event
			switch {
			case status >= 500:
				event = log.Error()
			case status >= 400:
				event = log.Warn()
			default:
				event = log.Info()
			}
			event.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
