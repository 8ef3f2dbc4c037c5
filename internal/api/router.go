// Package api wires the capital HTTP handlers onto a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wyat/capital/internal/api/handlers"
	"github.com/wyat/capital/internal/api/middleware"
)

// Config holds the router dependencies.
type Config struct {
	Capital   *handlers.CapitalHandler
	Documents *handlers.DocumentsHandler
	Jobs      *handlers.JobsHandler

	APIKey         string
	FrontendOrigin string
	Log            zerolog.Logger
}

// NewRouter builds the HTTP handler. /health is public; everything under
// /api requires the API key.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recovery(cfg.Log),
		middleware.RequestID,
		middleware.Logger(cfg.Log),
		middleware.CORS(cfg.FrontendOrigin),
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.APIKey))

		if h := cfg.Capital; h != nil {
			r.Route("/capital", func(r chi.Router) {
				r.Post("/import", h.Import)
				r.Get("/transactions", h.ListTransactions)
				r.Get("/transactions/{id}", h.GetTransaction)
				r.Get("/envelopes", h.ListEnvelopes)
				r.Post("/envelopes/period", h.StartPeriod)
				r.Get("/envelopes/{id}", h.GetEnvelope)
				r.Post("/envelopes/{id}/credit", h.Credit)
				r.Post("/envelopes/{id}/debit", h.Debit)
			})
		}
		if h := cfg.Documents; h != nil {
			r.Post("/documents", h.Upload)
			r.Post("/documents/{id}/extract", h.Extract)
		}
		if h := cfg.Jobs; h != nil {
			r.Get("/jobs", h.ListJobs)
			r.Get("/jobs/{id}", h.GetJob)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}
