package main

import (
	"net/http"
	"time"

	"metric-agent/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *APIHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second))
	r.Use(corsMiddleware(cfg.HTTP.CORSAllowedOrigins))

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.handleHealth)

		// Query resolution
		r.Route("/metrics", func(r chi.Router) {
			r.Post("/query", h.handleQuery)
			r.Post("/contribution", h.handleContribution)
		})

		// Catalogs
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/metrics", h.handleListMetrics)
			r.Get("/companies", h.handleListCompanies)
			r.Post("/refresh", h.handleRefreshCatalog)
		})

		// Language model
		r.Get("/llm/ping", h.handleLLMPing)
	})

	return r
}

// corsMiddleware returns CORS middleware with the specified allowed origins
func corsMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
