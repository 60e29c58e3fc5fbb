package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"metric-agent/config"
	"metric-agent/formula"
	"metric-agent/models"
	"metric-agent/resolver"
	"metric-agent/services"
)

// APIHandler handles HTTP API requests
type APIHandler struct {
	app *App
	cfg *config.Config
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(app *App, cfg *config.Config) *APIHandler {
	return &APIHandler{app: app, cfg: cfg}
}

// handleHealth returns the health status of the application
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
			"llm":      "unknown",
		},
	}
	svc := status["services"].(map[string]string)

	if h.app.repo != nil {
		if err := h.app.repo.Health(r.Context()); err == nil {
			svc["database"] = "connected"
		} else {
			svc["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		svc["database"] = "not_configured"
		status["status"] = "degraded"
	}

	if h.app.parser != nil {
		svc["llm"] = "configured"
	} else {
		svc["llm"] = "not_configured"
	}

	status["circuit_breakers"] = services.GetGlobalRegistry().Status()

	h.jsonResponse(w, status)
}

// handleQuery resolves one metric query
func (h *APIHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" && req.Metric == "" && req.Company == "" {
		h.jsonError(w, "question or explicit query fields are required", http.StatusBadRequest)
		return
	}

	resp, err := h.app.ResolveQuery(r.Context(), req)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, resp)
}

// handleContribution decomposes a formula metric's change between two periods
func (h *APIHandler) handleContribution(w http.ResponseWriter, r *http.Request) {
	var req models.ContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Company == "" || req.Metric == "" {
		h.jsonError(w, "company and metric are required", http.StatusBadRequest)
		return
	}
	if req.BaseYear == 0 || req.NewYear == 0 || !req.BaseQuarter.Valid() || !req.NewQuarter.Valid() {
		h.jsonError(w, "base and new periods must carry a year and a quarter (Q1-Q4)", http.StatusBadRequest)
		return
	}

	resp, err := h.app.Contribution(r.Context(), req)
	if err != nil {
		var missing *formula.MissingBaseMetricError
		switch {
		case errors.Is(err, resolver.ErrNoFormula):
			h.jsonError(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &missing):
			h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.jsonResponse(w, resp)
}

// handleListMetrics returns the metric catalog
func (h *APIHandler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.app.ListMetrics(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"metrics": metrics,
		"count":   len(metrics),
	})
}

// handleListCompanies returns the company catalog
func (h *APIHandler) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.app.ListCompanies(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}

// handleRefreshCatalog forces a catalog reload
func (h *APIHandler) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	metricCount, companyCount, err := h.app.RefreshCatalog(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"status":    "refreshed",
		"metrics":   metricCount,
		"companies": companyCount,
	})
}

// handleLLMPing checks the language-model provider
func (h *APIHandler) handleLLMPing(w http.ResponseWriter, r *http.Request) {
	if err := h.app.PingLLM(r.Context()); err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.jsonResponse(w, map[string]string{"status": "ok"})
}

// Helper functions

func (h *APIHandler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *APIHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
