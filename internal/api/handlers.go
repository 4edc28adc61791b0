// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package api exposes the HTTP and websocket surface: route queries, plan
// recovery, crowd reports, health, and the mode-calle streaming endpoint.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/callejero-app/callejero/internal/config"
	"github.com/callejero-app/callejero/internal/crowd"
	"github.com/callejero-app/callejero/internal/logging"
	"github.com/callejero-app/callejero/internal/models"
	"github.com/callejero-app/callejero/internal/routing"
	"github.com/callejero-app/callejero/internal/session"
)

// Handler carries the collaborators of every endpoint.
type Handler struct {
	engine    *routing.Engine
	registry  *session.Registry
	crowd     *crowd.Store
	cfg       *config.Config
	startTime time.Time
}

// NewHandler wires the API handlers.
func NewHandler(engine *routing.Engine, registry *session.Registry, crowdStore *crowd.Store, cfg *config.Config) *Handler {
	return &Handler{
		engine:    engine,
		registry:  registry,
		crowd:     crowdStore,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// healthStatus is the payload of the health endpoints.
type healthStatus struct {
	Status        string  `json:"status"`
	GraphNodes    int     `json:"graph_nodes"`
	FallbackGraph bool    `json:"fallback_graph"`
	Sessions      int     `json:"sessions"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"status": "alive"},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady reports whether the routing core can answer queries.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	store := h.engine.Snapshot()

	status := "ready"
	code := http.StatusOK
	if store == nil || store.NodeCount() == 0 {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, &models.APIResponse{
		Status: "success",
		Data: healthStatus{
			Status:        status,
			GraphNodes:    store.NodeCount(),
			FallbackGraph: store.UsingFallback(),
			Sessions:      h.registry.Len(),
			UptimeSeconds: time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// OptimalRoute answers POST /api/v1/routing/optimal.
func (h *Handler) OptimalRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetailed(w, http.StatusBadRequest, apiErr)
		return
	}
	if (req.Destination == nil) == (req.Target == nil) {
		respondError(w, http.StatusBadRequest, "INVALID_QUERY",
			"Exactly one of destination and target must be provided", nil)
		return
	}

	query, err := req.toQuery(time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	start := time.Now()
	result, cached, err := h.engine.ComputeRoute(r.Context(), query)
	if err != nil {
		h.respondRouteError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:     time.Now(),
			ComputeTimeMS: time.Since(start).Milliseconds(),
			Cached:        cached,
		},
	})
}

// LastRoute answers GET /api/v1/routing/last/{plan_id}: the retained route
// of a navigation plan, for recovery after a websocket drop.
func (h *Handler) LastRoute(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")
	if planID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "plan_id is required", nil)
		return
	}

	route, computedAt, ok := h.registry.LastRoute(planID)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No retained route for this plan", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"plan_id":     planID,
			"computed_at": computedAt,
			"route":       route,
		},
		Metadata: models.Metadata{Timestamp: time.Now(), Cached: true},
	})
}

// SubmitCrowdReport answers POST /api/v1/crowd/reports.
func (h *Handler) SubmitCrowdReport(w http.ResponseWriter, r *http.Request) {
	var report crowd.Report
	if err := decodeJSON(r, &report); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&report); apiErr != nil {
		respondErrorDetailed(w, http.StatusBadRequest, apiErr)
		return
	}

	switch err := h.crowd.Accept(report); {
	case err == nil:
		respondJSON(w, http.StatusAccepted, &models.APIResponse{
			Status:   "success",
			Data:     map[string]string{"status": "accepted"},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
	case errors.Is(err, crowd.ErrThrottled):
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED",
			"Too many reports from this reporter, try again later", nil)
	case errors.Is(err, crowd.ErrInvalidSeverity):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Severity must be between 1 and 5", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to record the report", err)
	}
}

// CrowdSignals answers GET /api/v1/crowd/signals with the aggregated
// signals of the current time bucket, optionally filtered to one cell
// with ?geohash=.
func (h *Handler) CrowdSignals(w http.ResponseWriter, r *http.Request) {
	signals := h.crowd.Signals(time.Now())
	if cell := r.URL.Query().Get("geohash"); cell != "" {
		filtered := signals[:0]
		for _, sig := range signals {
			if sig.Geohash == cell {
				filtered = append(filtered, sig)
			}
		}
		signals = filtered
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"signals": signals,
			"count":   len(signals),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondRouteError maps engine errors to API error codes.
func (h *Handler) respondRouteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, routing.ErrMissingDestination):
		respondError(w, http.StatusBadRequest, "INVALID_QUERY",
			"Query carries neither destination nor target", nil)
	case errors.Is(err, routing.ErrTargetUnresolved):
		respondError(w, http.StatusNotFound, "TARGET_UNRESOLVED",
			"Target reference could not be resolved to coordinates", nil)
	case errors.Is(err, routing.ErrEmptyGraph):
		respondError(w, http.StatusServiceUnavailable, "CONFIGURATION_ERROR",
			"Routing graph is not loaded", err)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Route computation failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Route computation failed", err)
	}
}

// respondErrorDetailed sends a pre-built API error preserving its details.
func respondErrorDetailed(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    apiErr,
	})
}
