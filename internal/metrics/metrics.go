// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package metrics provides Prometheus instrumentation for the routing core:
// route computations, result-cache efficiency, streaming sessions, and API
// endpoint latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Route computation metrics
	RouteComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_computations_total",
			Help: "Total number of route computations by profile and outcome",
		},
		[]string{"profile", "outcome"}, // outcome: "ok", "no_path", "error"
	)

	RouteComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "route_compute_duration_seconds",
			Help:    "Duration of full route computations including alternatives",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "street_graph_nodes",
			Help: "Number of nodes in the loaded street graph snapshot",
		},
	)

	GraphFallbackActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "street_graph_fallback_active",
			Help: "1 when the built-in landmark fallback graph is in use",
		},
	)

	// Result cache metrics
	ResultCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "route_cache_hits_total",
			Help: "Total number of route result cache hits",
		},
	)

	ResultCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "route_cache_misses_total",
			Help: "Total number of route result cache misses",
		},
	)

	// Streaming session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routing_sessions_active",
			Help: "Current number of active mode-calle websocket sessions",
		},
	)

	SessionRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_session_recomputes_total",
			Help: "Route recomputations triggered by session updates, by reason",
		},
		[]string{"reason"}, // "first_update", "moved", "restrictions_changed"
	)

	SessionSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routing_session_suppressed_updates_total",
			Help: "Session location updates that warranted no recomputation",
		},
	)

	SessionWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_session_warnings_total",
			Help: "Warning messages emitted to streaming sessions, by code",
		},
		[]string{"code"},
	)

	// Crowd signal metrics
	CrowdReportsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_reports_accepted_total",
			Help: "Crowd reports accepted for aggregation",
		},
	)

	CrowdReportsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_reports_throttled_total",
			Help: "Crowd reports rejected by the per-reporter window limit",
		},
	)

	CrowdSignalsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowd_signals_current",
			Help: "Number of aggregated crowd signals currently held",
		},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveGraphSnapshot updates the graph gauges after a snapshot load.
func ObserveGraphSnapshot(nodes int, fallback bool) {
	GraphNodes.Set(float64(nodes))
	if fallback {
		GraphFallbackActive.Set(1)
	} else {
		GraphFallbackActive.Set(0)
	}
}
