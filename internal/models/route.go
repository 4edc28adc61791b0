// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package models

import (
	"time"

	"github.com/callejero-app/callejero/internal/geo"
)

// Route profiles identify how a result was generated. The primary route
// uses the caller's constraints as-is; alternatives re-run the search with
// shifted weights.
const (
	RouteProfilePrimary = "primary"
	RouteProfileCalm    = "calm" // prefer-wide forced on
	RouteProfileFast    = "fast" // no avoidance weighting at all
)

// Warning codes attached to route results and session warning messages.
const (
	WarnFallbackGraph = "fallback_graph"
	WarnNoGraphPath   = "no_graph_path"
	WarnMaxWalk       = "max_walk_exceeded"
	WarnETAMiss       = "eta_miss"
	WarnHighCrowd     = "high_crowd"
	WarnRouteCut      = "route_cut"
)

// Explanation categories, matching the fixed penalty breakdown.
const (
	ExplainBase        = "base"
	ExplainOccupation  = "occupation"
	ExplainWidth       = "width"
	ExplainCrowd       = "crowd"
	ExplainRestriction = "restriction"
)

// Target is a domain entity reference resolved to coordinates by an
// external collaborator when the query carries no explicit destination.
type Target struct {
	Type string `json:"type" validate:"required,oneof=event brotherhood landmark"`
	ID   string `json:"id" validate:"required"`
}

// RouteConstraints are the caller-tunable weighting knobs of a query.
type RouteConstraints struct {
	// AvoidBulla enables crowd-avoidance weighting.
	AvoidBulla bool `json:"avoid_bulla"`
	// BullaWeight scales the avoidance penalty; defaults to 1.0 when
	// AvoidBulla is set and the weight is omitted.
	BullaWeight float64 `json:"bulla_weight,omitempty" validate:"min=0,max=1"`
	// PreferWide penalizes narrow streets.
	PreferWide bool `json:"prefer_wide"`
	// MaxWalkKm is the caller's walking-distance comfort limit. Routes
	// beyond it are still returned, with a warning.
	MaxWalkKm float64 `json:"max_walk_km,omitempty" validate:"min=0,max=50"`
	// MaxDetour bounds alternative-route cost relative to the primary
	// (1.5 means alternatives up to 50% costlier are surfaced).
	MaxDetour float64 `json:"max_detour,omitempty" validate:"min=0,max=5"`
}

// RouteQuery is a fully resolved routing question: coordinates, instant, and
// weighting parameters. The HTTP and websocket layers validate their wire
// requests and convert them into this form before the engine runs.
type RouteQuery struct {
	Origin         geo.Coordinate
	Destination    *geo.Coordinate
	Target         *Target
	Instant        time.Time
	AvoidBulla     float64 // avoidance weight, 0 disables
	PreferWide     bool
	MaxWalkKm      float64
	MaxDetourRatio float64
}

// ExplanationEntry is one ranked cost contributor of a computed route.
type ExplanationEntry struct {
	Category      string  `json:"category"`
	Label         string  `json:"label"`
	WeightSeconds float64 `json:"weight_seconds"`
	Segments      int     `json:"segments"`
}

// RouteResult is a computed walking route.
//
// Polyline always has at least two [lat, lng] points, even for the
// straight-line fallback when no graph path exists. ETASeconds is never
// below the one-minute floor.
type RouteResult struct {
	Profile          string             `json:"profile"`
	Polyline         [][]float64        `json:"polyline"`
	ETASeconds       int                `json:"eta_seconds"`
	DistanceMeters   float64            `json:"distance_meters"`
	TotalCostSeconds float64            `json:"total_cost_seconds"`
	BullaScore       float64            `json:"bulla_score"`
	Warnings         []string           `json:"warnings"`
	Explanation      []ExplanationEntry `json:"explanation"`
	Alternatives     []*RouteResult     `json:"alternatives,omitempty"`
}

// HasWarning reports whether a warning code is present on the result.
func (r *RouteResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w == code {
			return true
		}
	}
	return false
}

// HasExplanation reports whether a cost category appears in the ranked
// explanation.
func (r *RouteResult) HasExplanation(category string) bool {
	for _, e := range r.Explanation {
		if e.Category == category {
			return true
		}
	}
	return false
}
