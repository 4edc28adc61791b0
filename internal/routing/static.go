// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package routing

import (
	"context"
	"time"

	"github.com/callejero-app/callejero/internal/constraint"
	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/graph"
)

// StaticSources is the cold-environment implementation of every collaborator
// contract: no segments, no restrictions, no occupations, no crowd signal,
// and target resolution against the built-in landmark table. The server
// wires these by default so it is fully queryable without any dataset.
type StaticSources struct {
	Segments     []graph.Segment
	Restrictions []constraint.Restriction
	Occupations  []constraint.Occupation
}

// LoadWalkableSegments returns the configured segment snapshot, usually
// empty so the graph falls back to the landmark graph.
func (s *StaticSources) LoadWalkableSegments(_ context.Context) ([]graph.Segment, error) {
	return s.Segments, nil
}

// ActiveRestrictions filters the configured restrictions by window.
func (s *StaticSources) ActiveRestrictions(_ context.Context, instant time.Time) ([]constraint.Restriction, error) {
	var active []constraint.Restriction
	for _, r := range s.Restrictions {
		if r.ActiveAt(instant) {
			active = append(active, r)
		}
	}
	return active, nil
}

// ActiveOccupations filters the configured occupations by window.
func (s *StaticSources) ActiveOccupations(_ context.Context, instant time.Time) ([]constraint.Occupation, error) {
	var active []constraint.Occupation
	for _, o := range s.Occupations {
		if o.ActiveAt(instant) {
			active = append(active, o)
		}
	}
	return active, nil
}

// SignalNear reports no crowd signal.
func (s *StaticSources) SignalNear(_ context.Context, _, _ float64, _ time.Time) (*constraint.CrowdSignal, error) {
	return nil, nil
}

// LandmarkResolver resolves target references against the built-in landmark
// table. Unknown references resolve to ok=false so callers fall back to an
// explicit destination.
type LandmarkResolver struct {
	landmarks map[string]geo.Coordinate
}

// NewLandmarkResolver builds a resolver over the fallback landmark table.
func NewLandmarkResolver() *LandmarkResolver {
	return &LandmarkResolver{landmarks: graph.FallbackLandmarks()}
}

// Resolve looks the target ID up in the landmark table. The target type is
// not discriminating here: events and brotherhoods both resolve through
// their venue landmark in the static setup.
func (r *LandmarkResolver) Resolve(_ context.Context, _ string, targetID string) (geo.Coordinate, bool, error) {
	c, ok := r.landmarks[targetID]
	return c, ok, nil
}
