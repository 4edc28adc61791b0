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

// Collaborator contracts consumed by the engine. The persistence layer,
// dataset ingestion, and crowd aggregation live behind these interfaces;
// the engine only ever sees in-memory values supplied synchronously.

// SegmentSource loads the walkable street-segment snapshot.
type SegmentSource interface {
	LoadWalkableSegments(ctx context.Context) ([]graph.Segment, error)
}

// RestrictionSource lists restrictions whose window overlaps an instant.
type RestrictionSource interface {
	ActiveRestrictions(ctx context.Context, instant time.Time) ([]constraint.Restriction, error)
}

// OccupationSource lists procession occupations active at an instant.
type OccupationSource interface {
	ActiveOccupations(ctx context.Context, instant time.Time) ([]constraint.Occupation, error)
}

// CrowdSignalSource looks up the aggregated crowd signal near a coordinate.
// A (nil, nil) return is the valid "no signal" answer, not an error; the
// engine treats it as a neutral contribution.
type CrowdSignalSource interface {
	SignalNear(ctx context.Context, lat, lng float64, instant time.Time) (*constraint.CrowdSignal, error)
}

// TargetResolver maps a domain entity reference (event, brotherhood,
// landmark) to coordinates. ok=false means the reference is unknown and the
// query must carry an explicit destination instead.
type TargetResolver interface {
	Resolve(ctx context.Context, targetType, targetID string) (geo.Coordinate, bool, error)
}
