// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package api

import (
	"fmt"
	"time"

	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/models"
)

// Point is a coordinate pair on the wire.
type Point struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// RouteRequest is the body of POST /api/v1/routing/optimal. Exactly one of
// Destination and Target must be set; When defaults to the server's now.
type RouteRequest struct {
	Origin      Point                    `json:"origin" validate:"required"`
	Destination *Point                   `json:"destination,omitempty"`
	Target      *models.Target           `json:"target,omitempty"`
	When        string                   `json:"when,omitempty"`
	Constraints *models.RouteConstraints `json:"constraints,omitempty"`
}

// toQuery converts the wire request into an engine query. The destination/
// target exclusivity check happens before this is called.
func (req *RouteRequest) toQuery(now time.Time) (models.RouteQuery, error) {
	instant := now
	if req.When != "" {
		parsed, err := time.Parse(time.RFC3339, req.When)
		if err != nil {
			return models.RouteQuery{}, fmt.Errorf("when must be RFC3339: %w", err)
		}
		instant = parsed
	}

	q := models.RouteQuery{
		Origin:  geo.Coordinate{Lat: req.Origin.Lat, Lng: req.Origin.Lng},
		Target:  req.Target,
		Instant: instant,
	}
	if req.Destination != nil {
		q.Destination = &geo.Coordinate{Lat: req.Destination.Lat, Lng: req.Destination.Lng}
	}
	if c := req.Constraints; c != nil {
		if c.AvoidBulla {
			q.AvoidBulla = c.BullaWeight
			if q.AvoidBulla == 0 {
				q.AvoidBulla = 1.0
			}
		}
		q.PreferWide = c.PreferWide
		q.MaxWalkKm = c.MaxWalkKm
		q.MaxDetourRatio = c.MaxDetour
	}
	return q, nil
}
