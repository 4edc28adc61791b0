// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package routing

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/graph"
)

// segmentRecord is the JSON shape of one street segment in a dataset file.
// Geometry is a WKT LINESTRING in lng-lat order; only the endpoints define
// graph connectivity.
type segmentRecord struct {
	ID           string  `json:"id"`
	Geometry     string  `json:"geometry"`
	LengthMeters float64 `json:"length_m"`
	WidthMeters  float64 `json:"width_m"`
	Walkable     bool    `json:"walkable"`
}

// FileSegmentSource loads the walkable graph from a JSON dataset file. An
// empty path is the valid "no dataset" configuration yielding no segments,
// which in turn activates the landmark fallback graph.
type FileSegmentSource struct {
	Path string
}

// LoadWalkableSegments reads and parses the dataset file.
func (f *FileSegmentSource) LoadWalkableSegments(_ context.Context) ([]graph.Segment, error) {
	if f.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading segment dataset %s: %w", f.Path, err)
	}

	var records []segmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing segment dataset %s: %w", f.Path, err)
	}

	segments := make([]graph.Segment, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("segment %d in %s has no id", i, f.Path)
		}
		line, err := geo.ParseLineWKT(rec.Geometry)
		if err != nil {
			return nil, fmt.Errorf("segment %s geometry: %w", rec.ID, err)
		}
		if len(line) < 2 {
			return nil, fmt.Errorf("segment %s geometry has %d points, need at least 2", rec.ID, len(line))
		}

		length := rec.LengthMeters
		if length <= 0 {
			for j := 1; j < len(line); j++ {
				length += geo.Haversine(line[j-1].Lat, line[j-1].Lng, line[j].Lat, line[j].Lng)
			}
		}

		segments = append(segments, graph.Segment{
			ID:           rec.ID,
			From:         line[0],
			To:           line[len(line)-1],
			LengthMeters: length,
			WidthMeters:  rec.WidthMeters,
			Walkable:     rec.Walkable,
		})
	}
	return segments, nil
}
