// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package graph

import "github.com/callejero-app/callejero/internal/geo"

// landmark is one hand-authored node of the built-in Seville center graph.
type landmark struct {
	id    string
	name  string
	coord geo.Coordinate
	// widthMeters is a rough estimate of the surrounding streets, so the
	// prefer-wide weighting stays meaningful on the fallback graph.
	widthMeters float64
}

var fallbackLandmarks = []landmark{
	{"catedral", "Catedral de Sevilla", geo.Coordinate{Lat: 37.3862, Lng: -5.9926}, 6.0},
	{"giralda", "La Giralda", geo.Coordinate{Lat: 37.3857, Lng: -5.9929}, 3.0},
	{"alcazar", "Real Alcázar", geo.Coordinate{Lat: 37.3839, Lng: -5.9914}, 4.0},
	{"plaza_espana", "Plaza de España", geo.Coordinate{Lat: 37.3765, Lng: -5.9868}, 8.0},
	{"torre_oro", "Torre del Oro", geo.Coordinate{Lat: 37.3825, Lng: -5.9960}, 6.0},
	{"triana", "Triana", geo.Coordinate{Lat: 37.3870, Lng: -6.0020}, 5.0},
	{"macarena", "Basílica de la Macarena", geo.Coordinate{Lat: 37.4008, Lng: -5.9900}, 5.0},
	{"maestranza", "Real Maestranza", geo.Coordinate{Lat: 37.3838, Lng: -5.9972}, 6.0},
	{"encarnacion", "Plaza de la Encarnación", geo.Coordinate{Lat: 37.3936, Lng: -5.9924}, 7.0},
	{"campana", "La Campana", geo.Coordinate{Lat: 37.3921, Lng: -5.9968}, 2.5},
	{"alameda", "Alameda de Hércules", geo.Coordinate{Lat: 37.3997, Lng: -5.9958}, 8.0},
}

// fallbackLinks lists the bidirectional connections of the landmark graph.
var fallbackLinks = [][2]string{
	{"catedral", "giralda"},
	{"giralda", "encarnacion"},
	{"encarnacion", "campana"},
	{"campana", "alameda"},
	{"alameda", "macarena"},
	{"catedral", "alcazar"},
	{"alcazar", "plaza_espana"},
	{"catedral", "torre_oro"},
	{"torre_oro", "triana"},
	{"catedral", "maestranza"},
	{"maestranza", "triana"},
	{"campana", "maestranza"},
	{"encarnacion", "catedral"},
}

// newFallbackStore builds the hand-authored landmark graph used when the
// segment snapshot is empty. Not real street data: every result computed on
// it must surface a fallback warning.
func newFallbackStore() *Store {
	s := &Store{
		nodes:     make(map[string]Node),
		adjacency: make(map[string][]Arc),
		edges:     make(map[string]Edge),
		fallback:  true,
	}

	byID := make(map[string]landmark, len(fallbackLandmarks))
	for _, lm := range fallbackLandmarks {
		s.nodes[lm.id] = Node{ID: lm.id, Lat: lm.coord.Lat, Lng: lm.coord.Lng}
		s.order = append(s.order, lm.id)
		byID[lm.id] = lm
	}

	for _, link := range fallbackLinks {
		a := byID[link[0]]
		b := byID[link[1]]
		length := geo.Haversine(a.coord.Lat, a.coord.Lng, b.coord.Lat, b.coord.Lng)
		width := a.widthMeters
		if b.widthMeters < width {
			width = b.widthMeters
		}

		edgeID := a.id + "-" + b.id
		s.addEdge(Edge{ID: edgeID, From: a.id, To: b.id, LengthMeters: length, WidthMeters: width})
		s.addEdge(Edge{ID: edgeID, From: b.id, To: a.id, LengthMeters: length, WidthMeters: width})
	}

	return s
}

// FallbackLandmarks returns the id → coordinate table of the built-in graph,
// used by the static target resolver so event and brotherhood references
// remain resolvable without a loaded dataset.
func FallbackLandmarks() map[string]geo.Coordinate {
	out := make(map[string]geo.Coordinate, len(fallbackLandmarks))
	for _, lm := range fallbackLandmarks {
		out[lm.id] = lm.coord
	}
	return out
}
