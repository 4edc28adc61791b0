// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package graph holds the in-memory walkable street graph used by the
// routing engine.
//
// A Store is built once from a snapshot of street segments and is read-only
// afterwards; concurrent route searches share it without locking. Reloading
// a snapshot means building a fresh Store and swapping the reference, never
// mutating one in place.
package graph

import (
	"fmt"

	"github.com/callejero-app/callejero/internal/geo"
)

const (
	// WalkingSpeedMetersPerSecond is the nominal crowd-slowed urban
	// pedestrian pace used to convert edge length to base time cost.
	WalkingSpeedMetersPerSecond = 1.3

	// FallbackWidthMeters is assumed for segments with no width estimate.
	FallbackWidthMeters = 3.0

	// nodeKeyPrecision is the number of decimal digits used when merging
	// segment endpoints into nodes. Five digits is roughly one meter of
	// latitude, tight enough to keep distinct corners apart.
	nodeKeyPrecision = 5
)

// Segment is one walkable street segment from a snapshot, carrying its own
// endpoint coordinates. Both travel directions are derived from it.
type Segment struct {
	ID           string
	From         geo.Coordinate
	To           geo.Coordinate
	LengthMeters float64
	WidthMeters  float64 // 0 means unknown
	Walkable     bool
}

// Node is a graph vertex. Immutable once the Store is built.
type Node struct {
	ID  string
	Lat float64
	Lng float64
}

// Edge is one directed traversal of a segment. The two directions of a
// bidirectional segment share the same ID.
type Edge struct {
	ID           string
	From         string
	To           string
	LengthMeters float64
	WidthMeters  float64
}

// Arc is an adjacency entry: a reachable neighbor, the edge taken, and the
// base walking-time cost in seconds.
type Arc struct {
	To          string
	EdgeID      string
	CostSeconds float64
}

// Store is an immutable walkable graph snapshot.
type Store struct {
	nodes     map[string]Node
	order     []string // insertion order, for deterministic nearest-node ties
	adjacency map[string][]Arc
	edges     map[string]Edge // one representative direction per edge ID
	fallback  bool
}

// NewStore builds a graph from a street-segment snapshot. Endpoints sharing
// a rounded coordinate key are merged into one node, and every walkable
// segment contributes two directed edges.
//
// An empty (or entirely non-walkable) snapshot falls back to the built-in
// landmark graph so the system stays queryable in a cold environment;
// results computed on the fallback graph must be flagged, see UsingFallback.
func NewStore(segments []Segment) *Store {
	s := &Store{
		nodes:     make(map[string]Node),
		adjacency: make(map[string][]Arc),
		edges:     make(map[string]Edge),
	}

	for _, seg := range segments {
		if !seg.Walkable {
			continue
		}
		s.addSegment(seg)
	}

	if len(s.nodes) == 0 {
		return newFallbackStore()
	}
	return s
}

func (s *Store) addSegment(seg Segment) {
	from := s.internNode(seg.From)
	to := s.internNode(seg.To)
	if from == to {
		// Degenerate segment collapsing onto a single node.
		return
	}

	length := seg.LengthMeters
	if length <= 0 {
		length = geo.Haversine(seg.From.Lat, seg.From.Lng, seg.To.Lat, seg.To.Lng)
	}

	width := seg.WidthMeters
	if width <= 0 {
		width = FallbackWidthMeters
	}

	s.addEdge(Edge{ID: seg.ID, From: from, To: to, LengthMeters: length, WidthMeters: width})
	s.addEdge(Edge{ID: seg.ID, From: to, To: from, LengthMeters: length, WidthMeters: width})
}

// internNode returns the node ID for a coordinate, creating the node on
// first sight. Node identity is the coordinate rounded to nodeKeyPrecision
// digits.
func (s *Store) internNode(c geo.Coordinate) string {
	key := fmt.Sprintf("%.*f:%.*f", nodeKeyPrecision, c.Lat, nodeKeyPrecision, c.Lng)
	if _, ok := s.nodes[key]; !ok {
		s.nodes[key] = Node{ID: key, Lat: c.Lat, Lng: c.Lng}
		s.order = append(s.order, key)
	}
	return key
}

func (s *Store) addEdge(e Edge) {
	s.adjacency[e.From] = append(s.adjacency[e.From], Arc{
		To:          e.To,
		EdgeID:      e.ID,
		CostSeconds: e.LengthMeters / WalkingSpeedMetersPerSecond,
	})
	if _, ok := s.edges[e.ID]; !ok {
		s.edges[e.ID] = e
	}
}

// NearestNode returns the node closest to the given coordinate by haversine
// distance, scanning linearly in insertion order so ties resolve to the
// first-encountered node. Returns false only for an empty store.
//
// The linear scan is deliberate: snapshots are city-center scale, not road
// network scale. A spatial index becomes necessary before that changes.
func (s *Store) NearestNode(lat, lng float64) (Node, bool) {
	var best Node
	bestDist := -1.0

	for _, id := range s.order {
		node := s.nodes[id]
		d := geo.Haversine(lat, lng, node.Lat, node.Lng)
		if bestDist < 0 || d < bestDist {
			best = node
			bestDist = d
		}
	}

	return best, bestDist >= 0
}

// Adjacency returns the outgoing arcs of a node. The returned slice is
// shared and must not be mutated.
func (s *Store) Adjacency(nodeID string) []Arc {
	return s.adjacency[nodeID]
}

// Node returns a node by ID.
func (s *Store) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Edge returns one representative direction of an edge by ID. Width and
// midpoint are identical for both directions.
func (s *Store) Edge(id string) (Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// Edges returns every distinct edge ID's representative record.
func (s *Store) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}

// NodeCount reports the number of nodes in the snapshot.
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// UsingFallback reports whether this store is the built-in landmark graph
// rather than real street data.
func (s *Store) UsingFallback() bool {
	return s.fallback
}

// Midpoint returns the geographic midpoint of an edge, used for restriction
// containment and crowd-signal lookups.
func (s *Store) Midpoint(e Edge) geo.Coordinate {
	from := s.nodes[e.From]
	to := s.nodes[e.To]
	return geo.Coordinate{Lat: (from.Lat + to.Lat) / 2, Lng: (from.Lng + to.Lng) / 2}
}
