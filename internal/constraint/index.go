// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package constraint resolves time-windowed restrictions, procession
// occupations, and crowd signals into per-edge routing costs.
//
// A restriction is a hard closure: any edge whose midpoint falls inside an
// active restriction's extent is impassable for the query instant. An
// occupation is a finite penalty: a procession reserving a street slows it
// down proportionally to its crowd factor but never blocks it outright.
package constraint

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/graph"
)

// Penalty weights in seconds. Tuned against Holy Week crowd behavior: an
// occupied street costs about two extra minutes at full crowd factor, and
// narrow streets lose up to around a minute under the prefer-wide weighting.
const (
	OccupationPenaltySeconds    = 140.0
	CrowdAvoidancePenaltySecs   = 90.0
	WidthPenaltyPerMeterSeconds = 80.0
	ComfortableWidthMeters      = 3.5
)

// Restriction is a hard closure of an area for a time window, e.g. an
// official route cordon. The spatial extent is a bounding box; start and end
// are inclusive. The persistence layer rejects windows with start > end
// before they reach this package.
type Restriction struct {
	ID       string
	MinLat   float64
	MinLng   float64
	MaxLat   float64
	MaxLng   float64
	StartsAt time.Time
	EndsAt   time.Time
	Reason   string
}

// ActiveAt reports whether the restriction window contains the instant,
// inclusive on both ends.
func (r Restriction) ActiveAt(instant time.Time) bool {
	return !instant.Before(r.StartsAt) && !instant.After(r.EndsAt)
}

// Contains reports whether a coordinate lies inside the restriction extent.
func (r Restriction) Contains(c geo.Coordinate) bool {
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat && c.Lng >= r.MinLng && c.Lng <= r.MaxLng
}

// Occupation is a procession-segment reservation: a temporary claim on one
// street edge carrying a 0–1 crowd factor for a time window.
type Occupation struct {
	EdgeID      string
	StartsAt    time.Time
	EndsAt      time.Time
	CrowdFactor float64
}

// ActiveAt reports whether the occupation window contains the instant.
func (o Occupation) ActiveAt(instant time.Time) bool {
	return !instant.Before(o.StartsAt) && !instant.After(o.EndsAt)
}

// CrowdSignal is an aggregated crowd-density observation for a spatial
// bucket and a [start, end) time bucket.
type CrowdSignal struct {
	Geohash     string    `json:"geohash"`
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	Reports     int       `json:"reports_count"`
}

// Params are the caller-chosen weighting knobs for one query.
type Params struct {
	// AvoidCrowding scales the extra occupation penalty; zero disables
	// crowd avoidance entirely.
	AvoidCrowding float64
	// PreferWide penalizes streets narrower than ComfortableWidthMeters.
	PreferWide bool
}

// Breakdown accumulates cost by category. A fixed record rather than an
// open-ended map so explanation ranking is exhaustive.
type Breakdown struct {
	Base       float64
	Occupation float64
	Width      float64
	Crowd      float64
}

// Add accumulates another breakdown into this one.
func (b *Breakdown) Add(other Breakdown) {
	b.Base += other.Base
	b.Occupation += other.Occupation
	b.Width += other.Width
	b.Crowd += other.Crowd
}

// Index resolves the restriction and occupation state applicable to a
// single query instant. Build one per query; it is immutable afterwards and
// safe to share across the primary and alternative searches.
type Index struct {
	instant      time.Time
	restrictions []Restriction
	occupations  map[string]float64 // edge ID → collapsed crowd factor
}

// NewIndex filters the supplied restrictions and occupations down to those
// active at the instant. Multiple occupations targeting the same edge
// collapse to the maximum crowd factor, so congestion is never
// underestimated.
func NewIndex(instant time.Time, restrictions []Restriction, occupations []Occupation) *Index {
	idx := &Index{
		instant:     instant,
		occupations: make(map[string]float64),
	}

	for _, r := range restrictions {
		if r.ActiveAt(instant) {
			idx.restrictions = append(idx.restrictions, r)
		}
	}

	for _, o := range occupations {
		if !o.ActiveAt(instant) {
			continue
		}
		if o.CrowdFactor > idx.occupations[o.EdgeID] {
			idx.occupations[o.EdgeID] = o.CrowdFactor
		}
	}

	return idx
}

// ActiveRestrictions returns the restrictions in effect at the index
// instant.
func (idx *Index) ActiveRestrictions() []Restriction {
	return idx.restrictions
}

// ActiveRestrictionIDs returns the sorted ID set of active restrictions,
// used by the session protocol's change detection.
func (idx *Index) ActiveRestrictionIDs() []string {
	ids := make([]string, 0, len(idx.restrictions))
	for _, r := range idx.restrictions {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

// OccupationFactor returns the collapsed crowd factor for an edge, zero when
// the edge is unoccupied.
func (idx *Index) OccupationFactor(edgeID string) float64 {
	return idx.occupations[edgeID]
}

// OccupationCount reports how many edges carry an active occupation.
func (idx *Index) OccupationCount() int {
	return len(idx.occupations)
}

// EdgeCost computes the traversal cost of an edge under this index.
//
// Returns blocked=true when the edge midpoint lies inside any active
// restriction extent. That is a hard closure, not a penalty; the search
// must skip the edge entirely. Otherwise the returned breakdown sums to
// the finite cost in seconds.
func (idx *Index) EdgeCost(store *graph.Store, edge graph.Edge, baseSeconds float64, p Params) (float64, Breakdown, bool) {
	mid := store.Midpoint(edge)
	for _, r := range idx.restrictions {
		if r.Contains(mid) {
			return 0, Breakdown{}, true
		}
	}

	bd := Breakdown{Base: baseSeconds}

	if factor := idx.occupations[edge.ID]; factor > 0 {
		bd.Occupation = OccupationPenaltySeconds * factor
		if p.AvoidCrowding > 0 {
			bd.Crowd = CrowdAvoidancePenaltySecs * factor * p.AvoidCrowding
		}
	}

	if p.PreferWide && edge.WidthMeters < ComfortableWidthMeters {
		bd.Width = (ComfortableWidthMeters - edge.WidthMeters) * WidthPenaltyPerMeterSeconds
	}

	return bd.Base + bd.Occupation + bd.Crowd + bd.Width, bd, false
}

// Signature returns a deterministic hash of the active restriction and
// occupation state. Cache keys embed it so entries invalidate themselves the
// instant the constraint set changes, without explicit invalidation
// plumbing.
func (idx *Index) Signature() string {
	h := fnv.New64a()

	for _, id := range idx.ActiveRestrictionIDs() {
		h.Write([]byte("r:" + id + ";"))
	}

	edgeIDs := make([]string, 0, len(idx.occupations))
	for id := range idx.occupations {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Strings(edgeIDs)
	for _, id := range edgeIDs {
		fmt.Fprintf(h, "o:%s=%.4f;", id, idx.occupations[id])
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
