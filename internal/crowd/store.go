// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package crowd collects raw crowd-density reports from attendees and
// aggregates them into the spatial signals the routing engine consumes.
//
// Reports are bucketed into a spatial grid of roughly 100m cells (three
// coordinate decimals) and ten-minute time buckets. Aggregation is
// deliberately simple: a cell's score is the mean reported severity scaled
// to 0-1, and its confidence grows with the report count so a single loud
// report never dominates a quiet street.
package crowd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/callejero-app/callejero/internal/constraint"
	"github.com/callejero-app/callejero/internal/metrics"
)

const (
	// BucketDuration is the time-bucket width for aggregation. Matches the
	// route cache bucket so a signal never flips mid-cache-entry.
	BucketDuration = 10 * time.Minute

	// cellPrecision is the number of coordinate decimals defining a grid
	// cell. Three decimals is roughly 100m of latitude, about one street
	// block in the old town.
	cellPrecision = 3

	// retention keeps a few past buckets so lookups near a bucket boundary
	// still resolve.
	retention = 3 * BucketDuration

	// Severity bounds for one report.
	MinSeverity = 1
	MaxSeverity = 5

	// Per-reporter throttle across all cells.
	reporterWindowLimit = 6

	// Confidence ramp: a lone report yields 0.4, saturating at 1.0 from
	// five reports on.
	confidenceBase      = 0.25
	confidencePerReport = 0.15
)

// ErrThrottled is returned when a reporter exceeds their report budget for
// the sliding window.
var ErrThrottled = errors.New("crowd: reporter over the report limit")

// ErrInvalidSeverity is returned for severities outside [1, 5].
var ErrInvalidSeverity = errors.New("crowd: severity out of range")

// Report is one raw crowd-density observation from an attendee. The note
// is free text for operators and never feeds the aggregation.
type Report struct {
	ReporterID string    `json:"reporter_id" validate:"required"`
	Lat        float64   `json:"lat" validate:"latitude"`
	Lng        float64   `json:"lng" validate:"longitude"`
	Severity   int       `json:"severity" validate:"min=1,max=5"`
	Note       string    `json:"note,omitempty" validate:"max=280"`
	ReportedAt time.Time `json:"reported_at"`
}

// cellKey identifies one grid cell, e.g. "37.392:-5.995".
type cellKey string

func cellFor(lat, lng float64) cellKey {
	return cellKey(fmt.Sprintf("%.*f:%.*f", cellPrecision, roundTo(lat, cellPrecision), cellPrecision, roundTo(lng, cellPrecision)))
}

func roundTo(v float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(v*shift) / shift
}

// bucketStart truncates an instant to its aggregation bucket.
func bucketStart(instant time.Time) time.Time {
	return instant.UTC().Truncate(BucketDuration)
}

// cellBucket holds the reports of one cell and time bucket, at most one per
// reporter: a reporter re-reporting the same cell within a bucket revises
// their earlier severity instead of stacking.
type cellBucket struct {
	severities map[string]int // reporter ID → severity
}

// Store is the in-memory crowd report grid. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	grid     map[cellKey]map[time.Time]*cellBucket
	limiters map[string]*slidingWindow // reporter ID → throttle window
}

// NewStore creates an empty crowd report store.
func NewStore() *Store {
	return &Store{
		grid:     make(map[cellKey]map[time.Time]*cellBucket),
		limiters: make(map[string]*slidingWindow),
	}
}

// Accept validates and records one report. Returns ErrThrottled when the
// reporter is over their sliding-window budget and ErrInvalidSeverity for
// out-of-range severities.
func (s *Store) Accept(r Report) error {
	if r.Severity < MinSeverity || r.Severity > MaxSeverity {
		return fmt.Errorf("%w: %d", ErrInvalidSeverity, r.Severity)
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now()
	}

	w := s.limiter(r.ReporterID)
	if w.count() >= reporterWindowLimit {
		metrics.CrowdReportsThrottled.Inc()
		return ErrThrottled
	}
	w.incr()

	cell := cellFor(r.Lat, r.Lng)
	bucket := bucketStart(r.ReportedAt)

	s.mu.Lock()
	buckets, ok := s.grid[cell]
	if !ok {
		buckets = make(map[time.Time]*cellBucket)
		s.grid[cell] = buckets
	}
	cb, ok := buckets[bucket]
	if !ok {
		cb = &cellBucket{severities: make(map[string]int)}
		buckets[bucket] = cb
	}
	cb.severities[r.ReporterID] = r.Severity
	s.mu.Unlock()

	metrics.CrowdReportsAccepted.Inc()
	return nil
}

// SignalNear returns the aggregated signal for the grid cell containing the
// coordinate at the instant's time bucket, or (nil, nil) when the cell has
// no reports for that bucket.
func (s *Store) SignalNear(_ context.Context, lat, lng float64, instant time.Time) (*constraint.CrowdSignal, error) {
	cell := cellFor(lat, lng)
	bucket := bucketStart(instant)

	s.mu.RLock()
	defer s.mu.RUnlock()

	cb, ok := s.grid[cell][bucket]
	if !ok || len(cb.severities) == 0 {
		return nil, nil
	}
	sig := aggregate(cell, bucket, cb)
	return &sig, nil
}

// Signals returns every aggregated signal for the instant's time bucket,
// sorted by geohash for stable output.
func (s *Store) Signals(instant time.Time) []constraint.CrowdSignal {
	bucket := bucketStart(instant)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var signals []constraint.CrowdSignal
	for cell, buckets := range s.grid {
		if cb, ok := buckets[bucket]; ok && len(cb.severities) > 0 {
			signals = append(signals, aggregate(cell, bucket, cb))
		}
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Geohash < signals[j].Geohash })
	return signals
}

// Prune drops buckets past retention and idle reporter limiters. Returns the
// number of live signals remaining for the current bucket.
func (s *Store) Prune(now time.Time) int {
	cutoff := bucketStart(now).Add(-retention)
	current := bucketStart(now)

	s.mu.Lock()
	live := 0
	for cell, buckets := range s.grid {
		for bucket := range buckets {
			if bucket.Before(cutoff) {
				delete(buckets, bucket)
			}
		}
		if len(buckets) == 0 {
			delete(s.grid, cell)
			continue
		}
		if cb, ok := buckets[current]; ok && len(cb.severities) > 0 {
			live++
		}
	}
	for id, w := range s.limiters {
		if w.idle() {
			delete(s.limiters, id)
		}
	}
	s.mu.Unlock()

	metrics.CrowdSignalsCurrent.Set(float64(live))
	return live
}

func (s *Store) limiter(reporterID string) *slidingWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.limiters[reporterID]
	if !ok {
		w = newSlidingWindow(BucketDuration, 10)
		s.limiters[reporterID] = w
	}
	return w
}

// aggregate folds a cell bucket into its published signal. Caller holds at
// least the read lock.
func aggregate(cell cellKey, bucket time.Time, cb *cellBucket) constraint.CrowdSignal {
	var sum int
	for _, severity := range cb.severities {
		sum += severity
	}
	n := len(cb.severities)
	avg := float64(sum) / float64(n)

	return constraint.CrowdSignal{
		Geohash:     string(cell),
		BucketStart: bucket,
		BucketEnd:   bucket.Add(BucketDuration),
		Score:       math.Min(1, avg/float64(MaxSeverity)),
		Confidence:  math.Min(1, confidenceBase+confidencePerReport*float64(n)),
		Reports:     n,
	}
}
