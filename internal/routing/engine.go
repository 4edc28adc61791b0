// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package routing implements the time-aware pedestrian routing engine.
//
// The engine runs weighted A* over an immutable street-graph snapshot, with
// per-edge costs modulated by the restriction and occupation state at the
// query instant. Each computation produces a primary route plus up to two
// alternative profiles, a bulla congestion estimate, and a ranked cost
// explanation. Results are memoized in a short-TTL cache keyed by quantized
// query parameters and the constraint-set signature.
package routing

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/callejero-app/callejero/internal/cache"
	"github.com/callejero-app/callejero/internal/constraint"
	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/graph"
	"github.com/callejero-app/callejero/internal/logging"
	"github.com/callejero-app/callejero/internal/metrics"
	"github.com/callejero-app/callejero/internal/models"
)

// Config holds the engine's tunable defaults, applied when a query leaves
// the corresponding knob unset.
type Config struct {
	// DefaultMaxWalkKm is the walking-distance comfort limit used when the
	// query carries none. Routes beyond it still compute, with a warning.
	DefaultMaxWalkKm float64
	// DefaultMaxDetourRatio bounds alternative cost relative to the primary.
	DefaultMaxDetourRatio float64
	// ETAFloorSeconds is the minimum reported ETA. Sub-minute estimates read
	// as false precision on a crowded street.
	ETAFloorSeconds int
}

// DefaultConfig returns the production engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMaxWalkKm:      10,
		DefaultMaxDetourRatio: 1.5,
		ETAFloorSeconds:       60,
	}
}

// Dependencies are the engine's collaborators. Restrictions and Occupations
// are required; CrowdSignals, Targets, and Results are optional and degrade
// gracefully when nil.
type Dependencies struct {
	Restrictions RestrictionSource
	Occupations  OccupationSource
	CrowdSignals CrowdSignalSource
	Targets      TargetResolver
	Results      *cache.ResultCache
}

// Engine computes walking routes against an atomically swappable graph
// snapshot. Safe for concurrent use; ReloadSnapshot may run while queries
// are in flight.
type Engine struct {
	snapshot atomic.Pointer[graph.Store]
	deps     Dependencies
	cfg      Config
}

// NewEngine builds an engine over an initial snapshot. The store must be
// non-empty; graph.NewStore guarantees that by falling back to the landmark
// graph.
func NewEngine(store *graph.Store, deps Dependencies, cfg Config) (*Engine, error) {
	if store == nil || store.NodeCount() == 0 {
		return nil, ErrEmptyGraph
	}
	if deps.Restrictions == nil || deps.Occupations == nil {
		return nil, fmt.Errorf("engine: restriction and occupation sources are required")
	}
	if cfg.DefaultMaxWalkKm <= 0 {
		cfg.DefaultMaxWalkKm = DefaultConfig().DefaultMaxWalkKm
	}
	if cfg.DefaultMaxDetourRatio <= 1 {
		cfg.DefaultMaxDetourRatio = DefaultConfig().DefaultMaxDetourRatio
	}
	if cfg.ETAFloorSeconds <= 0 {
		cfg.ETAFloorSeconds = DefaultConfig().ETAFloorSeconds
	}

	e := &Engine{deps: deps, cfg: cfg}
	e.snapshot.Store(store)
	metrics.ObserveGraphSnapshot(store.NodeCount(), store.UsingFallback())

	logging.Info().
		Int("nodes", store.NodeCount()).
		Bool("fallback", store.UsingFallback()).
		Msg("Routing engine initialized")
	return e, nil
}

// ReloadSnapshot swaps in a new graph snapshot. In-flight queries finish on
// the snapshot they started with.
func (e *Engine) ReloadSnapshot(store *graph.Store) error {
	if store == nil || store.NodeCount() == 0 {
		return ErrEmptyGraph
	}
	e.snapshot.Store(store)
	metrics.ObserveGraphSnapshot(store.NodeCount(), store.UsingFallback())

	logging.Info().
		Int("nodes", store.NodeCount()).
		Bool("fallback", store.UsingFallback()).
		Msg("Graph snapshot reloaded")
	return nil
}

// Snapshot returns the current graph snapshot.
func (e *Engine) Snapshot() *graph.Store {
	return e.snapshot.Load()
}

// ActiveRestrictionIDs returns the sorted IDs of restrictions in effect at
// the instant. The session layer polls this for its change-detection
// predicate without paying for a full route computation.
func (e *Engine) ActiveRestrictionIDs(ctx context.Context, instant time.Time) ([]string, error) {
	restrictions, err := e.deps.Restrictions.ActiveRestrictions(ctx, instant)
	if err != nil {
		return nil, fmt.Errorf("resolving active restrictions: %w", err)
	}
	return constraint.NewIndex(instant, restrictions, nil).ActiveRestrictionIDs(), nil
}

// ComputeRoute answers one routing query. The boolean reports whether the
// result came from the cache.
//
// Identical queries against an unchanged constraint state return identical
// results whether or not the cache intervenes. Errors are returned only for
// unanswerable queries (no destination, unresolvable target, collaborator
// failure); an unreachable destination instead yields the straight-line
// fallback with a warning.
func (e *Engine) ComputeRoute(ctx context.Context, q models.RouteQuery) (*models.RouteResult, bool, error) {
	start := time.Now()

	store := e.snapshot.Load()
	if store.NodeCount() == 0 {
		return nil, false, ErrEmptyGraph
	}

	dest, err := e.resolveDestination(ctx, q)
	if err != nil {
		metrics.RouteComputations.WithLabelValues(models.RouteProfilePrimary, "error").Inc()
		return nil, false, err
	}

	maxWalkKm := q.MaxWalkKm
	if maxWalkKm <= 0 {
		maxWalkKm = e.cfg.DefaultMaxWalkKm
	}
	detourRatio := q.MaxDetourRatio
	if detourRatio <= 1 {
		detourRatio = e.cfg.DefaultMaxDetourRatio
	}

	restrictions, err := e.deps.Restrictions.ActiveRestrictions(ctx, q.Instant)
	if err != nil {
		metrics.RouteComputations.WithLabelValues(models.RouteProfilePrimary, "error").Inc()
		return nil, false, fmt.Errorf("resolving active restrictions: %w", err)
	}
	occupations, err := e.deps.Occupations.ActiveOccupations(ctx, q.Instant)
	if err != nil {
		metrics.RouteComputations.WithLabelValues(models.RouteProfilePrimary, "error").Inc()
		return nil, false, fmt.Errorf("resolving active occupations: %w", err)
	}
	idx := constraint.NewIndex(q.Instant, restrictions, occupations)

	var key cache.Key
	if e.deps.Results != nil {
		key = cache.NewKey(q.Origin.Lat, q.Origin.Lng, dest.Lat, dest.Lng,
			q.Instant, q.AvoidBulla, q.PreferWide, maxWalkKm, detourRatio, idx.Signature())
		if cached, ok := e.deps.Results.Get(key); ok {
			metrics.ResultCacheHits.Inc()
			return cached, true, nil
		}
		metrics.ResultCacheMisses.Inc()
	}

	primaryParams := constraint.Params{AvoidCrowding: q.AvoidBulla, PreferWide: q.PreferWide}
	primary := e.searchProfile(ctx, store, idx, q, dest, primaryParams, models.RouteProfilePrimary, maxWalkKm)

	outcome := "ok"
	if primary.HasWarning(models.WarnNoGraphPath) {
		outcome = "no_path"
	} else {
		primary.Alternatives = e.computeAlternatives(ctx, store, idx, q, dest, primaryParams, primary, maxWalkKm, detourRatio)
	}

	metrics.RouteComputations.WithLabelValues(models.RouteProfilePrimary, outcome).Inc()
	metrics.RouteComputeDuration.Observe(time.Since(start).Seconds())

	if e.deps.Results != nil {
		e.deps.Results.Put(key, primary)
	}

	logging.Debug().
		Str("profile", primary.Profile).
		Int("eta_seconds", primary.ETASeconds).
		Float64("distance_meters", primary.DistanceMeters).
		Float64("bulla", primary.BullaScore).
		Int("alternatives", len(primary.Alternatives)).
		Strs("warnings", primary.Warnings).
		Msg("Route computed")

	return primary, false, nil
}

// resolveDestination produces concrete destination coordinates from either
// the explicit destination or the target reference.
func (e *Engine) resolveDestination(ctx context.Context, q models.RouteQuery) (geo.Coordinate, error) {
	if q.Destination != nil {
		return *q.Destination, nil
	}
	if q.Target == nil {
		return geo.Coordinate{}, ErrMissingDestination
	}
	if e.deps.Targets == nil {
		return geo.Coordinate{}, fmt.Errorf("%w: no target resolver configured", ErrTargetUnresolved)
	}
	c, ok, err := e.deps.Targets.Resolve(ctx, q.Target.Type, q.Target.ID)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("resolving target %s/%s: %w", q.Target.Type, q.Target.ID, err)
	}
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("%w: %s/%s", ErrTargetUnresolved, q.Target.Type, q.Target.ID)
	}
	return c, nil
}

// computeAlternatives runs the calm and fast profiles and keeps those whose
// cost stays within the detour ratio of the primary. Profiles whose
// parameters collapse into the primary's are skipped.
func (e *Engine) computeAlternatives(ctx context.Context, store *graph.Store, idx *constraint.Index,
	q models.RouteQuery, dest geo.Coordinate, primaryParams constraint.Params,
	primary *models.RouteResult, maxWalkKm, detourRatio float64) []*models.RouteResult {

	profiles := []struct {
		name   string
		params constraint.Params
	}{
		{models.RouteProfileCalm, constraint.Params{AvoidCrowding: q.AvoidBulla, PreferWide: true}},
		{models.RouteProfileFast, constraint.Params{}},
	}

	var alternatives []*models.RouteResult
	for _, p := range profiles {
		if p.params == primaryParams {
			continue
		}
		alt := e.searchProfile(ctx, store, idx, q, dest, p.params, p.name, maxWalkKm)
		if alt.HasWarning(models.WarnNoGraphPath) {
			continue
		}
		if alt.TotalCostSeconds > detourRatio*primary.TotalCostSeconds {
			continue
		}
		metrics.RouteComputations.WithLabelValues(p.name, "ok").Inc()
		alternatives = append(alternatives, alt)
	}
	return alternatives
}

// searchProfile runs one A* pass and shapes the outcome into a RouteResult.
// When no graph path survives the active restrictions, the result degrades
// to the straight-line fallback rather than failing the query.
func (e *Engine) searchProfile(ctx context.Context, store *graph.Store, idx *constraint.Index,
	q models.RouteQuery, dest geo.Coordinate, p constraint.Params, profile string, maxWalkKm float64) *models.RouteResult {

	origin, originOK := store.NearestNode(q.Origin.Lat, q.Origin.Lng)
	goal, goalOK := store.NearestNode(dest.Lat, dest.Lng)

	var out *searchOutcome
	if originOK && goalOK && origin.ID != goal.ID {
		out = aStar(store, idx, origin.ID, goal.ID, p)
	}
	if out == nil || len(out.edgeIDs) == 0 {
		return e.directFallback(ctx, q, dest, profile, maxWalkKm)
	}

	polyline := make([][]float64, 0, len(out.nodeIDs))
	for _, id := range out.nodeIDs {
		n, ok := store.Node(id)
		if !ok {
			continue
		}
		polyline = append(polyline, []float64{n.Lat, n.Lng})
	}

	var distance float64
	for i := 1; i < len(polyline); i++ {
		distance += geo.Haversine(polyline[i-1][0], polyline[i-1][1], polyline[i][0], polyline[i][1])
	}

	result := &models.RouteResult{
		Profile:          profile,
		Polyline:         polyline,
		ETASeconds:       e.flooredETA(out.cost),
		DistanceMeters:   distance,
		TotalCostSeconds: out.cost,
		Explanation:      buildExplanation(out.breakdown, len(out.edgeIDs), out.occupiedEdges, out.widthEdges, out.blockedEdges),
	}

	if store.UsingFallback() {
		result.Warnings = append(result.Warnings, models.WarnFallbackGraph)
	}
	// Snapping origin and destination to graph nodes understates the real
	// walk, so the straight-line distance serves as a lower bound for the
	// comfort-limit check.
	directDistance := geo.Haversine(q.Origin.Lat, q.Origin.Lng, dest.Lat, dest.Lng)
	if math.Max(distance, directDistance)/1000 > maxWalkKm {
		result.Warnings = append(result.Warnings, models.WarnMaxWalk)
	}

	mid := polyline[len(polyline)/2]
	signal, hasSignal := e.lookupSignal(ctx, mid[0], mid[1], q.Instant)
	result.BullaScore = bullaScore(q.Instant, signal, hasSignal, out.occupiedEdges, out.occupiedFactorSum, len(out.edgeIDs))

	return result
}

// directFallback produces the straight-line result used when no graph path
// exists between origin and destination under the active constraints.
func (e *Engine) directFallback(ctx context.Context, q models.RouteQuery, dest geo.Coordinate, profile string, maxWalkKm float64) *models.RouteResult {
	distance := geo.Haversine(q.Origin.Lat, q.Origin.Lng, dest.Lat, dest.Lng)
	cost := distance / graph.WalkingSpeedMetersPerSecond

	midLat := (q.Origin.Lat + dest.Lat) / 2
	midLng := (q.Origin.Lng + dest.Lng) / 2
	signal, hasSignal := e.lookupSignal(ctx, midLat, midLng, q.Instant)

	warnings := []string{models.WarnNoGraphPath}
	if distance/1000 > maxWalkKm {
		warnings = append(warnings, models.WarnMaxWalk)
	}

	return &models.RouteResult{
		Profile: profile,
		Polyline: [][]float64{
			{q.Origin.Lat, q.Origin.Lng},
			{dest.Lat, dest.Lng},
		},
		ETASeconds:       e.flooredETA(cost),
		DistanceMeters:   distance,
		TotalCostSeconds: cost,
		BullaScore:       bullaScore(q.Instant, signal, hasSignal, 0, 0, 0),
		Warnings:         warnings,
		Explanation: []models.ExplanationEntry{{
			Category:      models.ExplainBase,
			Label:         explanationLabels[models.ExplainBase],
			WeightSeconds: cost,
			Segments:      1,
		}},
	}
}

// lookupSignal fetches the crowd component near a coordinate. Lookup errors
// degrade to "no signal" so a flaky aggregator never fails a route query.
func (e *Engine) lookupSignal(ctx context.Context, lat, lng float64, instant time.Time) (float64, bool) {
	if e.deps.CrowdSignals == nil {
		return 0, false
	}
	signal, err := e.deps.CrowdSignals.SignalNear(ctx, lat, lng, instant)
	if err != nil {
		logging.Warn().Err(err).Msg("Crowd signal lookup failed, using neutral component")
		return 0, false
	}
	if signal == nil {
		return 0, false
	}
	return signal.Score * signal.Confidence, true
}

func (e *Engine) flooredETA(costSeconds float64) int {
	eta := int(math.Round(costSeconds))
	if eta < e.cfg.ETAFloorSeconds {
		return e.cfg.ETAFloorSeconds
	}
	return eta
}
