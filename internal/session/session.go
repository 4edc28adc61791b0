// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package session implements the mode-calle streaming protocol: a walker
// opens a session with a fixed destination, streams location updates, and
// receives route updates and warnings as conditions change.
//
// The session core is transport-independent. The websocket layer decodes
// frames and feeds them in; everything about when to recompute, what to
// suppress, and which warnings to raise lives here and is tested without a
// network.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/logging"
	"github.com/callejero-app/callejero/internal/metrics"
	"github.com/callejero-app/callejero/internal/models"
)

// State is the session lifecycle position.
type State int

const (
	StateAwaitingHello State = iota
	StateActive
	StateClosed
)

// Thresholds of the update and warning policy.
const (
	// MovementThresholdMeters is the minimum displacement from the last
	// recomputation point before movement alone justifies a new route.
	MovementThresholdMeters = 80.0

	// ETAMissSeconds flags routes unlikely to arrive in comfortable time.
	ETAMissSeconds = 20 * 60

	// HighCrowdThreshold flags routes through dense crowd conditions.
	HighCrowdThreshold = 0.75
)

// Config tunes per-session behavior.
type Config struct {
	// UpdatesPerSecond caps location-update processing; excess updates are
	// silently dropped.
	UpdatesPerSecond float64
	// UpdateBurst is the limiter burst size.
	UpdateBurst int
	// MovementThresholdMeters overrides the default displacement gate.
	MovementThresholdMeters float64
}

// DefaultConfig returns the production session policy.
func DefaultConfig() Config {
	return Config{
		UpdatesPerSecond:        1,
		UpdateBurst:             3,
		MovementThresholdMeters: MovementThresholdMeters,
	}
}

// RouteComputer is the slice of the routing engine a session needs.
type RouteComputer interface {
	ComputeRoute(ctx context.Context, q models.RouteQuery) (*models.RouteResult, bool, error)
	ActiveRestrictionIDs(ctx context.Context, instant time.Time) ([]string, error)
}

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("session: closed")

// ErrNoDestination is returned when a hello carries neither destination nor
// target.
var ErrNoDestination = errors.New("session: hello carries no destination or target")

// Session is one walker's streaming navigation session. Safe for concurrent
// use, though the websocket layer serializes reads per connection anyway.
type Session struct {
	id      string
	planID  string
	engine  RouteComputer
	limiter *rate.Limiter
	cfg     Config
	now     func() time.Time

	mu          sync.Mutex
	state       State
	destination *geo.Coordinate
	target      *models.Target
	avoidBulla  float64
	preferWide  bool
	maxWalkKm   float64
	maxDetour   float64

	hasFix             bool
	lastFix            geo.Coordinate
	lastRestrictionIDs []string
	lastRoute          *models.RouteResult
	lastComputedAt     time.Time
}

// New opens a session from a hello message. The returned ack carries the
// assigned session and plan IDs; the session is immediately active.
func New(engine RouteComputer, hello Hello, cfg Config) (*Session, HelloAck, error) {
	if hello.Destination == nil && hello.Target == nil {
		return nil, HelloAck{}, ErrNoDestination
	}
	if cfg.UpdatesPerSecond <= 0 {
		cfg.UpdatesPerSecond = DefaultConfig().UpdatesPerSecond
	}
	if cfg.UpdateBurst <= 0 {
		cfg.UpdateBurst = DefaultConfig().UpdateBurst
	}
	if cfg.MovementThresholdMeters <= 0 {
		cfg.MovementThresholdMeters = MovementThresholdMeters
	}

	planID := hello.PlanID
	if planID == "" {
		planID = uuid.NewString()
	}

	s := &Session{
		id:      uuid.NewString(),
		planID:  planID,
		engine:  engine,
		limiter: rate.NewLimiter(rate.Limit(cfg.UpdatesPerSecond), cfg.UpdateBurst),
		cfg:     cfg,
		now:     time.Now,
		state:   StateActive,
		target:  hello.Target,
	}
	if hello.Destination != nil {
		s.destination = &geo.Coordinate{Lat: hello.Destination.Lat, Lng: hello.Destination.Lng}
	}
	if c := hello.Constraints; c != nil {
		if c.AvoidBulla {
			s.avoidBulla = c.BullaWeight
			if s.avoidBulla == 0 {
				s.avoidBulla = 1.0
			}
		}
		s.preferWide = c.PreferWide
		s.maxWalkKm = c.MaxWalkKm
		s.maxDetour = c.MaxDetour
	}

	logging.Debug().Str("session_id", s.id).Str("plan_id", planID).Msg("Session opened")
	ack := HelloAck{
		Type:            TypeHelloAck,
		SessionID:       s.id,
		PlanID:          planID,
		ProtocolVersion: ProtocolVersion,
		ServerTime:      s.now(),
	}
	return s, ack, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// PlanID returns the navigation plan identifier.
func (s *Session) PlanID() string { return s.planID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Heartbeat acknowledges liveness, echoing the client timestamp. Returns
// ErrSessionClosed once closed.
func (s *Session) Heartbeat(sentAt time.Time) (HeartbeatAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return HeartbeatAck{}, ErrSessionClosed
	}
	return HeartbeatAck{Type: TypeHeartbeatAck, SentAt: sentAt}, nil
}

// Close terminates the session. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

// HandleLocation processes one location update.
//
// A nil update with no error means the update was absorbed without a
// recomputation: either the rate limiter dropped it, or the walker has not
// moved past the displacement threshold and the restriction set is
// unchanged. Recomputation happens on the first fix, on real movement, and
// whenever the active restriction set differs from the one the last route
// was computed under.
func (s *Session) HandleLocation(ctx context.Context, lat, lng float64) (*RouteUpdate, []Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, nil, ErrSessionClosed
	}
	if !s.limiter.Allow() {
		metrics.SessionSuppressed.Inc()
		return nil, nil, nil
	}

	now := s.now()
	fix := geo.Coordinate{Lat: lat, Lng: lng}

	restrictionIDs, err := s.engine.ActiveRestrictionIDs(ctx, now)
	if err != nil {
		return nil, nil, fmt.Errorf("checking restriction state: %w", err)
	}

	reason := ""
	switch {
	case !s.hasFix:
		reason = ReasonFirstUpdate
	case geo.Haversine(s.lastFix.Lat, s.lastFix.Lng, fix.Lat, fix.Lng) > s.cfg.MovementThresholdMeters:
		reason = ReasonMoved
	case !sameIDs(s.lastRestrictionIDs, restrictionIDs):
		reason = ReasonRestrictionsChange
	default:
		metrics.SessionSuppressed.Inc()
		return nil, nil, nil
	}

	route, _, err := s.engine.ComputeRoute(ctx, models.RouteQuery{
		Origin:         fix,
		Destination:    s.destination,
		Target:         s.target,
		Instant:        now,
		AvoidBulla:     s.avoidBulla,
		PreferWide:     s.preferWide,
		MaxWalkKm:      s.maxWalkKm,
		MaxDetourRatio: s.maxDetour,
	})
	if err != nil {
		return nil, nil, err
	}

	s.hasFix = true
	s.lastFix = fix
	s.lastRestrictionIDs = restrictionIDs
	s.lastRoute = route
	s.lastComputedAt = now
	metrics.SessionRecomputes.WithLabelValues(reason).Inc()

	update := &RouteUpdate{
		Type:       TypeRouteUpdate,
		PlanID:     s.planID,
		Reason:     reason,
		ComputedAt: now,
		Route:      route,
	}
	return update, s.deriveWarnings(route), nil
}

// LastRoute returns the most recently computed route and its timestamp.
func (s *Session) LastRoute() (*models.RouteResult, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRoute == nil {
		return nil, time.Time{}, false
	}
	return s.lastRoute, s.lastComputedAt, true
}

// deriveWarnings maps route conditions to session warning frames. Caller
// holds the lock.
func (s *Session) deriveWarnings(route *models.RouteResult) []Warning {
	var warnings []Warning
	emit := func(code, detail string) {
		metrics.SessionWarnings.WithLabelValues(code).Inc()
		warnings = append(warnings, Warning{
			Type:      TypeWarning,
			PlanID:    s.planID,
			Code:      code,
			Detail:    detail,
			CreatedAt: s.now(),
		})
	}

	if route.ETASeconds > ETAMissSeconds {
		emit(models.WarnETAMiss, "remaining walk exceeds twenty minutes")
	}
	if route.BullaScore > HighCrowdThreshold {
		emit(models.WarnHighCrowd, "route crosses a dense crowd area")
	}
	if route.HasExplanation(models.ExplainRestriction) {
		emit(models.WarnRouteCut, "an active restriction forced a detour")
	}
	return warnings
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
