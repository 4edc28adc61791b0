// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/callejero-app/callejero/internal/models"
)

// fakeEngine is a scriptable RouteComputer.
type fakeEngine struct {
	mu             sync.Mutex
	route          *models.RouteResult
	restrictionIDs []string
	computeCalls   int
}

func (f *fakeEngine) ComputeRoute(_ context.Context, _ models.RouteQuery) (*models.RouteResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.computeCalls++
	return f.route, false, nil
}

func (f *fakeEngine) ActiveRestrictionIDs(_ context.Context, _ time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.restrictionIDs...), nil
}

func (f *fakeEngine) setRestrictions(ids ...string) {
	f.mu.Lock()
	f.restrictionIDs = ids
	f.mu.Unlock()
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computeCalls
}

func quietRoute() *models.RouteResult {
	return &models.RouteResult{
		Profile:    models.RouteProfilePrimary,
		Polyline:   [][]float64{{37.39, -5.99}, {37.392, -5.99}},
		ETASeconds: 300,
		BullaScore: 0.2,
	}
}

func testConfig() Config {
	// A generous limiter so throttling never interferes except where a
	// test exercises it directly.
	return Config{UpdatesPerSecond: 1000, UpdateBurst: 1000, MovementThresholdMeters: 80}
}

func newTestSession(t *testing.T, engine RouteComputer) *Session {
	t.Helper()
	s, ack, err := New(engine, Hello{
		Type:        TypeHello,
		Destination: &Point{Lat: 37.3862, Lng: -5.9926},
	}, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ack.SessionID == "" || ack.PlanID == "" {
		t.Fatalf("ack missing IDs: %+v", ack)
	}
	return s
}

func TestHelloRequiresDestinationOrTarget(t *testing.T) {
	_, _, err := New(&fakeEngine{route: quietRoute()}, Hello{Type: TypeHello}, testConfig())
	if err != ErrNoDestination {
		t.Errorf("New() error = %v, want ErrNoDestination", err)
	}
}

func TestHelloPreservesPlanID(t *testing.T) {
	_, ack, err := New(&fakeEngine{route: quietRoute()}, Hello{
		Type:        TypeHello,
		PlanID:      "plan-42",
		Destination: &Point{Lat: 37.3862, Lng: -5.9926},
	}, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ack.PlanID != "plan-42" {
		t.Errorf("PlanID = %q, want plan-42", ack.PlanID)
	}
}

func TestFirstUpdateComputes(t *testing.T) {
	engine := &fakeEngine{route: quietRoute()}
	s := newTestSession(t, engine)

	update, warnings, err := s.HandleLocation(context.Background(), 37.3900, -5.9900)
	if err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	if update == nil {
		t.Fatal("first update produced no route")
	}
	if update.Reason != ReasonFirstUpdate {
		t.Errorf("Reason = %q, want %q", update.Reason, ReasonFirstUpdate)
	}
	if len(warnings) != 0 {
		t.Errorf("quiet route produced warnings: %v", warnings)
	}
}

func TestQuiescenceSuppressesRepeats(t *testing.T) {
	engine := &fakeEngine{route: quietRoute()}
	s := newTestSession(t, engine)

	if _, _, err := s.HandleLocation(context.Background(), 37.3900, -5.9900); err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		// About 20m of jitter, well under the threshold.
		update, _, err := s.HandleLocation(context.Background(), 37.39018, -5.9900)
		if err != nil {
			t.Fatalf("HandleLocation() error = %v", err)
		}
		if update != nil {
			t.Fatalf("stationary update #%d recomputed", i)
		}
	}
	if got := engine.calls(); got != 1 {
		t.Errorf("engine computed %d times, want exactly 1", got)
	}
}

func TestMovementPastThresholdRecomputes(t *testing.T) {
	engine := &fakeEngine{route: quietRoute()}
	s := newTestSession(t, engine)

	if _, _, err := s.HandleLocation(context.Background(), 37.3900, -5.9900); err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	// 0.001 degrees of latitude is about 111m.
	update, _, err := s.HandleLocation(context.Background(), 37.3910, -5.9900)
	if err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	if update == nil {
		t.Fatal("111m displacement produced no route update")
	}
	if update.Reason != ReasonMoved {
		t.Errorf("Reason = %q, want %q", update.Reason, ReasonMoved)
	}
	if got := engine.calls(); got != 2 {
		t.Errorf("engine computed %d times, want 2", got)
	}
}

func TestRestrictionChangeRecomputesWithoutMovement(t *testing.T) {
	engine := &fakeEngine{route: quietRoute()}
	s := newTestSession(t, engine)

	if _, _, err := s.HandleLocation(context.Background(), 37.3900, -5.9900); err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}

	engine.setRestrictions("cordon-1")
	update, _, err := s.HandleLocation(context.Background(), 37.3900, -5.9900)
	if err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	if update == nil {
		t.Fatal("restriction change produced no route update")
	}
	if update.Reason != ReasonRestrictionsChange {
		t.Errorf("Reason = %q, want %q", update.Reason, ReasonRestrictionsChange)
	}
}

func TestWarningsDerivedFromRoute(t *testing.T) {
	route := quietRoute()
	route.ETASeconds = 1500
	route.BullaScore = 0.9
	route.Explanation = []models.ExplanationEntry{{Category: models.ExplainRestriction, Segments: 1, WeightSeconds: 1}}

	engine := &fakeEngine{route: route}
	s := newTestSession(t, engine)

	_, warnings, err := s.HandleLocation(context.Background(), 37.3900, -5.9900)
	if err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}

	want := map[string]bool{
		models.WarnETAMiss:   false,
		models.WarnHighCrowd: false,
		models.WarnRouteCut:  false,
	}
	for _, w := range warnings {
		if _, ok := want[w.Code]; !ok {
			t.Errorf("unexpected warning code %q", w.Code)
			continue
		}
		want[w.Code] = true
		if w.PlanID != s.PlanID() {
			t.Errorf("warning %q carries plan %q, want %q", w.Code, w.PlanID, s.PlanID())
		}
	}
	for code, seen := range want {
		if !seen {
			t.Errorf("missing warning %q", code)
		}
	}
}

func TestRateLimiterDropsBurst(t *testing.T) {
	engine := &fakeEngine{route: quietRoute()}
	s, _, err := New(engine, Hello{
		Type:        TypeHello,
		Destination: &Point{Lat: 37.3862, Lng: -5.9926},
	}, Config{UpdatesPerSecond: 0.001, UpdateBurst: 1, MovementThresholdMeters: 80})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, _, err := s.HandleLocation(context.Background(), 37.3900, -5.9900); err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	// Far past the threshold, but the limiter is exhausted.
	update, _, err := s.HandleLocation(context.Background(), 37.4000, -5.9900)
	if err != nil {
		t.Fatalf("HandleLocation() error = %v", err)
	}
	if update != nil {
		t.Error("limiter-exhausted update still recomputed")
	}
	if got := engine.calls(); got != 1 {
		t.Errorf("engine computed %d times, want 1", got)
	}
}

func TestClosedSessionRejectsUpdates(t *testing.T) {
	engine := &fakeEngine{route: quietRoute()}
	s := newTestSession(t, engine)
	s.Close()

	if _, _, err := s.HandleLocation(context.Background(), 37.3900, -5.9900); err != ErrSessionClosed {
		t.Errorf("HandleLocation() on closed session error = %v, want ErrSessionClosed", err)
	}
	if _, err := s.Heartbeat(time.Now()); err != ErrSessionClosed {
		t.Errorf("Heartbeat() on closed session error = %v, want ErrSessionClosed", err)
	}
}

func TestHeartbeatAck(t *testing.T) {
	s := newTestSession(t, &fakeEngine{route: quietRoute()})

	sentAt := time.Date(2026, 4, 3, 18, 0, 0, 0, time.UTC)
	ack, err := s.Heartbeat(sentAt)
	if err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if ack.Type != TypeHeartbeatAck {
		t.Errorf("ack type = %q, want %q", ack.Type, TypeHeartbeatAck)
	}
	if !ack.SentAt.Equal(sentAt) {
		t.Errorf("ack sent_at = %v, want echo of %v", ack.SentAt, sentAt)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := newTestSession(t, &fakeEngine{route: quietRoute()})

	r.Add(s)
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if got, ok := r.Get(s.ID()); !ok || got != s {
		t.Error("Get() did not return the registered session")
	}

	r.Remove(s.ID())
	if r.Len() != 0 {
		t.Errorf("Len() after remove = %d, want 0", r.Len())
	}
	if s.State() != StateClosed {
		t.Error("removed session not closed")
	}
}

func TestRegistryLastRouteRetention(t *testing.T) {
	r := NewRegistry(time.Hour)
	route := quietRoute()
	computedAt := time.Now().Add(-30 * time.Minute)

	r.RememberRoute("plan-7", route, computedAt)
	got, at, ok := r.LastRoute("plan-7")
	if !ok || got != route || !at.Equal(computedAt) {
		t.Fatalf("LastRoute() = (%v, %v, %v), want the remembered route", got, at, ok)
	}

	if _, _, ok := r.LastRoute("plan-unknown"); ok {
		t.Error("LastRoute() found an unknown plan")
	}

	r.Prune(computedAt.Add(2 * time.Hour))
	if _, _, ok := r.LastRoute("plan-7"); ok {
		t.Error("LastRoute() survived pruning past retention")
	}
}
