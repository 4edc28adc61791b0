// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package session

import (
	"context"
	"sync"
	"time"

	"github.com/callejero-app/callejero/internal/logging"
	"github.com/callejero-app/callejero/internal/metrics"
	"github.com/callejero-app/callejero/internal/models"
)

// storedRoute is a retained last-known route for a navigation plan.
type storedRoute struct {
	route      *models.RouteResult
	computedAt time.Time
}

// Registry tracks live sessions and retains the last computed route per
// navigation plan so clients can recover it over plain HTTP after a
// websocket drop.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	lastRoutes map[string]storedRoute
	retention  time.Duration
}

// NewRegistry creates a registry. Retained routes expire after retention.
func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		lastRoutes: make(map[string]storedRoute),
		retention:  retention,
	}
}

// Add registers a live session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

// Remove closes and deregisters a session. Its last route stays retained
// for the plan until the retention window lapses.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if ok {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}

// Get looks up a live session.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RememberRoute retains a plan's latest route for HTTP recovery.
func (r *Registry) RememberRoute(planID string, route *models.RouteResult, computedAt time.Time) {
	r.mu.Lock()
	r.lastRoutes[planID] = storedRoute{route: route, computedAt: computedAt}
	r.mu.Unlock()
}

// LastRoute returns the retained route for a plan, if any is still within
// the retention window.
func (r *Registry) LastRoute(planID string) (*models.RouteResult, time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sr, ok := r.lastRoutes[planID]
	if !ok || time.Since(sr.computedAt) > r.retention {
		return nil, time.Time{}, false
	}
	return sr.route, sr.computedAt, true
}

// Prune drops retained routes past the retention window and deregisters
// sessions closed out-of-band.
func (r *Registry) Prune(now time.Time) {
	r.mu.Lock()
	for planID, sr := range r.lastRoutes {
		if now.Sub(sr.computedAt) > r.retention {
			delete(r.lastRoutes, planID)
		}
	}
	var closed []string
	for id, s := range r.sessions {
		if s.State() == StateClosed {
			closed = append(closed, id)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for range closed {
		metrics.ActiveSessions.Dec()
	}
}

// Serve runs the periodic prune loop. Implements the suture service
// contract.
func (r *Registry) Serve(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Prune(time.Now())
			logging.Debug().Int("sessions", r.Len()).Msg("Session registry pruned")
		}
	}
}

// String identifies the service in supervisor logs.
func (r *Registry) String() string {
	return "session-registry"
}
