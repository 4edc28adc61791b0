// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package crowd

import (
	"context"
	"time"

	"github.com/callejero-app/callejero/internal/logging"
)

// Aggregator is the supervised janitor for a Store: it periodically prunes
// expired buckets and idle reporter limiters and refreshes the live-signal
// gauge. Aggregation itself happens on read, so the janitor owns no state
// beyond its schedule.
type Aggregator struct {
	store    *Store
	interval time.Duration
}

// NewAggregator wraps a store in its janitor service.
func NewAggregator(store *Store, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Aggregator{store: store, interval: interval}
}

// Serve runs the prune loop until the context is canceled. Implements the
// suture service contract.
func (a *Aggregator) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			live := a.store.Prune(time.Now())
			logging.Debug().Int("live_signals", live).Msg("Crowd store pruned")
		}
	}
}

// String identifies the service in supervisor logs.
func (a *Aggregator) String() string {
	return "crowd-aggregator"
}
