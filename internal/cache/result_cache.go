// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package cache provides the short-TTL route result cache.
//
// Keys embed a quantized origin/destination, a coarse time bucket, the
// query's constraint flags, and the constraint-set signature, so entries
// invalidate themselves the moment the time bucket rolls over or the active
// restriction set changes. The cache is a pure performance optimization:
// removing it changes latency, never results.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/callejero-app/callejero/internal/models"
)

// TimeBucket is the coarse interval keys are quantized to. Once a bucket
// rolls over, its entries become unreachable regardless of eviction timing.
const TimeBucket = 10 * time.Minute

// coordinateKeyPrecision quantizes origin/destination for key purposes.
// Four decimals is roughly ten meters, well under the session movement
// threshold, so nearby repeat queries share entries.
const coordinateKeyPrecision = 4

// Key identifies one route computation. All fields participate in the
// cache identity.
type Key struct {
	OriginLat      float64 `json:"olat"`
	OriginLng      float64 `json:"olng"`
	DestinationLat float64 `json:"dlat"`
	DestinationLng float64 `json:"dlng"`
	TimeBucket     int64   `json:"bucket"`
	AvoidBulla     float64 `json:"avoid"`
	PreferWide     bool    `json:"wide"`
	MaxWalkKm      float64 `json:"max_walk"`
	MaxDetourRatio float64 `json:"max_detour"`
	ConstraintSig  string  `json:"sig"`
}

// NewKey quantizes the query coordinates and instant into a cache key.
func NewKey(originLat, originLng, destLat, destLng float64, instant time.Time,
	avoidBulla float64, preferWide bool, maxWalkKm, maxDetourRatio float64, constraintSig string) Key {
	return Key{
		OriginLat:      quantize(originLat),
		OriginLng:      quantize(originLng),
		DestinationLat: quantize(destLat),
		DestinationLng: quantize(destLng),
		TimeBucket:     instant.Unix() / int64(TimeBucket/time.Second),
		AvoidBulla:     avoidBulla,
		PreferWide:     preferWide,
		MaxWalkKm:      maxWalkKm,
		MaxDetourRatio: maxDetourRatio,
		ConstraintSig:  constraintSig,
	}
}

func quantize(v float64) float64 {
	const shift = 1e4 // 10^coordinateKeyPrecision
	if v < 0 {
		return float64(int64(v*shift-0.5)) / shift
	}
	return float64(int64(v*shift+0.5)) / shift
}

// hash serializes the key and digests it into a compact map key.
func (k Key) hash() string {
	data, err := json.Marshal(k)
	if err != nil {
		// Marshaling a flat struct of scalars cannot fail; keep a
		// readable fallback anyway.
		return fmt.Sprintf("%+v", k)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:16])
}

type entry struct {
	result    *models.RouteResult
	expiresAt time.Time
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
}

// ResultCache is a thread-safe TTL cache of computed route results.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	statsMu sync.Mutex
	stats   Stats
}

// NewResultCache creates a result cache. Entries live for at most ttl, and
// in practice expire earlier through the time-bucket component of the key.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = TimeBucket
	}
	return &ResultCache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get retrieves a cached result. Expired entries are removed on access and
// counted as misses.
func (c *ResultCache) Get(key Key) (*models.RouteResult, bool) {
	h := key.hash()

	c.mu.RLock()
	e, ok := c.entries[h]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, h)
		c.mu.Unlock()
		c.recordMiss()
		c.recordEviction(1)
		return nil, false
	}

	c.recordHit()
	return e.result, true
}

// Put stores a computed result under the key.
func (c *ResultCache) Put(key Key, result *models.RouteResult) {
	h := key.hash()

	c.mu.Lock()
	c.entries[h] = entry{result: result, expiresAt: time.Now().Add(c.ttl)}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.TotalKeys = total
	c.statsMu.Unlock()
}

// Len reports the current number of entries, expired or not.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evicted
	c.stats.TotalKeys = 0
	c.statsMu.Unlock()
}

// GetStats returns a snapshot of the cache counters.
func (c *ResultCache) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Cleanup removes expired entries and returns how many were evicted.
// Opportunistic only: correctness never depends on eviction timing.
func (c *ResultCache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	evicted := 0
	for h, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, h)
			evicted++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += int64(evicted)
	c.stats.TotalKeys = total
	c.statsMu.Unlock()

	return evicted
}

// Serve runs the periodic janitor until the context is canceled. Implements
// the suture service contract so the supervisor owns its lifecycle.
func (c *ResultCache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// String identifies the janitor service in supervisor logs.
func (c *ResultCache) String() string {
	return "route-result-cache"
}

func (c *ResultCache) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *ResultCache) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}

func (c *ResultCache) recordEviction(n int64) {
	c.statsMu.Lock()
	c.stats.Evictions += n
	c.statsMu.Unlock()
}
