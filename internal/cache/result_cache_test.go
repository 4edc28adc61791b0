// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package cache

import (
	"testing"
	"time"

	"github.com/callejero-app/callejero/internal/models"
)

var keyInstant = time.Date(2026, 4, 3, 19, 2, 0, 0, time.UTC)

func sampleKey(sig string) Key {
	return NewKey(37.3921, -5.9968, 37.3927, -5.9990, keyInstant, 1.0, false, 10, 1.5, sig)
}

func sampleResult() *models.RouteResult {
	return &models.RouteResult{
		Profile:    models.RouteProfilePrimary,
		Polyline:   [][]float64{{37.3921, -5.9968}, {37.3927, -5.9990}},
		ETASeconds: 162,
	}
}

func TestResultCachePutGet(t *testing.T) {
	c := NewResultCache(time.Minute)
	key := sampleKey("sig-a")

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(key, sampleResult())
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got.ETASeconds != 162 {
		t.Errorf("unexpected cached result: %+v", got)
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %+v", stats)
	}
}

func TestKeyChangesWithConstraintSignature(t *testing.T) {
	c := NewResultCache(time.Minute)
	c.Put(sampleKey("sig-a"), sampleResult())

	if _, ok := c.Get(sampleKey("sig-b")); ok {
		t.Error("changed constraint signature must not hit the old entry")
	}
}

func TestKeyChangesWithTimeBucket(t *testing.T) {
	a := NewKey(37.39, -5.99, 37.40, -5.98, keyInstant, 0, false, 10, 1.5, "s")
	b := NewKey(37.39, -5.99, 37.40, -5.98, keyInstant.Add(TimeBucket), 0, false, 10, 1.5, "s")
	if a == b {
		t.Error("keys from different time buckets must differ")
	}

	// Within one bucket the key is stable.
	c := NewKey(37.39, -5.99, 37.40, -5.98, keyInstant.Add(time.Minute), 0, false, 10, 1.5, "s")
	if a != c {
		t.Error("keys within the same time bucket must match")
	}
}

func TestKeyQuantizesNearbyCoordinates(t *testing.T) {
	a := NewKey(37.39210, -5.99680, 37.3927, -5.9990, keyInstant, 0, false, 10, 1.5, "s")
	b := NewKey(37.39211, -5.99681, 37.3927, -5.9990, keyInstant, 0, false, 10, 1.5, "s")
	if a != b {
		t.Error("sub-precision coordinate jitter must map to the same key")
	}
}

func TestResultCacheExpiry(t *testing.T) {
	c := NewResultCache(30 * time.Millisecond)
	key := sampleKey("sig-a")
	c.Put(key, sampleResult())

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expected entry to expire")
	}
}

func TestCleanupEvictsExpired(t *testing.T) {
	c := NewResultCache(10 * time.Millisecond)
	c.Put(sampleKey("a"), sampleResult())
	c.Put(sampleKey("b"), sampleResult())

	time.Sleep(30 * time.Millisecond)

	if evicted := c.Cleanup(); evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after cleanup, got %d entries", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := NewResultCache(time.Minute)
	c.Put(sampleKey("a"), sampleResult())
	c.Clear()

	if c.Len() != 0 {
		t.Error("expected empty cache after clear")
	}
}
