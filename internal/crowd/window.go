// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package crowd

import (
	"sync"
	"time"
)

// slidingWindow is a bucketed sliding-window counter used for per-reporter
// throttling. The window is divided into a circular buffer of buckets that
// are summed on read, so memory stays O(buckets) per reporter regardless of
// report volume.
type slidingWindow struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
}

func newSlidingWindow(windowSize time.Duration, numBuckets int) *slidingWindow {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 10 * time.Minute
	}
	return &slidingWindow{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		numBuckets: numBuckets,
		lastUpdate: time.Now(),
	}
}

// incr advances the window and adds one to the current bucket.
func (w *slidingWindow) incr() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	w.buckets[w.current]++
}

// count returns the sum of all buckets currently inside the window.
func (w *slidingWindow) count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()

	var total int64
	for _, c := range w.buckets {
		total += c
	}
	return total
}

// idle reports whether the whole window has elapsed with no activity, which
// makes the counter safe to drop.
func (w *slidingWindow) idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastUpdate) >= w.bucketSize*time.Duration(w.numBuckets)
}

// advance rotates expired buckets out of the window. Caller holds the lock.
func (w *slidingWindow) advance() {
	elapsed := time.Since(w.lastUpdate)
	bucketsElapsed := int(elapsed / w.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= w.numBuckets {
		for i := range w.buckets {
			w.buckets[i] = 0
		}
	} else {
		for i := 1; i <= bucketsElapsed; i++ {
			w.buckets[(w.current+i)%w.numBuckets] = 0
		}
	}

	w.current = (w.current + bucketsElapsed) % w.numBuckets
	w.lastUpdate = w.lastUpdate.Add(w.bucketSize * time.Duration(bucketsElapsed))
}
