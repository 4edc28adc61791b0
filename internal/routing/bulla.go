// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package routing

import (
	"math"
	"time"
)

// Blend weights of the bulla score. Hour of day carries slightly more than
// the crowd component: Holy Week congestion follows the procession schedule
// more tightly than any single observation.
const (
	bullaHourWeight  = 0.55
	bullaCrowdWeight = 0.45
)

// bullaScore estimates 0–1 pedestrian congestion along a route. It blends
// a time-of-day factor with the best available crowd component: an
// aggregated crowd signal near the path midpoint when one exists, otherwise
// the density of active occupations along the path. Independent of path
// cost, always clamped to [0,1] and rounded to three decimals.
func bullaScore(instant time.Time, signalComponent float64, hasSignal bool, occupiedEdges int, occupiedFactorSum float64, pathEdges int) float64 {
	hourFactor := (float64(instant.Hour()) + float64(instant.Minute())/60) / 24

	crowd := 0.0
	switch {
	case hasSignal:
		crowd = signalComponent
	case pathEdges > 0 && occupiedEdges > 0:
		// Fraction of occupied path edges weighted by their factors.
		crowd = occupiedFactorSum / float64(pathEdges)
	}

	score := bullaHourWeight*hourFactor + bullaCrowdWeight*crowd
	score = math.Min(math.Max(score, 0), 1)
	return math.Round(score*1000) / 1000
}
