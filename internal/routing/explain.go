// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package routing

import (
	"sort"

	"github.com/callejero-app/callejero/internal/constraint"
	"github.com/callejero-app/callejero/internal/models"
)

// explanationLabels maps penalty categories to their user-facing labels.
var explanationLabels = map[string]string{
	models.ExplainBase:        "base walking time",
	models.ExplainOccupation:  "procession occupation",
	models.ExplainWidth:       "narrow streets",
	models.ExplainCrowd:       "crowd avoidance",
	models.ExplainRestriction: "restriction detour",
}

// maxExplanationEntries bounds the ranked explanation.
const maxExplanationEntries = 3

// buildExplanation ranks the non-zero penalty categories accumulated along
// the winning path by total weight, descending, truncated to the top three.
// A restriction-detour entry survives truncation unconditionally: sessions
// derive the route-cut warning from its presence, and losing it to a rank
// cut would hide an active closure from the user.
func buildExplanation(bd constraint.Breakdown, pathEdges, occupiedEdges, widthEdges, blockedEdges int) []models.ExplanationEntry {
	var entries []models.ExplanationEntry

	add := func(category string, weight float64, segments int) {
		if weight <= 0 || segments <= 0 {
			return
		}
		entries = append(entries, models.ExplanationEntry{
			Category:      category,
			Label:         explanationLabels[category],
			WeightSeconds: weight,
			Segments:      segments,
		})
	}

	add(models.ExplainBase, bd.Base, pathEdges)
	add(models.ExplainOccupation, bd.Occupation, occupiedEdges)
	add(models.ExplainCrowd, bd.Crowd, occupiedEdges)
	add(models.ExplainWidth, bd.Width, widthEdges)
	add(models.ExplainRestriction, float64(blockedEdges), blockedEdges)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WeightSeconds > entries[j].WeightSeconds
	})

	if len(entries) <= maxExplanationEntries {
		return entries
	}

	kept := entries[:maxExplanationEntries]
	if blockedEdges > 0 && !containsCategory(kept, models.ExplainRestriction) {
		for _, e := range entries[maxExplanationEntries:] {
			if e.Category == models.ExplainRestriction {
				kept[len(kept)-1] = e
				break
			}
		}
	}
	return kept
}

func containsCategory(entries []models.ExplanationEntry, category string) bool {
	for _, e := range entries {
		if e.Category == category {
			return true
		}
	}
	return false
}
