// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package routing

import (
	"container/heap"

	"github.com/callejero-app/callejero/internal/constraint"
	"github.com/callejero-app/callejero/internal/geo"
	"github.com/callejero-app/callejero/internal/graph"
)

// searchOutcome is the raw product of one A* run before it is shaped into a
// RouteResult.
type searchOutcome struct {
	nodeIDs   []string
	edgeIDs   []string
	cost      float64
	breakdown constraint.Breakdown

	// occupiedEdges / occupiedFactorSum feed the bulla score's
	// occupation-density component.
	occupiedEdges     int
	occupiedFactorSum float64

	// widthEdges counts path edges narrower than the comfortable width,
	// attributed to the width explanation entry.
	widthEdges int

	// blockedEdges counts distinct hard-blocked edges encountered during
	// expansion; non-zero means the winning path detoured around a
	// restriction.
	blockedEdges int
}

type frontierItem struct {
	nodeID   string
	priority float64 // g + h
	g        float64
}

type frontier []*frontierItem

func (f frontier) Len() int            { return len(f) }
func (f frontier) Less(i, j int) bool  { return f[i].priority < f[j].priority }
func (f frontier) Swap(i, j int)       { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x interface{}) { *f = append(*f, x.(*frontierItem)) }
func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// aStar runs a weighted A* from start to goal over the store, with edge
// costs modulated by the constraint index.
//
// The heuristic is haversine distance divided by walking speed, an
// admissible and consistent lower bound since every real edge cost is at
// least its geometric walking time. Hard-blocked edges are skipped, never
// expanded. Returns nil when no path exists under the current constraints.
func aStar(store *graph.Store, idx *constraint.Index, startID, goalID string, p constraint.Params) *searchOutcome {
	goal, ok := store.Node(goalID)
	if !ok {
		return nil
	}

	h := func(nodeID string) float64 {
		n, _ := store.Node(nodeID)
		return geo.Haversine(n.Lat, n.Lng, goal.Lat, goal.Lng) / graph.WalkingSpeedMetersPerSecond
	}

	gScore := map[string]float64{startID: 0}
	cameFrom := make(map[string]string)
	cameVia := make(map[string]string) // node → edge taken to reach it
	closed := make(map[string]bool)
	blockedSeen := make(map[string]bool)

	open := &frontier{{nodeID: startID, priority: h(startID), g: 0}}
	heap.Init(open)

	for open.Len() > 0 {
		item := heap.Pop(open).(*frontierItem)
		current := item.nodeID

		if current == goalID {
			return reconstruct(store, idx, cameFrom, cameVia, startID, goalID, item.g, p, len(blockedSeen))
		}
		if closed[current] {
			continue
		}
		closed[current] = true

		for _, arc := range store.Adjacency(current) {
			edge, ok := store.Edge(arc.EdgeID)
			if !ok {
				continue
			}

			cost, _, blocked := idx.EdgeCost(store, edge, arc.CostSeconds, p)
			if blocked {
				blockedSeen[arc.EdgeID] = true
				continue
			}

			tentative := item.g + cost
			if old, seen := gScore[arc.To]; !seen || tentative < old {
				gScore[arc.To] = tentative
				cameFrom[arc.To] = current
				cameVia[arc.To] = arc.EdgeID
				heap.Push(open, &frontierItem{
					nodeID:   arc.To,
					priority: tentative + h(arc.To),
					g:        tentative,
				})
			}
		}
	}

	return nil
}

// reconstruct walks the predecessor links back to the start and re-derives
// the per-category cost breakdown along the winning path.
func reconstruct(store *graph.Store, idx *constraint.Index, cameFrom, cameVia map[string]string,
	startID, goalID string, total float64, p constraint.Params, blockedEdges int) *searchOutcome {

	var nodeIDs []string
	var edgeIDs []string

	current := goalID
	nodeIDs = append(nodeIDs, current)
	for current != startID {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		edgeIDs = append(edgeIDs, cameVia[current])
		current = prev
		nodeIDs = append(nodeIDs, current)
	}

	// Reverse into start → goal order.
	for i, j := 0, len(nodeIDs)-1; i < j; i, j = i+1, j-1 {
		nodeIDs[i], nodeIDs[j] = nodeIDs[j], nodeIDs[i]
	}
	for i, j := 0, len(edgeIDs)-1; i < j; i, j = i+1, j-1 {
		edgeIDs[i], edgeIDs[j] = edgeIDs[j], edgeIDs[i]
	}

	out := &searchOutcome{
		nodeIDs:      nodeIDs,
		edgeIDs:      edgeIDs,
		cost:         total,
		blockedEdges: blockedEdges,
	}

	for _, edgeID := range edgeIDs {
		edge, ok := store.Edge(edgeID)
		if !ok {
			continue
		}
		base := edge.LengthMeters / graph.WalkingSpeedMetersPerSecond
		_, bd, _ := idx.EdgeCost(store, edge, base, p)
		out.breakdown.Add(bd)

		if factor := idx.OccupationFactor(edgeID); factor > 0 {
			out.occupiedEdges++
			out.occupiedFactorSum += factor
		}
		if bd.Width > 0 {
			out.widthEdges++
		}
	}

	return out
}
