package world

import (
	"github.com/zyedidia/generic/heap"
)

// Reachable returns every cell whose cheapest cumulative resistance from
// any origin is within budget. Origins are included at cost 0. The result
// maps each cell to that cost.
func Reachable(src ResistanceSource, origins []HexCoord, budget float64) map[HexCoord]float64 {
	best := make(map[HexCoord]float64)
	if budget <= 0 || len(origins) == 0 {
		return best
	}

	queue := make([]HexCoord, 0, len(origins))
	for _, o := range origins {
		if _, ok := best[o]; ok {
			continue
		}
		best[o] = 0
		queue = append(queue, o)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		base := best[current]

		for _, next := range current.Neighbors() {
			cost := src.Resistance(next)
			if impassable(cost) {
				continue
			}
			total := base + cost
			if total > budget {
				continue
			}
			if known, ok := best[next]; ok && known <= total {
				continue
			}
			best[next] = total
			queue = append(queue, next)
		}
	}
	return best
}

// ReachableCells is Reachable flattened to a sorted coordinate list.
func ReachableCells(src ResistanceSource, origins []HexCoord, budget float64) []HexCoord {
	costs := Reachable(src, origins, budget)
	out := make([]HexCoord, 0, len(costs))
	for c := range costs {
		out = append(out, c)
	}
	SortCoords(out)
	return out
}

type openNode struct {
	coord HexCoord
	f     float64
	g     float64
	seq   int
}

// FindPath runs A* from start to goal and returns the cells after start up
// to and including goal. A path from a cell to itself is empty. When the
// goal cannot be reached within maxCost (maxCost <= 0 means unlimited) it
// returns nil, false.
func FindPath(src ResistanceSource, start, goal HexCoord, maxCost float64) ([]HexCoord, bool) {
	if start == goal {
		return []HexCoord{}, true
	}
	if impassable(src.Resistance(goal)) {
		return nil, false
	}

	open := heap.New(func(a, b openNode) bool {
		if a.f != b.f {
			return a.f < b.f
		}
		return a.seq < b.seq
	})
	gScore := map[HexCoord]float64{start: 0}
	cameFrom := make(map[HexCoord]HexCoord)
	closed := make(map[HexCoord]bool)

	seq := 0
	open.Push(openNode{coord: start, f: float64(Distance(start, goal)), seq: seq})

	for open.Size() > 0 {
		node, _ := open.Pop()
		if closed[node.coord] {
			continue
		}
		// Stale entry superseded by a cheaper push.
		if node.g > gScore[node.coord] {
			continue
		}
		if node.coord == goal {
			return reconstruct(cameFrom, start, goal), true
		}
		closed[node.coord] = true

		for _, next := range node.coord.Neighbors() {
			if closed[next] {
				continue
			}
			cost := src.Resistance(next)
			if impassable(cost) {
				continue
			}
			g := node.g + cost
			if maxCost > 0 && g > maxCost {
				continue
			}
			if known, ok := gScore[next]; ok && known <= g {
				continue
			}
			gScore[next] = g
			cameFrom[next] = node.coord
			seq++
			open.Push(openNode{coord: next, g: g, f: g + float64(Distance(next, goal)), seq: seq})
		}
	}
	return nil, false
}

func reconstruct(cameFrom map[HexCoord]HexCoord, start, goal HexCoord) []HexCoord {
	var path []HexCoord
	for c := goal; c != start; c = cameFrom[c] {
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathCost sums the resistance of every cell on path.
func PathCost(src ResistanceSource, path []HexCoord) float64 {
	total := 0.0
	for _, c := range path {
		total += src.Resistance(c)
	}
	return total
}
