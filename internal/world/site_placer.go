// Site placement: finds open ground for starter buildings.
package world

import (
	"math/rand"
	"sort"
)

// BuildSite is a candidate location for a building footprint.
type BuildSite struct {
	Center HexCoord
	Cells  []HexCoord
	Score  float64
}

// FootprintCells returns the cells a building of the given footprint radius
// covers when centered on center.
func FootprintCells(center HexCoord, radius int) []HexCoord {
	if radius <= 0 {
		return []HexCoord{center}
	}
	return CellsInRadius(center, radius)
}

// FindBuildSites picks up to count placeable footprints, best first, keeping
// at least minDist between centers. Cells in taken are never used.
func FindBuildSites(m *Map, footprint, count, minDist int, taken map[HexCoord]bool) []BuildSite {
	var candidates []BuildSite

	for _, coord := range m.Coords() {
		cells := FootprintCells(coord, footprint)
		if !footprintFree(m, cells, taken) {
			continue
		}
		candidates = append(candidates, BuildSite{
			Center: coord,
			Cells:  cells,
			Score:  siteScore(m, coord),
		})
	}

	// Stable so equal scores keep (r, q) order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var sites []BuildSite
	for _, c := range candidates {
		if len(sites) >= count {
			break
		}
		if tooClose(c.Center, sites, minDist) {
			continue
		}
		sites = append(sites, c)
	}
	return sites
}

func footprintFree(m *Map, cells []HexCoord, taken map[HexCoord]bool) bool {
	for _, c := range cells {
		if taken[c] || !m.CanPlace(c) {
			return false
		}
	}
	return true
}

// siteScore prefers ground near the map center with roads and forest close by.
func siteScore(m *Map, coord HexCoord) float64 {
	score := 3.0 - 0.1*float64(coord.Length())

	terrainTypes := make(map[Terrain]bool)
	road := false
	for _, nc := range coord.Neighbors() {
		nh := m.Get(nc)
		if nh == nil {
			continue
		}
		terrainTypes[nh.Terrain] = true
		if nh.Road {
			road = true
		}
	}
	score += float64(len(terrainTypes)) * 0.3
	if road {
		score += 1.0
	}
	return score
}

func tooClose(coord HexCoord, existing []BuildSite, minDist int) bool {
	for _, s := range existing {
		if Distance(coord, s.Center) < minDist {
			return true
		}
	}
	return false
}

// SettlementName produces a procedural settlement name by combining syllables.
func SettlementName(seed int64) string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "High", "Low", "Old", "New",
		"Far", "Deep", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "vale", "port", "brook",
	}
	rng := rand.New(rand.NewSource(seed + 200))
	return prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
}
