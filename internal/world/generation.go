// Map generation using layered simplex noise.
// Elevation decides water and mountains, moisture decides forest, and a
// sparse road network is traced between low-lying cells.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Radius      int     `json:"radius"`       // Hex grid radius
	Seed        int64   `json:"seed"`         // Random seed (0 = random)
	SeaLevel    float64 `json:"sea_level"`    // Elevation threshold for water (0.0–1.0)
	MountainLvl float64 `json:"mountain_lvl"` // Elevation threshold for mountains (0.0–1.0)
	ForestLvl   float64 `json:"forest_lvl"`   // Moisture threshold for forest (0.0–1.0)
	Roads       int     `json:"roads"`        // Number of road traces
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      16,
		Seed:        0,
		SeaLevel:    0.22,
		MountainLvl: 0.78,
		ForestLvl:   0.6,
		Roads:       4,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:      5,
		Seed:        42,
		SeaLevel:    0.15,
		MountainLvl: 0.85,
		ForestLvl:   0.6,
		Roads:       1,
	}
}

// Generate creates a complete map with terrain and roads.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Radius)

	for _, coord := range CellsInRadius(HexCoord{}, cfg.Radius) {
		// Hex cube -> cartesian for noise sampling.
		x := float64(coord.Q) + float64(coord.R)*0.5
		y := float64(coord.R) * math.Sqrt(3.0) / 2.0

		elev := octaveNoise(elevNoise, x, y, 4, 0.09, 0.5)
		moist := octaveNoise(moistNoise, x, y, 3, 0.07, 0.5)

		// Lower the rim so the map edge tends to be water.
		dist := math.Sqrt(x*x+y*y) / float64(cfg.Radius+1)
		falloff := 1.0 - math.Pow(dist, 4)
		if falloff < 0 {
			falloff = 0
		}
		elev *= falloff

		cell := NewCell(CubeToOffset(coord), deriveTerrain(elev, moist, cfg))
		cell.Elevation = elev
		m.Set(cell)
	}

	// The center is always buildable so a settlement can start there.
	if c := m.Get(HexCoord{}); c != nil {
		c.Terrain = TerrainPlains
	}

	placeRoads(m, seed, cfg.Roads)
	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, moist float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainWater
	}
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if moist > cfg.ForestLvl {
		return TerrainForest
	}
	return TerrainPlains
}

// placeRoads traces roads from random land cells along the gentlest slope.
func placeRoads(m *Map, seed int64, count int) {
	if count <= 0 {
		return
	}
	rng := rand.New(rand.NewSource(seed + 100))

	var starts []HexCoord
	for _, coord := range m.Coords() {
		if c := m.Get(coord); c != nil && !c.Obstacle() {
			starts = append(starts, coord)
		}
	}
	rng.Shuffle(len(starts), func(i, j int) {
		starts[i], starts[j] = starts[j], starts[i]
	})
	if len(starts) > count {
		starts = starts[:count]
	}

	for _, start := range starts {
		traceRoad(m, start, m.Radius)
	}
}

// traceRoad walks toward the neighbor with the closest elevation until it
// runs out of unvisited land.
func traceRoad(m *Map, start HexCoord, maxSteps int) {
	current := start
	visited := make(map[HexCoord]bool)

	for step := 0; step < maxSteps; step++ {
		visited[current] = true
		cell := m.Get(current)
		if cell == nil || cell.Obstacle() {
			break
		}
		// Leave the map center free for placement.
		if current != (HexCoord{}) {
			cell.Road = true
		}

		var next *HexCoord
		bestDiff := math.Inf(1)
		for _, nc := range current.Neighbors() {
			if visited[nc] {
				continue
			}
			nh := m.Get(nc)
			if nh == nil || nh.Obstacle() {
				continue
			}
			if d := math.Abs(nh.Elevation - cell.Elevation); d < bestDiff {
				bestDiff = d
				c := nc
				next = &c
			}
		}
		if next == nil {
			break
		}
		current = *next
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, c := range m.Cells {
		counts[c.Terrain]++
	}
	return counts
}
