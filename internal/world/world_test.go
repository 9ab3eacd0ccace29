package world_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/lifeon/internal/world"
)

// disk is a uniform-cost grid of the given radius around the origin.
func disk(radius int, cost float64) world.ResistanceFunc {
	return func(c world.HexCoord) float64 {
		if c.Length() > radius {
			return -1
		}
		return cost
	}
}

func TestNewHexCoord_PanicsOnInvalidSum(t *testing.T) {
	assert.Panics(t, func() { world.NewHexCoord(1, 1, 1) })
	assert.NotPanics(t, func() { world.NewHexCoord(2, -3, 1) })
}

func TestHexArithmetic_PreservesCubeConstraint(t *testing.T) {
	a := world.Axial(3, -1)
	b := world.Axial(-2, 4)

	for _, c := range []world.HexCoord{a.Add(b), a.Sub(b), a.Scale(-3), b.Scale(5)} {
		assert.True(t, c.Valid(), "coordinate %s", c)
	}
	for _, n := range a.Neighbors() {
		assert.True(t, n.Valid())
		assert.Equal(t, 1, world.Distance(a, n))
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, world.Distance(world.HexCoord{}, world.HexCoord{}))
	assert.Equal(t, 3, world.Distance(world.HexCoord{}, world.NewHexCoord(3, 0, -3)))
	assert.Equal(t, 4, world.Distance(world.Axial(-2, 0), world.Axial(2, -2)))
}

func TestDirectionBetween(t *testing.T) {
	origin := world.HexCoord{}

	assert.Equal(t, world.DirNorthEast, world.DirectionBetween(origin, world.NewHexCoord(1, -1, 0)))
	assert.Equal(t, world.DirWest, world.DirectionBetween(origin, world.NewHexCoord(-1, 0, 1)))
	assert.Equal(t, world.DirNone, world.DirectionBetween(origin, world.NewHexCoord(2, -1, -1)))
	assert.Equal(t, "NorthWest", world.DirNorthWest.String())
}

func TestCellsInRadius_Count(t *testing.T) {
	center := world.Axial(4, -7)

	for r := 0; r <= 6; r++ {
		cells := world.CellsInRadius(center, r)

		seen := make(map[world.HexCoord]bool)
		for _, c := range cells {
			require.True(t, c.Valid())
			assert.LessOrEqual(t, world.Distance(center, c), r)
			seen[c] = true
		}
		assert.Len(t, cells, 1+3*r*(r+1), "radius %d", r)
		assert.Len(t, seen, len(cells), "radius %d has duplicates", r)
	}

	assert.Empty(t, world.CellsInRadius(center, -1))
}

func TestCellsInRadiusExclusive_DropsEdge(t *testing.T) {
	cells := world.CellsInRadiusExclusive(world.HexCoord{}, 2)
	assert.Len(t, cells, 7)
	for _, c := range cells {
		assert.Less(t, c.Length(), 2)
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	for _, c := range world.CellsInRadius(world.HexCoord{}, 6) {
		o := world.CubeToOffset(c)
		assert.Equal(t, c, world.OffsetToCube(o))
	}
	assert.Equal(t, world.Offset{Col: 0, Row: 1}, world.CubeToOffset(world.NewHexCoord(0, 1, -1)))
	assert.Equal(t, world.Offset{Col: -2, Row: -1}, world.CubeToOffset(world.NewHexCoord(-1, -1, 2)))
}

func TestReachable_RespectsBudget(t *testing.T) {
	src := disk(6, 1)

	costs := world.Reachable(src, []world.HexCoord{{}}, 2)

	assert.Len(t, costs, 19)
	for c, cost := range costs {
		assert.LessOrEqual(t, cost, 2.0)
		assert.Equal(t, float64(c.Length()), cost)
	}
}

func TestReachable_EmptyOnNoBudgetOrOrigins(t *testing.T) {
	src := disk(6, 1)

	assert.Empty(t, world.Reachable(src, []world.HexCoord{{}}, 0))
	assert.Empty(t, world.Reachable(src, nil, 5))
}

func TestReachable_UsesCheapestRoute(t *testing.T) {
	// A road running east along r=0 halves the cost.
	src := world.ResistanceFunc(func(c world.HexCoord) float64 {
		if c.Length() > 6 {
			return -1
		}
		if c.R == 0 {
			return 0.5
		}
		return 1
	})

	costs := world.Reachable(src, []world.HexCoord{{}}, 2)

	assert.Equal(t, 2.0, costs[world.NewHexCoord(4, 0, -4)])
	_, ok := costs[world.NewHexCoord(5, 0, -5)]
	assert.False(t, ok)
}

func TestReachable_SkipsImpassable(t *testing.T) {
	blocked := world.NewHexCoord(1, 0, -1)
	src := world.ResistanceFunc(func(c world.HexCoord) float64 {
		if c == blocked {
			return math.Inf(1)
		}
		return 1
	})

	cells := world.ReachableCells(src, []world.HexCoord{{}}, 3)

	assert.NotContains(t, cells, blocked)
	assert.Contains(t, cells, world.NewHexCoord(2, 0, -2))
}

func TestFindPath_Straight(t *testing.T) {
	goal := world.NewHexCoord(3, 0, -3)

	path, ok := world.FindPath(disk(5, 1), world.HexCoord{}, goal, 0)

	require.True(t, ok)
	require.Len(t, path, 3)
	assert.NotContains(t, path, world.HexCoord{}, "start is not part of the route")
	assert.Equal(t, goal, path[len(path)-1])
	prev := world.HexCoord{}
	for _, c := range path {
		assert.Equal(t, 1, world.Distance(prev, c))
		prev = c
	}
}

func TestFindPath_SameCell(t *testing.T) {
	path, ok := world.FindPath(disk(2, 1), world.HexCoord{}, world.HexCoord{}, 0)

	assert.True(t, ok)
	assert.NotNil(t, path)
	assert.Empty(t, path)
}

func TestFindPath_AroundWall(t *testing.T) {
	// Wall on q=1 except at the far end.
	src := world.ResistanceFunc(func(c world.HexCoord) float64 {
		if c.Length() > 4 {
			return -1
		}
		if c.Q == 1 && c.R > -3 {
			return -1
		}
		return 1
	})
	goal := world.NewHexCoord(2, 0, -2)

	path, ok := world.FindPath(src, world.HexCoord{}, goal, 0)

	require.True(t, ok)
	assert.Greater(t, len(path), 2)
	for _, c := range path {
		assert.GreaterOrEqual(t, src.Resistance(c), 0.0)
	}
}

func TestFindPath_Unreachable(t *testing.T) {
	src := disk(3, 1)

	path, ok := world.FindPath(src, world.HexCoord{}, world.NewHexCoord(5, 0, -5), 0)
	assert.False(t, ok)
	assert.Nil(t, path)

	path, ok = world.FindPath(src, world.HexCoord{}, world.NewHexCoord(3, 0, -3), 2)
	assert.False(t, ok)
	assert.Nil(t, path)
}

func TestFindPath_PrefersRoad(t *testing.T) {
	m := world.NewMap(4)
	for _, c := range world.CellsInRadius(world.HexCoord{}, 4) {
		m.Set(world.NewCell(world.CubeToOffset(c), world.TerrainForest))
	}
	for q := 0; q <= 3; q++ {
		require.True(t, m.SetRoad(world.Axial(q, 0), true))
	}

	path, ok := world.FindPath(m, world.HexCoord{}, world.Axial(3, 0), 0)

	require.True(t, ok)
	assert.Equal(t, 1.5, world.PathCost(m, path))
}

func TestCellResistance(t *testing.T) {
	plains := world.NewCell(world.Offset{}, world.TerrainPlains)
	assert.Equal(t, 1.0, plains.Resistance())
	plains.Road = true
	assert.Equal(t, 0.5, plains.Resistance())

	water := world.NewCell(world.Offset{Col: 1}, world.TerrainWater)
	assert.Less(t, water.Resistance(), 0.0)

	m := world.NewMap(1)
	assert.Less(t, m.Resistance(world.Axial(7, 7)), 0.0)
}

func TestGenerate_SmallMap(t *testing.T) {
	cfg := world.SmallTestConfig()

	m := world.Generate(cfg)

	assert.Equal(t, 1+3*cfg.Radius*(cfg.Radius+1), m.CellCount())
	assert.True(t, m.CanPlace(world.HexCoord{}))
	for _, c := range m.Coords() {
		assert.True(t, m.InBounds(c))
	}

	again := world.Generate(cfg)
	for o, cell := range m.Cells {
		other := again.Cells[o]
		require.NotNil(t, other)
		assert.Equal(t, cell.Terrain, other.Terrain)
		assert.Equal(t, cell.Road, other.Road)
	}

	total := 0
	for _, n := range world.TerrainCounts(m) {
		total += n
	}
	assert.Equal(t, m.CellCount(), total)
}

func TestFindBuildSites(t *testing.T) {
	m := world.NewMap(4)
	for _, c := range world.CellsInRadius(world.HexCoord{}, 4) {
		m.Set(world.NewCell(world.CubeToOffset(c), world.TerrainPlains))
	}
	m.Get(world.Axial(1, 0)).Terrain = world.TerrainWater
	taken := map[world.HexCoord]bool{world.Axial(-1, 0): true}

	sites := world.FindBuildSites(m, 0, 5, 2, taken)

	require.Len(t, sites, 5)
	for i, s := range sites {
		assert.True(t, m.CanPlace(s.Center))
		assert.False(t, taken[s.Center])
		for j := 0; j < i; j++ {
			assert.GreaterOrEqual(t, world.Distance(s.Center, sites[j].Center), 2)
		}
	}
}
