package world

import (
	"fmt"
	"math"
	"sort"
)

// Terrain types for grid cells.
type Terrain uint8

const (
	TerrainPlains   Terrain = iota // Open ground, buildable
	TerrainForest                  // Buildable, slower to cross
	TerrainMountain                // Obstacle
	TerrainWater                   // Impassable
)

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainMountain:
		return "Mountain"
	case TerrainWater:
		return "Water"
	default:
		return "Unknown"
	}
}

// Cell is a single tile of the spatial cost map.
type Cell struct {
	Offset  Offset   `json:"offset"`
	Coord   HexCoord `json:"coord"`
	Terrain Terrain  `json:"terrain"`
	Road    bool     `json:"road"`

	Elevation float64 `json:"elevation"` // 0.0 (sea level) to 1.0 (peak)
}

// NewCell creates a cell at the given offset position.
func NewCell(o Offset, t Terrain) *Cell {
	return &Cell{Offset: o, Coord: OffsetToCube(o), Terrain: t}
}

// Resistance returns the movement cost of entering the cell.
// Negative means impassable.
func (c *Cell) Resistance() float64 {
	switch c.Terrain {
	case TerrainWater, TerrainMountain:
		return -1
	}
	if c.Road {
		return 0.5
	}
	if c.Terrain == TerrainForest {
		return 1.5
	}
	return 1
}

// Obstacle reports whether nothing may be built on the cell.
func (c *Cell) Obstacle() bool {
	return c.Terrain == TerrainWater || c.Terrain == TerrainMountain
}

// ResistanceSource supplies the cost of entering a cell.
// A negative or infinite value marks the cell impassable.
type ResistanceSource interface {
	Resistance(coord HexCoord) float64
}

// ResistanceFunc adapts a function to ResistanceSource.
type ResistanceFunc func(coord HexCoord) float64

// Resistance calls f(coord).
func (f ResistanceFunc) Resistance(coord HexCoord) float64 { return f(coord) }

// Map holds the cell grid keyed by offset coordinate.
type Map struct {
	Cells  map[Offset]*Cell `json:"-"`
	Radius int              `json:"radius"`
}

// NewMap creates an empty map with the given radius.
func NewMap(radius int) *Map {
	return &Map{
		Cells:  make(map[Offset]*Cell),
		Radius: radius,
	}
}

// Get returns the cell at the given coordinate, or nil if absent.
func (m *Map) Get(coord HexCoord) *Cell {
	return m.Cells[CubeToOffset(coord)]
}

// Set places a cell on the map.
func (m *Map) Set(c *Cell) {
	m.Cells[c.Offset] = c
}

// Resistance implements ResistanceSource. Cells outside the map are impassable.
func (m *Map) Resistance(coord HexCoord) float64 {
	c := m.Get(coord)
	if c == nil {
		return -1
	}
	return c.Resistance()
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return coord.Length() <= m.Radius
}

// CanPlace reports whether a building may occupy the coordinate:
// the cell exists, is not an obstacle, and carries no road.
func (m *Map) CanPlace(coord HexCoord) bool {
	c := m.Get(coord)
	return c != nil && !c.Obstacle() && !c.Road
}

// SetRoad lays or removes a road on an existing cell.
func (m *Map) SetRoad(coord HexCoord, road bool) bool {
	c := m.Get(coord)
	if c == nil {
		return false
	}
	c.Road = road
	return true
}

// Coords returns every cell coordinate sorted by (r, q).
func (m *Map) Coords() []HexCoord {
	out := make([]HexCoord, 0, len(m.Cells))
	for _, c := range m.Cells {
		out = append(out, c.Coord)
	}
	SortCoords(out)
	return out
}

// CellCount returns the total number of cells in the map.
func (m *Map) CellCount() int {
	return len(m.Cells)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, cells=%d)", m.Radius, m.CellCount())
}

// SortCoords orders coordinates by r, then q.
func SortCoords(cs []HexCoord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].R != cs[j].R {
			return cs[i].R < cs[j].R
		}
		return cs[i].Q < cs[j].Q
	})
}

func impassable(cost float64) bool {
	return cost < 0 || math.IsInf(cost, 0) || math.IsNaN(cost)
}
