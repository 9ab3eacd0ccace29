// Package world provides the hex grid, terrain cost map, and spatial search.
// Coordinates are cube coordinates (q, r, s) with q+r+s = 0; offset
// coordinates only appear at the Map boundary.
package world

import "fmt"

// HexCoord represents a position on the hex grid using cube coordinates.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
	S int `json:"s"`
}

// NewHexCoord builds a coordinate and panics if q+r+s != 0.
func NewHexCoord(q, r, s int) HexCoord {
	if q+r+s != 0 {
		panic(fmt.Sprintf("world: invalid cube coordinate (%d, %d, %d): q+r+s must be 0", q, r, s))
	}
	return HexCoord{Q: q, R: r, S: s}
}

// Axial builds a coordinate from its q and r components.
func Axial(q, r int) HexCoord {
	return HexCoord{Q: q, R: r, S: -q - r}
}

// Valid reports whether the coordinate satisfies the cube constraint.
func (h HexCoord) Valid() bool {
	return h.Q+h.R+h.S == 0
}

// Add returns h + o.
func (h HexCoord) Add(o HexCoord) HexCoord {
	return NewHexCoord(h.Q+o.Q, h.R+o.R, h.S+o.S)
}

// Sub returns h - o.
func (h HexCoord) Sub(o HexCoord) HexCoord {
	return NewHexCoord(h.Q-o.Q, h.R-o.R, h.S-o.S)
}

// Scale returns h * k.
func (h HexCoord) Scale(k int) HexCoord {
	return NewHexCoord(h.Q*k, h.R*k, h.S*k)
}

// Length returns the hex distance to the origin.
func (h HexCoord) Length() int {
	return (abs(h.Q) + abs(h.R) + abs(h.S)) / 2
}

// String returns the coordinate as "(q, r, s)".
func (h HexCoord) String() string {
	return fmt.Sprintf("(%d, %d, %d)", h.Q, h.R, h.S)
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return a.Sub(b).Length()
}

// Direction names one of the six hex neighbors.
type Direction uint8

const (
	DirNone Direction = iota
	DirNorthEast
	DirEast
	DirSouthEast
	DirSouthWest
	DirWest
	DirNorthWest
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirNorthEast:
		return "NorthEast"
	case DirEast:
		return "East"
	case DirSouthEast:
		return "SouthEast"
	case DirSouthWest:
		return "SouthWest"
	case DirWest:
		return "West"
	case DirNorthWest:
		return "NorthWest"
	default:
		return "None"
	}
}

// HexNeighborDirections defines the six unit offsets, indexed NE, E, SE, SW, W, NW.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: -1, S: 0},
	{Q: 1, R: 0, S: -1},
	{Q: 0, R: 1, S: -1},
	{Q: -1, R: 1, S: 0},
	{Q: -1, R: 0, S: 1},
	{Q: 0, R: -1, S: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = h.Add(dir)
	}
	return result
}

// DirectionBetween returns the direction from one cell to an adjacent one,
// or DirNone if the cells are not neighbors.
func DirectionBetween(from, to HexCoord) Direction {
	diff := to.Sub(from)
	for i, dir := range HexNeighborDirections {
		if diff == dir {
			return Direction(i + 1)
		}
	}
	return DirNone
}

// CellsInRadius returns every coordinate within radius of center, edge included.
// The result holds exactly 1+3r(r+1) cells for r >= 0 and none for r < 0.
func CellsInRadius(center HexCoord, radius int) []HexCoord {
	return cellsInRadius(center, radius, true)
}

// CellsInRadiusExclusive is CellsInRadius without the outermost ring.
func CellsInRadiusExclusive(center HexCoord, radius int) []HexCoord {
	return cellsInRadius(center, radius, false)
}

func cellsInRadius(center HexCoord, radius int, includeEdge bool) []HexCoord {
	if radius < 0 {
		return nil
	}
	result := make([]HexCoord, 0, 1+3*radius*(radius+1))
	for q := -radius; q <= radius; q++ {
		r1 := max(-radius, -q-radius)
		r2 := min(radius, -q+radius)
		for r := r1; r <= r2; r++ {
			offset := NewHexCoord(q, r, -q-r)
			if includeEdge || offset.Length() < radius {
				result = append(result, center.Add(offset))
			}
		}
	}
	return result
}

// Offset is an odd-r (pointy top) offset coordinate used by tile storage.
type Offset struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// OffsetToCube converts an odd-r offset coordinate to cube coordinates.
func OffsetToCube(o Offset) HexCoord {
	q := o.Col - (o.Row-(o.Row&1))/2
	r := o.Row
	return NewHexCoord(q, r, -q-r)
}

// CubeToOffset converts cube coordinates to an odd-r offset coordinate.
func CubeToOffset(h HexCoord) Offset {
	col := h.Q + (h.R-(h.R&1))/2
	return Offset{Col: col, Row: h.R}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
