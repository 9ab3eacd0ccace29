package social

import (
	"sort"

	"github.com/talgya/lifeon/internal/world"
)

// AuraCategory is a kind of environment effect.
type AuraCategory string

const (
	AuraSecurity AuraCategory = "security"
	AuraHealth   AuraCategory = "health"
	AuraBeauty   AuraCategory = "beauty"
)

// Ring gives every cell within Radius of the source at least Value.
type Ring struct {
	Radius int
	Value  int
}

type auraKey struct {
	category AuraCategory
	cell     world.HexCoord
}

type auraRecord struct {
	category AuraCategory
	cells    map[world.HexCoord]int
}

// Environment sums aura values per cell and category. Within one source
// each cell takes its strongest ring; different sources add up.
type Environment struct {
	sources map[string]*auraRecord
	grid    map[auraKey]int
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		sources: make(map[string]*auraRecord),
		grid:    make(map[auraKey]int),
	}
}

// AddAura applies an aura from sourceID, replacing any previous one with
// the same id. Rings with a negative radius or non-positive value are ignored.
func (e *Environment) AddAura(sourceID string, center world.HexCoord, cat AuraCategory, rings []Ring) {
	if sourceID == "" {
		return
	}
	e.RemoveAura(sourceID)
	if len(rings) == 0 {
		return
	}

	rec := &auraRecord{category: cat, cells: make(map[world.HexCoord]int)}
	for _, ring := range rings {
		if ring.Radius < 0 || ring.Value <= 0 {
			continue
		}
		for _, c := range world.CellsInRadius(center, ring.Radius) {
			if ring.Value > rec.cells[c] {
				rec.cells[c] = ring.Value
			}
		}
	}
	e.sources[sourceID] = rec

	for c, v := range rec.cells {
		e.grid[auraKey{category: cat, cell: c}] += v
	}
}

// RemoveAura withdraws a source's contribution.
func (e *Environment) RemoveAura(sourceID string) {
	rec, ok := e.sources[sourceID]
	if !ok {
		return
	}
	for c, v := range rec.cells {
		k := auraKey{category: rec.category, cell: c}
		if left := e.grid[k] - v; left > 0 {
			e.grid[k] = left
		} else {
			delete(e.grid, k)
		}
	}
	delete(e.sources, sourceID)
}

// Value returns the summed aura value of a category at a cell.
func (e *Environment) Value(cell world.HexCoord, cat AuraCategory) int {
	return e.grid[auraKey{category: cat, cell: cell}]
}

// Sources returns the active source ids sorted.
func (e *Environment) Sources() []string {
	ids := make([]string, 0, len(e.sources))
	for id := range e.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
