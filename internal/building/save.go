package building

import (
	"maps"

	"github.com/talgya/lifeon/internal/world"
)

// SaveData is the persisted form of a building.
type SaveData struct {
	ArchetypeID string           `json:"archetype_id"`
	Occupied    []world.HexCoord `json:"occupied"`
	Center      world.HexCoord   `json:"center"`
	InstanceID  string           `json:"instance_id"`
	Level       int              `json:"level"`
	Exp         int              `json:"exp"`
	Population  int              `json:"population"`
	Workers     int              `json:"workers"`

	Ints    map[string]int     `json:"ints,omitempty"`
	Floats  map[string]float64 `json:"floats,omitempty"`
	Vectors map[string]Vector  `json:"vectors,omitempty"`
	Strings map[string]string  `json:"strings,omitempty"`
}

// Save returns the persisted record of the building.
func (b *Building) Save() SaveData {
	return SaveData{
		ArchetypeID: b.ArchetypeID(),
		Occupied:    b.Occupied(),
		Center:      b.center,
		InstanceID:  b.id,
		Level:       b.level,
		Exp:         b.exp,
		Population:  b.population,
		Workers:     b.workers,
		Ints:        maps.Clone(b.ints),
		Floats:      maps.Clone(b.floats),
		Vectors:     maps.Clone(b.vectors),
		Strings:     maps.Clone(b.strs),
	}
}
