package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/lifeon/internal/building"
	"github.com/talgya/lifeon/internal/economy"
	"github.com/talgya/lifeon/internal/research"
	"github.com/talgya/lifeon/internal/transport"
	"github.com/talgya/lifeon/internal/turn"
	"github.com/talgya/lifeon/internal/world"
)

// SaveData is a complete settlement snapshot.
type SaveData struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	SavedAt time.Time       `json:"saved_at"`
	Gen     world.GenConfig `json:"gen"`

	Turn      turn.SaveData       `json:"turn"`
	Buildings []building.SaveData `json:"buildings"`
	Inventory economy.SaveData    `json:"inventory"`
	Research  research.SaveData   `json:"research"`
	Transport transport.SaveData  `json:"transport"`
}

// Save captures the settlement. An empty id gets a fresh one.
func (s *Simulation) Save(id, name string) SaveData {
	if id == "" {
		id = uuid.NewString()
	}
	data := SaveData{
		ID:        id,
		Name:      name,
		SavedAt:   time.Now().UTC(),
		Gen:       s.Gen,
		Turn:      s.Turns.Save(),
		Buildings: make([]building.SaveData, 0, len(s.buildings)),
		Inventory: s.resources.Save(),
		Research:  s.research.Save(),
		Transport: s.lines.Save(),
	}
	for _, b := range s.buildings {
		data.Buildings = append(data.Buildings, b.Save())
	}
	return data
}

// Load replaces the settlement with a snapshot taken on the same map.
// Buildings come back first so the inventory finds its storage, then the
// round counter, inventory, research and transport lines. Buildings whose
// archetype is gone or whose cells are no longer free are skipped.
func (s *Simulation) Load(data SaveData) error {
	for _, b := range slices.Clone(s.buildings) {
		if err := s.Demolish(b.ID()); err != nil {
			return fmt.Errorf("load: clear settlement: %w", err)
		}
	}
	s.Events = nil
	s.pending = nil

	for _, rec := range data.Buildings {
		arch, ok := s.Catalog.Archetype(rec.ArchetypeID)
		if !ok {
			slog.Warn("load: skipping building with unknown archetype", "building", rec.InstanceID, "archetype", rec.ArchetypeID)
			continue
		}
		if !s.cellsFree(rec.Occupied) {
			slog.Warn("load: skipping building on blocked cells", "building", rec.InstanceID, "center", rec.Center)
			continue
		}
		if _, dup := s.index[rec.InstanceID]; dup && rec.InstanceID != "" {
			slog.Warn("load: skipping duplicate building", "building", rec.InstanceID)
			continue
		}
		s.attach(building.Restore(arch, rec, s))
	}

	s.Turns.Load(data.Turn)
	s.resources.Load(data.Inventory, s.Catalog)
	s.research.Load(data.Research)
	s.lines.Load(data.Transport)
	if data.Gen.Radius > 0 {
		s.Gen = data.Gen
	}
	s.updateStats()

	slog.Info("settlement loaded", "save", data.ID, "name", data.Name, "round", s.Turns.Round(), "buildings", len(s.buildings))
	return nil
}

func (s *Simulation) cellsFree(cells []world.HexCoord) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !s.WorldMap.CanPlace(c) {
			return false
		}
		if _, taken := s.occupancy[c]; taken {
			return false
		}
	}
	return true
}
