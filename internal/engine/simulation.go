// Simulation ties together all settlement systems and owns every building.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/talgya/lifeon/internal/building"
	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/economy"
	"github.com/talgya/lifeon/internal/research"
	"github.com/talgya/lifeon/internal/social"
	"github.com/talgya/lifeon/internal/transport"
	"github.com/talgya/lifeon/internal/turn"
	"github.com/talgya/lifeon/internal/world"
)

// Placement errors.
var (
	ErrUnknownArchetype = errors.New("unknown archetype")
	ErrCellBlocked      = errors.New("cell cannot be built on")
	ErrCellOccupied     = errors.New("cell already occupied")
	ErrBuildCondition   = errors.New("build conditions not met")
	ErrUnknownBuilding  = errors.New("unknown building")
)

// Simulation holds the complete settlement state and wires systems together.
// It implements building.Context. It is not safe for concurrent use; run it
// behind a Runner.
type Simulation struct {
	Catalog  *catalog.Catalog
	WorldMap *world.Map
	Gen      world.GenConfig // zero when the map was not generated
	Turns    *turn.System
	Events   []Event // recent events, trimmed every turn
	Stats    SimStats

	resources *economy.Network
	hr        *social.HumanResources
	env       *social.Environment
	research  *research.Tracker
	lines     *transport.Manager

	buildings []*building.Building // placement order
	index     map[string]*building.Building
	occupancy map[world.HexCoord]*building.Building
	detach    map[string][]func()

	pending []Event // events since the last turn report
	reports []func(TurnReport)
}

// Event is a notable occurrence in the settlement.
type Event struct {
	Round       int    `json:"round"`
	Description string `json:"description"`
	Category    string `json:"category"` // "building", "research", "turn"
}

// SimStats tracks aggregate settlement statistics.
type SimStats struct {
	Round         int `json:"round"`
	Buildings     int `json:"buildings"`
	Population    int `json:"population"`
	Workers       int `json:"workers"`
	Unemployed    int `json:"unemployed"`
	StoredGoods   int `json:"stored_goods"`
	Capacity      int `json:"capacity"`
	UnlockedTechs int `json:"unlocked_techs"`
}

// TurnReport summarizes one ended turn.
type TurnReport struct {
	Stats  SimStats `json:"stats"`
	Events []Event  `json:"events"`
}

const maxEvents = 1000

// NewSimulation creates an empty settlement on m.
func NewSimulation(cat *catalog.Catalog, m *world.Map, turns *turn.System) *Simulation {
	s := &Simulation{
		Catalog:   cat,
		WorldMap:  m,
		Turns:     turns,
		resources: economy.NewNetwork(),
		hr:        social.NewHumanResources(),
		env:       social.NewEnvironment(),
		research:  research.NewTracker(cat.Techs, research.WithUnlocked(cat.StartingTechs...)),
		index:     make(map[string]*building.Building),
		occupancy: make(map[world.HexCoord]*building.Building),
		detach:    make(map[string][]func()),
	}
	s.lines = transport.NewManager(m, s, func(id string) bool {
		_, ok := cat.Supply(id)
		return ok
	})

	s.research.OnCompleted(func(n *catalog.TechNode) {
		s.addEvent("research", fmt.Sprintf("research %s completed", n.Name))
	})
	s.research.OnStarted(func(n *catalog.TechNode) {
		slog.Info("research started", "tech", n.ID)
	})
	s.Turns.Subscribe(s.onPhase)
	return s
}

// Resources returns the resource network.
func (s *Simulation) Resources() *economy.Network { return s.resources }

// HumanResources returns the population pool.
func (s *Simulation) HumanResources() *social.HumanResources { return s.hr }

// Environment returns the aura grid.
func (s *Simulation) Environment() *social.Environment { return s.env }

// Research returns the research tracker.
func (s *Simulation) Research() *research.Tracker { return s.research }

// Lines returns the transport line manager.
func (s *Simulation) Lines() *transport.Manager { return s.lines }

// Supply looks up a supply definition.
func (s *Simulation) Supply(id string) (*catalog.Supply, bool) { return s.Catalog.Supply(id) }

// Buildings returns every building in placement order.
func (s *Simulation) Buildings() []*building.Building { return slices.Clone(s.buildings) }

// Building returns a building by instance id.
func (s *Simulation) Building(id string) (*building.Building, bool) {
	b, ok := s.index[id]
	return b, ok
}

// BuildingAt returns the building occupying a cell.
func (s *Simulation) BuildingAt(c world.HexCoord) (*building.Building, bool) {
	b, ok := s.occupancy[c]
	return b, ok
}

// NodeAt implements transport.Resolver.
func (s *Simulation) NodeAt(c world.HexCoord) (transport.Node, bool) {
	b, ok := s.occupancy[c]
	if !ok {
		return nil, false
	}
	return b, true
}

// Occupied returns the set of cells covered by buildings.
func (s *Simulation) Occupied() map[world.HexCoord]bool {
	out := make(map[world.HexCoord]bool, len(s.occupancy))
	for c := range s.occupancy {
		out[c] = true
	}
	return out
}

// CanPlace checks whether an archetype fits at center. It returns the
// footprint on success.
func (s *Simulation) CanPlace(arch *catalog.Archetype, center world.HexCoord) ([]world.HexCoord, error) {
	cells := world.FootprintCells(center, arch.Size)
	for _, c := range cells {
		if !s.WorldMap.CanPlace(c) {
			return nil, fmt.Errorf("%w: %s", ErrCellBlocked, c)
		}
		if other, ok := s.occupancy[c]; ok {
			return nil, fmt.Errorf("%w: %s by %s", ErrCellOccupied, c, other.Name())
		}
	}
	if ok, reason := building.EvaluateConditions(arch.BuildConditions, nil, s); !ok {
		return nil, fmt.Errorf("%w: %s", ErrBuildCondition, reason)
	}
	return cells, nil
}

// Place builds a new instance of an archetype centered on center.
func (s *Simulation) Place(archetypeID string, center world.HexCoord) (*building.Building, error) {
	arch, ok := s.Catalog.Archetype(archetypeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchetype, archetypeID)
	}
	cells, err := s.CanPlace(arch, center)
	if err != nil {
		return nil, fmt.Errorf("place %s at %s: %w", archetypeID, center, err)
	}

	b := building.New(arch, cells, center, s)
	s.attach(b)
	s.addEvent("building", fmt.Sprintf("%s built at %s", b.Name(), center))
	slog.Info("building placed", "building", b.ID(), "archetype", archetypeID, "center", center)
	return b, nil
}

// PlaceAuto places an archetype on the best free site of the map.
func (s *Simulation) PlaceAuto(archetypeID string) (*building.Building, error) {
	arch, ok := s.Catalog.Archetype(archetypeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchetype, archetypeID)
	}
	sites := world.FindBuildSites(s.WorldMap, arch.Size, 1, 0, s.Occupied())
	if len(sites) == 0 {
		return nil, fmt.Errorf("place %s: %w: no free site", archetypeID, ErrCellBlocked)
	}
	return s.Place(archetypeID, sites[0].Center)
}

// attach registers a building with every network, the occupancy index and
// the turn system.
func (s *Simulation) attach(b *building.Building) {
	s.buildings = append(s.buildings, b)
	s.index[b.ID()] = b
	for _, c := range b.Occupied() {
		s.occupancy[c] = b
	}

	s.resources.Register(b)
	s.hr.Register(b)

	id := b.ID()
	unsubState := b.Subscribe(s.onBuildingChanged)
	unsubTurn := s.Turns.Subscribe(func(p turn.Phase) {
		// Listener snapshots may still hold a building demolished earlier
		// in the same phase.
		if _, ok := s.index[id]; ok {
			b.HandlePhase(p)
		}
	})
	s.detach[id] = []func(){unsubState, unsubTurn}
}

// Demolish removes a building. It leaves every network before its rules
// are torn down.
func (s *Simulation) Demolish(id string) error {
	b, ok := s.index[id]
	if !ok {
		return fmt.Errorf("demolish %s: %w", id, ErrUnknownBuilding)
	}

	s.resources.Unregister(b)
	s.hr.Unregister(b)
	for _, fn := range s.detach[id] {
		fn()
	}
	delete(s.detach, id)
	b.Detach()

	for _, c := range b.Occupied() {
		if s.occupancy[c] == b {
			delete(s.occupancy, c)
		}
	}
	s.lines.DropNode(b.Center())
	delete(s.index, id)
	s.buildings = slices.DeleteFunc(s.buildings, func(x *building.Building) bool { return x == b })

	s.addEvent("building", fmt.Sprintf("%s at %s demolished", b.Name(), b.Center()))
	slog.Info("building demolished", "building", id)
	return nil
}

func (s *Simulation) onBuildingChanged(b *building.Building, field building.StateField) {
	switch field {
	case building.FieldMaxStorageCapacity:
		s.resources.CapacityChanged(b)
	case building.FieldProducts:
		s.resources.UpdateProducts(b)
	case building.FieldCurrentPopulation, building.FieldCurrentWorkers:
		s.hr.Update(b)
	case building.FieldLevelIndex:
		s.resources.CapacityChanged(b)
		s.hr.Update(b)
		s.addEvent("building", fmt.Sprintf("%s reached level %d", b.Name(), b.LevelIndex()+1))
	}
}

func (s *Simulation) onPhase(p turn.Phase) {
	if p == turn.PhaseStartPrep && len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// OnTurnReport registers fn to receive a report after every ended turn.
// Reports carry the events recorded since the previous report.
func (s *Simulation) OnTurnReport(fn func(TurnReport)) {
	s.reports = append(s.reports, fn)
}

// EndTurn ends the current turn and refreshes the statistics. It reports
// whether the turn ran.
func (s *Simulation) EndTurn() bool {
	if !s.Turns.EndTurn() {
		return false
	}
	s.updateStats()
	if len(s.reports) > 0 {
		report := TurnReport{Stats: s.Stats, Events: s.pending}
		for _, fn := range s.reports {
			fn(report)
		}
	}
	s.pending = nil
	slog.Info("turn report",
		"round", s.Stats.Round,
		"buildings", s.Stats.Buildings,
		"population", s.Stats.Population,
		"workers", s.Stats.Workers,
		"unemployed", s.Stats.Unemployed,
		"stored", s.Stats.StoredGoods,
		"capacity", s.Stats.Capacity,
		"research", s.research.Active(),
	)
	return true
}

func (s *Simulation) addEvent(category, desc string) {
	e := Event{
		Round:       s.Turns.Round(),
		Description: desc,
		Category:    category,
	}
	s.Events = append(s.Events, e)
	if len(s.reports) > 0 {
		s.pending = append(s.pending, e)
	}
}

func (s *Simulation) updateStats() {
	stored := 0
	for _, st := range s.resources.Snapshot() {
		stored += st.Amount
	}
	unlocked := 0
	for _, n := range s.research.Nodes() {
		if s.research.IsUnlocked(n.ID) {
			unlocked++
		}
	}
	s.Stats = SimStats{
		Round:         s.Turns.Round(),
		Buildings:     len(s.buildings),
		Population:    s.hr.TotalPopulation(),
		Workers:       s.hr.TotalWorkers(),
		Unemployed:    s.hr.Unemployed(),
		StoredGoods:   stored,
		Capacity:      s.resources.TotalCapacity(),
		UnlockedTechs: unlocked,
	}
}

// RefreshStats recomputes Stats without ending a turn.
func (s *Simulation) RefreshStats() SimStats {
	s.updateStats()
	return s.Stats
}

// Generate creates an empty settlement on a freshly generated map. A zero
// seed is replaced by a random one so the map can be regenerated on load.
func Generate(cat *catalog.Catalog, gen world.GenConfig, turns *turn.System) *Simulation {
	if gen.Seed == 0 {
		gen.Seed = rand.Int63()
	}
	s := NewSimulation(cat, world.Generate(gen), turns)
	s.Gen = gen
	slog.Info("map generated", "radius", gen.Radius, "seed", gen.Seed, "cells", s.WorldMap.CellCount())
	return s
}
