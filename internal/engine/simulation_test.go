package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/engine"
	"github.com/talgya/lifeon/internal/social"
	"github.com/talgya/lifeon/internal/turn"
	"github.com/talgya/lifeon/internal/world"
)

func flatMap(radius int) *world.Map {
	m := world.NewMap(radius)
	for _, c := range world.CellsInRadius(world.HexCoord{}, radius) {
		m.Set(world.NewCell(world.CubeToOffset(c), world.TerrainPlains))
	}
	return m
}

func newSim(t *testing.T, m *world.Map) *engine.Simulation {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return engine.NewSimulation(cat, m, turn.NewSystem(turn.Config{}, nil))
}

func hex(q, r int) world.HexCoord { return world.Axial(q, r) }

func endTurns(t *testing.T, s *engine.Simulation, n int) {
	t.Helper()
	for range n {
		require.True(t, s.EndTurn())
	}
}

func TestPlace_Validation(t *testing.T) {
	s := newSim(t, flatMap(4))

	_, err := s.Place("warehouse", hex(0, 0))
	require.NoError(t, err)

	_, err = s.Place("residence", hex(0, 0))
	assert.ErrorIs(t, err, engine.ErrCellOccupied)

	_, err = s.Place("residence", hex(9, 0))
	assert.ErrorIs(t, err, engine.ErrCellBlocked)

	_, err = s.Place("castle", hex(1, 0))
	assert.ErrorIs(t, err, engine.ErrUnknownArchetype)

	_, err = s.Place("lumber_mill", hex(2, 0))
	assert.ErrorIs(t, err, engine.ErrBuildCondition)
	assert.ErrorContains(t, err, "forestry")

	b, ok := s.BuildingAt(hex(0, 0))
	require.True(t, ok)
	assert.Equal(t, "warehouse", b.ArchetypeID())
	assert.Equal(t, 60, s.Resources().TotalCapacity())
}

func TestPlace_WaterAndRoadBlocked(t *testing.T) {
	m := flatMap(3)
	m.Get(hex(1, 0)).Terrain = world.TerrainWater
	m.SetRoad(hex(2, 0), true)
	s := newSim(t, m)

	_, err := s.Place("residence", hex(1, 0))
	assert.ErrorIs(t, err, engine.ErrCellBlocked)
	_, err = s.Place("residence", hex(2, 0))
	assert.ErrorIs(t, err, engine.ErrCellBlocked)
}

func TestTurns_ProduceConsumeGrow(t *testing.T) {
	s := newSim(t, flatMap(4))
	_, err := s.Place("warehouse", hex(0, 0))
	require.NoError(t, err)
	bush, err := s.Place("berry_bush", hex(2, 0))
	require.NoError(t, err)
	home, err := s.Place("residence", hex(-2, 0))
	require.NoError(t, err)

	assert.True(t, s.Resources().IsProducible("berry"))
	assert.Equal(t, 3, s.Environment().Value(bush.Center(), social.AuraBeauty))

	endTurns(t, s, 3)

	assert.Equal(t, 4, home.CurrentPopulation())
	assert.Equal(t, 5, s.Resources().Amount("berry"))
	assert.Equal(t, 3, home.CurrentExp())

	assert.Equal(t, 3, s.Stats.Round)
	assert.Equal(t, 4, s.Stats.Population)
	assert.Equal(t, 4, s.Stats.Unemployed)
	assert.Equal(t, 5, s.Stats.StoredGoods)
	assert.Equal(t, 3, s.Stats.Buildings)
}

func TestTurns_ResidenceUpgrades(t *testing.T) {
	s := newSim(t, flatMap(4))
	_, err := s.Place("warehouse", hex(0, 0))
	require.NoError(t, err)
	_, err = s.Place("berry_bush", hex(2, 0))
	require.NoError(t, err)
	_, err = s.Place("berry_bush", hex(0, 2))
	require.NoError(t, err)
	home, err := s.Place("residence", hex(-2, 0))
	require.NoError(t, err)

	endTurns(t, s, 11)

	assert.Equal(t, 1, home.LevelIndex())
	assert.Equal(t, "House", home.Name())
	assert.Equal(t, 12, home.MaxPopulation())

	var upgraded bool
	for _, e := range s.Events {
		if e.Category == "building" && e.Description == "House reached level 2" {
			upgraded = true
		}
	}
	assert.True(t, upgraded)
}

func TestResearch_UnlocksBuildCondition(t *testing.T) {
	s := newSim(t, flatMap(4))
	_, err := s.Place("library", hex(0, 0))
	require.NoError(t, err)

	require.True(t, s.Research().StartResearch("agriculture"))
	endTurns(t, s, 3)
	require.True(t, s.Research().IsUnlocked("agriculture"))

	require.True(t, s.Research().StartResearch("Forestry"))
	endTurns(t, s, 3)
	require.True(t, s.Research().IsUnlocked("forestry"))

	mill, err := s.Place("lumber_mill", hex(2, 0))
	require.NoError(t, err)
	assert.Len(t, mill.Occupied(), 7)
	assert.Equal(t, 10, s.Resources().TotalCapacity())

	_, err = s.Place("residence", hex(3, 0))
	assert.ErrorIs(t, err, engine.ErrCellOccupied)

	assert.Equal(t, 2, s.RefreshStats().UnlockedTechs)
}

func TestNewSimulation_StartingTechs(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	cat.StartingTechs = []string{"agriculture"}
	s := engine.NewSimulation(cat, flatMap(4), turn.NewSystem(turn.Config{}, nil))

	assert.True(t, s.Research().IsUnlocked("agriculture"))
	assert.Equal(t, "agriculture", s.Research().StartingNode())
	assert.True(t, s.Research().StartResearch("forestry"))
	assert.Equal(t, 1, s.RefreshStats().UnlockedTechs)
}

func TestDemolish(t *testing.T) {
	s := newSim(t, flatMap(4))
	store, err := s.Place("warehouse", hex(0, 0))
	require.NoError(t, err)
	bush, err := s.Place("berry_bush", hex(2, 0))
	require.NoError(t, err)
	endTurns(t, s, 1)
	require.Equal(t, 3, s.Resources().Amount("berry"))

	line, err := s.Lines().Create("berry", store, bush)
	require.NoError(t, err)
	require.NotNil(t, line)

	require.NoError(t, s.Demolish(bush.ID()))
	assert.False(t, s.Resources().IsProducible("berry"))
	assert.Zero(t, s.Environment().Value(hex(2, 0), social.AuraBeauty))
	assert.Empty(t, s.Lines().Lines())
	_, ok := s.BuildingAt(hex(2, 0))
	assert.False(t, ok)

	require.NoError(t, s.Demolish(store.ID()))
	assert.Zero(t, s.Resources().TotalCapacity())
	assert.Equal(t, 3, s.Resources().Amount("berry"), "goods survive a capacity loss")

	assert.ErrorIs(t, s.Demolish(store.ID()), engine.ErrUnknownBuilding)
	assert.Empty(t, s.Buildings())

	endTurns(t, s, 1)
}

func TestPlaceAuto(t *testing.T) {
	s := newSim(t, flatMap(2))
	a, err := s.PlaceAuto("residence")
	require.NoError(t, err)
	b, err := s.PlaceAuto("residence")
	require.NoError(t, err)
	assert.NotEqual(t, a.Center(), b.Center())
}

func TestSaveLoad(t *testing.T) {
	m := flatMap(4)
	s := newSim(t, m)
	store, err := s.Place("warehouse", hex(0, 0))
	require.NoError(t, err)
	bush, err := s.Place("berry_bush", hex(2, 0))
	require.NoError(t, err)
	home, err := s.Place("residence", hex(-2, 0))
	require.NoError(t, err)
	_, err = s.Place("library", hex(0, -2))
	require.NoError(t, err)
	require.True(t, s.Research().StartResearch("agriculture"))
	_, err = s.Lines().Create("berry", store, bush)
	require.NoError(t, err)
	endTurns(t, s, 2)

	data := s.Save("", "first")
	assert.Len(t, data.ID, 36)
	assert.Equal(t, "first", data.Name)
	assert.Len(t, data.Buildings, 4)

	restored := newSim(t, m)
	require.NoError(t, restored.Load(data))

	assert.Equal(t, 2, restored.Turns.Round())
	assert.Len(t, restored.Buildings(), 4)
	assert.Equal(t, s.Resources().Amount("berry"), restored.Resources().Amount("berry"))
	assert.InDelta(t, s.Research().Progress("agriculture"), restored.Research().Progress("agriculture"), 1e-9)
	assert.Equal(t, "agriculture", restored.Research().Active())
	assert.Len(t, restored.Lines().Lines(), 1)

	again, ok := restored.Building(home.ID())
	require.True(t, ok)
	assert.Equal(t, home.CurrentPopulation(), again.CurrentPopulation())
	assert.Equal(t, home.CurrentExp(), again.CurrentExp())
	assert.Equal(t, home.CurrentPopulation(), restored.HumanResources().TotalPopulation())

	// Loading twice replaces rather than duplicates.
	require.NoError(t, restored.Load(data))
	assert.Len(t, restored.Buildings(), 4)
	assert.Equal(t, 60, restored.Resources().TotalCapacity())
}

func TestLoad_SkipsUnknownArchetype(t *testing.T) {
	s := newSim(t, flatMap(3))
	_, err := s.Place("residence", hex(0, 0))
	require.NoError(t, err)
	data := s.Save("fixed-id", "x")
	data.Buildings[0].ArchetypeID = "gone"

	fresh := newSim(t, flatMap(3))
	require.NoError(t, fresh.Load(data))
	assert.Empty(t, fresh.Buildings())
	assert.Equal(t, "fixed-id", data.ID)
}

func TestRunner(t *testing.T) {
	s := newSim(t, flatMap(3))
	r := engine.NewRunner(s, 0)
	r.Poll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	err := r.Do(ctx, func(sim *engine.Simulation) error {
		_, err := sim.Place("residence", hex(0, 0))
		return err
	})
	require.NoError(t, err)

	ran, err := r.EndTurn(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, r.Do(ctx, func(*engine.Simulation) error { return boom }), boom)

	cancel()
	<-done
	assert.ErrorIs(t, r.Do(context.Background(), func(*engine.Simulation) error { return nil }), engine.ErrStopped)
	assert.Equal(t, 1, s.Turns.Round())
}

func TestRunner_AutoTurnWaitsForCooldown(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	clock := turn.NewManualClock(time.Unix(0, 0))
	s := engine.NewSimulation(cat, flatMap(2), turn.NewSystem(turn.Config{Cooldown: time.Hour}, clock))

	r := engine.NewRunner(s, time.Millisecond)
	r.Poll = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	round := func() int {
		n := -1
		_ = r.Do(ctx, func(sim *engine.Simulation) error {
			n = sim.Turns.Round()
			return nil
		})
		return n
	}

	require.Eventually(t, func() bool { return round() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, round(), "cooldown block holds the next turn")

	require.NoError(t, r.Do(ctx, func(*engine.Simulation) error {
		clock.Advance(time.Hour)
		return nil
	}))
	require.Eventually(t, func() bool { return round() >= 2 }, time.Second, time.Millisecond)
}

func TestOnTurnReport(t *testing.T) {
	s := newSim(t, flatMap(3))
	var reports []engine.TurnReport
	s.OnTurnReport(func(r engine.TurnReport) { reports = append(reports, r) })

	_, err := s.Place("residence", hex(0, 0))
	require.NoError(t, err)
	endTurns(t, s, 2)

	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Stats.Round)
	require.Len(t, reports[0].Events, 1)
	assert.Equal(t, "building", reports[0].Events[0].Category)
	assert.Empty(t, reports[1].Events)
	assert.Equal(t, 2, reports[1].Stats.Round)
}
