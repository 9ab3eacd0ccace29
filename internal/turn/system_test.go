package turn_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/lifeon/internal/turn"
)

func newSystem(cooldown time.Duration) (*turn.System, *turn.ManualClock) {
	clock := turn.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return turn.NewSystem(turn.Config{Cooldown: cooldown}, clock), clock
}

func TestEndTurn_FiresPhasesInOrder(t *testing.T) {
	// Arrange
	sys, _ := newSystem(0)
	var got []turn.Phase
	sys.Subscribe(func(p turn.Phase) { got = append(got, p) })

	// Act
	ok := sys.EndTurn()

	// Assert
	require.True(t, ok)
	assert.Equal(t, turn.Phases[:], got)
	assert.Equal(t, 1, sys.Round())
}

func TestEndTurn_BlockedIsNoop(t *testing.T) {
	// Arrange
	sys, _ := newSystem(0)
	fired := 0
	sys.Subscribe(func(turn.Phase) { fired++ })
	id := sys.AddManualBlock("animation")

	// Act
	ok := sys.EndTurn()

	// Assert
	assert.False(t, ok)
	assert.Zero(t, fired)
	assert.Zero(t, sys.Round())

	require.True(t, sys.RemoveBlock(id))
	assert.True(t, sys.EndTurn())
	assert.Equal(t, 1, sys.Round())
}

func TestEndTurn_CooldownBlockAfterEndPrep(t *testing.T) {
	// Arrange
	sys, clock := newSystem(time.Second)
	var blockedAt []bool
	sys.Subscribe(func(p turn.Phase) { blockedAt = append(blockedAt, sys.IsBlocked()) })

	// Act
	require.True(t, sys.EndTurn())

	// Assert
	assert.Equal(t, []bool{false, true, true, true, true}, blockedAt)
	assert.False(t, sys.EndTurn(), "cooldown still active")

	clock.Advance(500 * time.Millisecond)
	assert.Zero(t, sys.Tick())
	assert.True(t, sys.IsBlocked())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, sys.Tick())
	assert.False(t, sys.IsBlocked())
	assert.True(t, sys.EndTurn())
	assert.Equal(t, 2, sys.Round())
}

func TestBlocks_MonotonicIDs(t *testing.T) {
	sys, clock := newSystem(0)
	var counts []int
	sys.OnBlockCountChanged(func(n int) { counts = append(counts, n) })

	a := sys.AddManualBlock("a")
	b := sys.AddTimedBlock("b", time.Minute)
	c := sys.AddManualBlock("c")

	assert.Equal(t, []int{1, 2, 3}, []int{a, b, c})
	assert.Equal(t, 3, sys.BlockCount())
	assert.False(t, sys.RemoveBlock(99))

	blocks := sys.Blocks()
	require.Len(t, blocks, 3)
	assert.True(t, blocks[1].Timed())
	assert.False(t, blocks[0].Timed())

	clock.Advance(time.Hour)
	sys.Tick()
	assert.Equal(t, 2, sys.BlockCount(), "manual blocks never expire")

	sys.RemoveBlock(a)
	d := sys.AddManualBlock("d")
	assert.Equal(t, 4, d, "ids are not reused")

	assert.Equal(t, []int{1, 2, 3, 2, 1, 2}, counts)
}

func TestTimedBlock_NonPositiveDurationExpires(t *testing.T) {
	sys, clock := newSystem(0)
	sys.AddTimedBlock("instant", 0)
	sys.AddTimedBlock("negative", -time.Second)

	blocks := sys.Blocks()
	require.Len(t, blocks, 2)
	for _, b := range blocks {
		assert.True(t, b.Timed())
		require.NotNil(t, b.Duration)
		assert.Zero(t, *b.Duration)
	}
	assert.False(t, sys.EndTurn())

	clock.Advance(time.Millisecond)
	sys.Tick()
	assert.False(t, sys.IsBlocked())
	assert.True(t, sys.EndTurn())
}

func TestEndTurn_ReentrantCallRefused(t *testing.T) {
	sys, _ := newSystem(0)
	var inner []bool
	sys.Subscribe(func(p turn.Phase) {
		if p == turn.PhaseTurnEnd {
			inner = append(inner, sys.EndTurn())
		}
	})

	require.True(t, sys.EndTurn())
	assert.Equal(t, []bool{false}, inner)
	assert.Equal(t, 1, sys.Round())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	sys, _ := newSystem(0)
	var order []string
	var unsubB func()
	sys.Subscribe(func(p turn.Phase) {
		if p == turn.PhaseEndPrep {
			order = append(order, "a")
			unsubB()
		}
	})
	unsubB = sys.Subscribe(func(p turn.Phase) {
		order = append(order, "b:"+p.String())
	})

	sys.EndTurn()

	assert.Equal(t, []string{"a", "b:EndPrep"}, order)
}

func TestSaveLoad(t *testing.T) {
	sys, _ := newSystem(0)
	sys.EndTurn()
	sys.EndTurn()

	data := sys.Save()
	restored, _ := newSystem(0)
	restored.Load(data)

	assert.Equal(t, 2, restored.Round())
}
