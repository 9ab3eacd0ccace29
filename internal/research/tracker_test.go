package research_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/research"
)

func techTree() []catalog.TechNode {
	return []catalog.TechNode{
		{ID: "A", Cost: 5},
		{ID: "B", Cost: 10, Dependencies: []string{"A"}},
		{ID: "C", Cost: 4, Dependencies: []string{"A"}},
		{ID: "Free", Cost: 0},
		{ID: "D", Cost: 3, Dependencies: []string{"B", "C"}},
	}
}

func TestStartResearch_DependencyGate(t *testing.T) {
	// Arrange
	tr := research.NewTracker(techTree())
	require.True(t, tr.ForceUnlock("A"))

	// Act
	okB := tr.StartResearch("B")

	// Assert
	assert.True(t, okB)
	assert.True(t, tr.IsResearching("B"))
	assert.Equal(t, "B", tr.Active())

	fresh := research.NewTracker(techTree())
	assert.False(t, fresh.StartResearch("C"), "A is not unlocked")
	assert.False(t, fresh.IsResearching("C"))
	assert.Zero(t, fresh.Progress("C"))
}

func TestNewTracker_Options(t *testing.T) {
	var completed []string
	tr := research.NewTracker(techTree(), research.WithUnlocked("a", "C", "missing"))
	tr.OnCompleted(func(n *catalog.TechNode) { completed = append(completed, n.ID) })

	assert.True(t, tr.IsUnlocked("A"))
	assert.True(t, tr.IsUnlocked("C"))
	assert.False(t, tr.IsUnlocked("missing"))
	assert.Equal(t, []string{"A", "C"}, tr.Save().Unlocked)
	assert.True(t, tr.StartResearch("B"), "pre-unlocked dependency counts")
	assert.Empty(t, completed)

	assert.Equal(t, "A", tr.StartingNode(), "first node without dependencies")
	assert.Equal(t, "Free", research.NewTracker(techTree(), research.WithStartingNode("free")).StartingNode())
	assert.Equal(t, "A", research.NewTracker(techTree(), research.WithStartingNode("nope")).StartingNode())
	assert.Empty(t, research.NewTracker([]catalog.TechNode{{ID: "X", Dependencies: []string{"Y"}}}).StartingNode())
}

func TestStartResearch_PausesPrevious(t *testing.T) {
	tr := research.NewTracker(techTree())
	tr.ForceUnlock("A")

	require.True(t, tr.StartResearch("B"))
	require.False(t, tr.Contribute("B", 4))
	require.True(t, tr.StartResearch("C"))

	researching := tr.Researching()
	require.Len(t, researching, 2)
	assert.Equal(t, "B", researching[0].Node.ID)
	assert.True(t, researching[0].Paused)
	assert.Equal(t, 4, researching[0].Accumulated)
	assert.False(t, researching[1].Paused)
	assert.Equal(t, "C", tr.Active())

	// Paused nodes do not accrue.
	assert.False(t, tr.Contribute("B", 100))
	assert.InDelta(t, 0.4, tr.Progress("B"), 1e-9)

	// Resume keeps progress.
	require.True(t, tr.StartResearch("b"))
	assert.True(t, tr.Contribute("B", 6))
	assert.True(t, tr.IsUnlocked("B"))
	assert.Empty(t, tr.Active())
}

func TestContribute_CompletesAndNotifies(t *testing.T) {
	tr := research.NewTracker(techTree())
	var started, completed []string
	tr.OnStarted(func(n *catalog.TechNode) { started = append(started, n.ID) })
	tr.OnCompleted(func(n *catalog.TechNode) { completed = append(completed, n.ID) })

	assert.False(t, tr.Contribute("A", 3), "auto-starts A")
	assert.True(t, tr.AddToActive(2))

	assert.True(t, tr.IsUnlocked("a"))
	assert.False(t, tr.IsResearching("A"))
	assert.Equal(t, 1.0, tr.Progress("A"))
	assert.Equal(t, []string{"A"}, started)
	assert.Equal(t, []string{"A"}, completed)
	assert.False(t, tr.AddToActive(1), "lane is empty")
}

func TestStartResearch_ZeroCostUnlocksImmediately(t *testing.T) {
	tr := research.NewTracker(techTree())

	assert.True(t, tr.StartResearch("free"))
	assert.True(t, tr.IsUnlocked("Free"))
	assert.False(t, tr.IsResearching("Free"))
	assert.False(t, tr.StartResearch("Free"), "already unlocked")
}

func TestStartResearch_RestartActiveIsNoop(t *testing.T) {
	tr := research.NewTracker(techTree())
	started := 0
	tr.OnStarted(func(*catalog.TechNode) { started++ })

	require.True(t, tr.StartResearch("A"))
	tr.Contribute("A", 2)
	require.True(t, tr.StartResearch("A"))

	assert.Equal(t, 1, started)
	assert.InDelta(t, 0.4, tr.Progress("A"), 1e-9)
}

func TestResearchable(t *testing.T) {
	tr := research.NewTracker(techTree())
	ids := func() []string {
		var out []string
		for _, n := range tr.Researchable() {
			out = append(out, n.ID)
		}
		return out
	}

	assert.Equal(t, []string{"A", "Free"}, ids())

	tr.ForceUnlock("A")
	tr.StartResearch("B")
	assert.Equal(t, []string{"C", "Free"}, ids(), "B is in progress")
	assert.False(t, tr.IsResearchable("D"))
}

func TestCancelResearch(t *testing.T) {
	tr := research.NewTracker(techTree())
	tr.ForceUnlock("A")
	tr.StartResearch("B")
	tr.Contribute("B", 3)

	require.True(t, tr.CancelResearch("B", true))
	assert.Empty(t, tr.Active())
	assert.True(t, tr.IsResearching("B"))
	assert.InDelta(t, 0.3, tr.Progress("B"), 1e-9)

	require.True(t, tr.CancelResearch("B", false))
	assert.False(t, tr.IsResearching("B"))
	assert.Zero(t, tr.Progress("B"))
	assert.True(t, tr.IsResearchable("B"))

	assert.False(t, tr.CancelResearch("B", true))
	assert.False(t, tr.ForceUnlock("missing"))
}

func TestSaveLoad_Normalises(t *testing.T) {
	tr := research.NewTracker(techTree())
	tr.ForceUnlock("A")
	tr.StartResearch("C")
	tr.Contribute("C", 1)
	tr.StartResearch("B")
	tr.Contribute("B", 2)

	saved := tr.Save()
	assert.Equal(t, []string{"A"}, saved.Unlocked)
	assert.Equal(t, "B", saved.Active)
	require.Len(t, saved.Researching, 2)

	restored := research.NewTracker(techTree())
	restored.Load(saved)
	assert.Equal(t, saved, restored.Save())

	restored.Load(research.SaveData{
		Unlocked: []string{"a", "ghost"},
		Researching: []research.ProgressRecord{
			{ID: "ghost", Accumulated: 1},
			{ID: "C", Accumulated: 9},
			{ID: "B", Accumulated: -3},
		},
		Active: "gone",
	})
	assert.True(t, restored.IsUnlocked("A"))
	assert.True(t, restored.IsUnlocked("C"), "progress covering the cost unlocks")
	require.Len(t, restored.Researching(), 1)
	b := restored.Researching()[0]
	assert.Equal(t, 0, b.Accumulated)
	assert.True(t, b.Paused, "no valid active id pauses everything")
	assert.Empty(t, restored.Active())
}
