package economy_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/economy"
)

type fakeProvider struct {
	id       string
	capacity int
	products []string
}

func (f *fakeProvider) ID() string              { return f.id }
func (f *fakeProvider) MaxStorageCapacity() int { return f.capacity }
func (f *fakeProvider) Products() []string      { return f.products }

var (
	berry = &catalog.Supply{ID: "berry", Category: "food", OccupationUnit: 1}
	grain = &catalog.Supply{ID: "grain", Category: "food", OccupationUnit: 1}
	logs  = &catalog.Supply{ID: "log", Category: "material", OccupationUnit: 2}
)

type lookup map[string]*catalog.Supply

func (l lookup) Supply(id string) (*catalog.Supply, bool) {
	s, ok := l[id]
	return s, ok
}

func TestRegister_Idempotent(t *testing.T) {
	// Arrange
	n := economy.NewNetwork()
	w := &fakeProvider{id: "w1", capacity: 50}

	// Act
	n.Register(w)
	n.Register(w)

	// Assert
	assert.Equal(t, 50, n.TotalCapacity())

	w.capacity = 80
	n.CapacityChanged(w)
	assert.Equal(t, 80, n.TotalCapacity())

	w.capacity = -10
	n.Register(w)
	assert.Zero(t, n.TotalCapacity(), "negative capacity contributes nothing")
	assert.Zero(t, n.ProviderCapacity("w1"))
}

func TestTryAddResource(t *testing.T) {
	n := economy.NewNetwork()
	n.Register(&fakeProvider{id: "w", capacity: 10})

	ok, _ := n.TryAddResource(logs, 4)
	require.True(t, ok)
	assert.Equal(t, 8, n.UsedCapacity())

	ok, reason := n.TryAddResource(logs, 2)
	assert.False(t, ok)
	assert.Contains(t, reason, "insufficient capacity")
	assert.Equal(t, 4, n.Amount("log"), "failed add has no effect")
	assert.Equal(t, 8, n.UsedCapacity())

	ok, _ = n.TryAddResource(berry, 0)
	assert.False(t, ok)
	ok, _ = n.TryAddResource(nil, 1)
	assert.False(t, ok)

	ok, _ = n.TryAddResource(berry, 2)
	assert.True(t, ok)
	assert.Zero(t, n.FreeCapacity())
}

func TestTryConsumeResource(t *testing.T) {
	n := economy.NewNetwork()
	n.Register(&fakeProvider{id: "w", capacity: 20})
	n.TryAddResource(logs, 3)

	ok, reason := n.TryConsumeResource(logs, 4)
	assert.False(t, ok)
	assert.Contains(t, reason, "insufficient stock")

	ok, _ = n.TryConsumeResource(logs, 3)
	assert.True(t, ok)
	assert.Zero(t, n.Amount("log"))
	assert.Zero(t, n.UsedCapacity())
	assert.Empty(t, n.Snapshot(), "emptied entries are removed")
}

func TestTryConsumeCategory_AllOrNothing(t *testing.T) {
	n := economy.NewNetwork()
	n.Register(&fakeProvider{id: "w", capacity: 100})
	n.TryAddResource(berry, 2)
	n.TryAddResource(grain, 3)
	n.TryAddResource(logs, 5)

	ok, reason := n.TryConsumeCategory("food", 6)
	assert.False(t, ok)
	assert.Equal(t, "insufficient food: need 6, have 5", reason)
	assert.Equal(t, 2, n.Amount("berry"))
	assert.Equal(t, 3, n.Amount("grain"))

	ok, reason = n.TryConsumeCategory("food", 4)
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, 1, n.CategoryAmount("food"))
	assert.Zero(t, n.Amount("berry"), "consumed in id order")
	assert.Equal(t, 1, n.Amount("grain"))
	assert.Equal(t, 5, n.Amount("log"))
	assert.Equal(t, 11, n.UsedCapacity())

	ok, reason = n.TryConsumeCategory("food", 0)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
	ok, _ = n.TryConsumeCategory("gems", 1)
	assert.False(t, ok)
}

func TestCapacityInvariant_RandomOps(t *testing.T) {
	n := economy.NewNetwork()
	n.Register(&fakeProvider{id: "a", capacity: 30})
	n.Register(&fakeProvider{id: "b", capacity: 17})
	supplies := []*catalog.Supply{berry, grain, logs}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		s := supplies[rng.Intn(len(supplies))]
		amount := rng.Intn(8) - 1
		before := n.CategoryAmount("food")

		switch rng.Intn(3) {
		case 0:
			n.TryAddResource(s, amount)
		case 1:
			n.TryConsumeResource(s, amount)
		case 2:
			if ok, _ := n.TryConsumeCategory("food", amount); ok {
				assert.Equal(t, before-amount, n.CategoryAmount("food"))
			} else {
				assert.Equal(t, before, n.CategoryAmount("food"))
			}
		}

		require.LessOrEqual(t, n.UsedCapacity(), n.TotalCapacity())
		used := 0
		for _, st := range n.Snapshot() {
			require.GreaterOrEqual(t, st.Amount, 0)
			used += st.Amount * st.Supply.OccupationUnit
		}
		require.Equal(t, used, n.UsedCapacity())
	}
}

func TestProducerRefcount(t *testing.T) {
	n := economy.NewNetwork()
	a := &fakeProvider{id: "a", products: []string{"wood"}}
	b := &fakeProvider{id: "b", products: []string{"wood", "stone"}}

	n.Register(a)
	n.Register(b)
	assert.Equal(t, 2, n.ProducerCount("wood"))
	assert.Equal(t, []string{"stone", "wood"}, n.Producible())

	a.products = nil
	n.UpdateProducts(a)
	assert.True(t, n.IsProducible("wood"), "one producer remains")
	assert.Equal(t, 1, n.ProducerCount("wood"))

	n.UpdateProducts(a)
	assert.Equal(t, 1, n.ProducerCount("wood"), "unchanged set is a no-op")

	n.Unregister(b)
	assert.False(t, n.IsProducible("wood"))
	assert.False(t, n.IsProducible("stone"))
	assert.Empty(t, n.Producible())
}

func TestOnChange(t *testing.T) {
	n := economy.NewNetwork()
	calls := 0
	n.OnChange(func() { calls++ })

	w := &fakeProvider{id: "w", capacity: 5}
	n.Register(w)
	n.TryAddResource(berry, 1)
	n.TryConsumeResource(berry, 1)
	n.CapacityChanged(w)

	assert.Equal(t, 3, calls, "unchanged capacity does not notify")
}

func TestSaveLoad(t *testing.T) {
	n := economy.NewNetwork()
	n.Register(&fakeProvider{id: "w", capacity: 20})
	n.TryAddResource(berry, 3)
	n.TryAddResource(logs, 2)
	saved := n.Save()
	assert.Equal(t, map[string]int{"berry": 3, "log": 2}, saved.Inventory)

	restored := economy.NewNetwork()
	restored.Register(&fakeProvider{id: "w", capacity: 20})
	saved.Inventory["ghost"] = 4
	restored.Load(saved, lookup{"berry": berry, "log": logs})

	assert.Equal(t, 3, restored.Amount("berry"))
	assert.Equal(t, 2, restored.Amount("log"))
	assert.Zero(t, restored.Amount("ghost"))
	assert.Equal(t, 7, restored.UsedCapacity())

	small := economy.NewNetwork()
	small.Register(&fakeProvider{id: "w", capacity: 4})
	small.Load(economy.SaveData{Inventory: map[string]int{"berry": 3, "log": 2}}, lookup{"berry": berry, "log": logs})
	assert.Equal(t, 3, small.Amount("berry"))
	assert.Zero(t, small.Amount("log"), "does not fit")
}
