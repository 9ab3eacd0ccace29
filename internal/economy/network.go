// Package economy provides the shared resource network: inventory, storage
// capacity contributed by buildings, and producer bookkeeping.
package economy

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/lifeon/internal/catalog"
)

// CapacityProvider is a building as seen by the resource network.
type CapacityProvider interface {
	ID() string
	MaxStorageCapacity() int
	Products() []string
}

// SupplyLookup resolves supply ids during Load.
type SupplyLookup interface {
	Supply(id string) (*catalog.Supply, bool)
}

// Stock is the amount held of one supply.
type Stock struct {
	Supply *catalog.Supply `json:"-"`
	ID     string          `json:"id"`
	Amount int             `json:"amount"`
}

// SaveData is the persisted inventory.
type SaveData struct {
	Inventory map[string]int `json:"inventory"`
}

// Network is the resource and capacity network.
// Used capacity never exceeds total capacity through TryAddResource, and
// amounts never go negative. It is not safe for concurrent use.
type Network struct {
	inventory map[string]*Stock

	totalCapacity int
	usedCapacity  int
	providers     map[string]int

	producers  map[string]int
	producible mapset.Set[string]
	snapshots  map[string]mapset.Set[string]

	onChange []func()
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		inventory:  make(map[string]*Stock),
		providers:  make(map[string]int),
		producers:  make(map[string]int),
		producible: mapset.New[string](),
		snapshots:  make(map[string]mapset.Set[string]),
	}
}

// OnChange registers an observer fired after inventory or capacity changes.
func (n *Network) OnChange(fn func()) {
	n.onChange = append(n.onChange, fn)
}

func (n *Network) changed() {
	for _, fn := range n.onChange {
		fn()
	}
}

// TotalCapacity returns the summed capacity of every provider.
func (n *Network) TotalCapacity() int { return n.totalCapacity }

// UsedCapacity returns the capacity occupied by stored supplies.
func (n *Network) UsedCapacity() int { return n.usedCapacity }

// FreeCapacity returns total minus used, floored at zero.
func (n *Network) FreeCapacity() int {
	return max(0, n.totalCapacity-n.usedCapacity)
}

// ProviderCapacity returns the capacity a provider currently contributes.
func (n *Network) ProviderCapacity(id string) int { return n.providers[id] }

// Register adds or refreshes a provider. A previous contribution is
// replaced, so registering twice is safe.
func (n *Network) Register(p CapacityProvider) {
	n.setCapacity(p.ID(), p.MaxStorageCapacity())
	n.UpdateProducts(p)
	n.changed()
}

// Unregister removes a provider's capacity and its products.
func (n *Network) Unregister(p CapacityProvider) {
	id := p.ID()
	n.setCapacity(id, 0)
	n.applyProducts(id, mapset.New[string]())
	delete(n.snapshots, id)
	if n.usedCapacity > n.totalCapacity {
		slog.Warn("storage over capacity after unregister",
			"provider", id, "used", n.usedCapacity, "total", n.totalCapacity)
	}
	n.changed()
}

// CapacityChanged refreshes a provider's capacity contribution.
func (n *Network) CapacityChanged(p CapacityProvider) {
	if n.setCapacity(p.ID(), p.MaxStorageCapacity()) {
		n.changed()
	}
}

func (n *Network) setCapacity(id string, capacity int) bool {
	old := n.providers[id]
	n.totalCapacity -= old
	delete(n.providers, id)

	contribution := max(0, capacity)
	if contribution > 0 {
		n.providers[id] = contribution
		n.totalCapacity += contribution
	}
	if n.totalCapacity < 0 {
		panic(fmt.Sprintf("economy: negative total capacity %d", n.totalCapacity))
	}
	return old != contribution
}

// UpdateProducts diffs the provider's product set against its previous
// snapshot and adjusts the producer counts.
func (n *Network) UpdateProducts(p CapacityProvider) {
	next := mapset.New[string]()
	for _, id := range p.Products() {
		next.Put(id)
	}
	n.applyProducts(p.ID(), next)
}

func (n *Network) applyProducts(owner string, next mapset.Set[string]) {
	prev, ok := n.snapshots[owner]
	if !ok {
		prev = mapset.New[string]()
	}
	prev.Each(func(id string) {
		if !next.Has(id) {
			n.decreaseProducer(id)
		}
	})
	next.Each(func(id string) {
		if !prev.Has(id) {
			n.increaseProducer(id)
		}
	})
	n.snapshots[owner] = next
}

func (n *Network) increaseProducer(id string) {
	n.producers[id]++
	if n.producers[id] == 1 {
		n.producible.Put(id)
	}
}

func (n *Network) decreaseProducer(id string) {
	c, ok := n.producers[id]
	if !ok {
		return
	}
	if c <= 1 {
		delete(n.producers, id)
		n.producible.Remove(id)
		return
	}
	n.producers[id] = c - 1
}

// IsProducible reports whether any registered building produces id.
func (n *Network) IsProducible(id string) bool { return n.producible.Has(id) }

// ProducerCount returns how many registered buildings produce id.
func (n *Network) ProducerCount(id string) int { return n.producers[id] }

// Producible returns the producible supply ids sorted.
func (n *Network) Producible() []string {
	out := make([]string, 0, n.producible.Size())
	n.producible.Each(func(id string) { out = append(out, id) })
	sort.Strings(out)
	return out
}

// Amount returns the stored amount of a supply.
func (n *Network) Amount(id string) int {
	if s, ok := n.inventory[id]; ok {
		return s.Amount
	}
	return 0
}

// CategoryAmount returns the stored total across a category.
func (n *Network) CategoryAmount(cat catalog.Category) int {
	total := 0
	for _, s := range n.inventory {
		if s.Supply.Category == cat {
			total += s.Amount
		}
	}
	return total
}

// Snapshot returns the stored supplies sorted by id.
func (n *Network) Snapshot() []Stock {
	out := make([]Stock, 0, len(n.inventory))
	for _, s := range n.inventory {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TryAddResource stores amount units of s if the capacity they occupy is
// free. Nothing changes on failure.
func (n *Network) TryAddResource(s *catalog.Supply, amount int) (bool, string) {
	if s == nil || amount <= 0 {
		return false, "invalid supply or non-positive amount"
	}
	need := amount * s.OccupationUnit
	free := n.totalCapacity - n.usedCapacity
	if need > free {
		return false, fmt.Sprintf("insufficient capacity: need %d, free %d", need, max(0, free))
	}

	stock, ok := n.inventory[s.ID]
	if !ok {
		stock = &Stock{Supply: s, ID: s.ID}
		n.inventory[s.ID] = stock
	}
	stock.Amount += amount
	n.usedCapacity += need
	n.changed()
	return true, ""
}

// TryConsumeResource removes amount units of s if that many are stored.
// Nothing changes on failure.
func (n *Network) TryConsumeResource(s *catalog.Supply, amount int) (bool, string) {
	if s == nil || amount <= 0 {
		return false, "invalid supply or non-positive amount"
	}
	stock, ok := n.inventory[s.ID]
	if !ok || stock.Amount < amount {
		have := 0
		if ok {
			have = stock.Amount
		}
		return false, fmt.Sprintf("insufficient stock of %s: need %d, have %d", s.ID, amount, have)
	}
	n.take(stock, amount)
	n.changed()
	return true, ""
}

func (n *Network) take(stock *Stock, amount int) {
	stock.Amount -= amount
	if stock.Amount <= 0 {
		delete(n.inventory, stock.ID)
	}
	n.usedCapacity = max(0, n.usedCapacity-amount*stock.Supply.OccupationUnit)
}

// TryConsumeCategory removes amount units spread across the supplies of a
// category, in id order. Either exactly amount is removed or nothing is.
func (n *Network) TryConsumeCategory(cat catalog.Category, amount int) (bool, string) {
	if amount <= 0 {
		return false, "non-positive amount"
	}

	var candidates []*Stock
	total := 0
	for _, s := range n.inventory {
		if s.Supply.Category == cat && s.Amount > 0 {
			candidates = append(candidates, s)
			total += s.Amount
		}
	}
	if total < amount {
		return false, fmt.Sprintf("insufficient %s: need %d, have %d", cat, amount, total)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	remaining := amount
	for _, s := range candidates {
		if remaining == 0 {
			break
		}
		take := min(s.Amount, remaining)
		n.take(s, take)
		remaining -= take
	}
	n.changed()
	return true, ""
}

// Save returns the persisted inventory.
func (n *Network) Save() SaveData {
	inv := make(map[string]int, len(n.inventory))
	for id, s := range n.inventory {
		inv[id] = s.Amount
	}
	return SaveData{Inventory: inv}
}

// Load replaces the inventory. Entries go through TryAddResource, so they
// must fit the capacity registered beforehand; unknown ids and entries that
// do not fit are skipped with a warning.
func (n *Network) Load(data SaveData, lookup SupplyLookup) {
	n.inventory = make(map[string]*Stock)
	n.usedCapacity = 0

	ids := make([]string, 0, len(data.Inventory))
	for id := range data.Inventory {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s, ok := lookup.Supply(id)
		if !ok {
			slog.Warn("skipping unknown supply in save", "supply", id)
			continue
		}
		if ok, reason := n.TryAddResource(s, data.Inventory[id]); !ok {
			slog.Warn("skipping saved stock", "supply", id, "amount", data.Inventory[id], "reason", reason)
		}
	}
}
