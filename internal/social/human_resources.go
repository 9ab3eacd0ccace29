// Package social provides the settlement-wide human resource pool and the
// environment auras buildings project onto the grid.
package social

import "sort"

// Resident is a building as seen by the human resource pool.
type Resident interface {
	ID() string
	CurrentPopulation() int
	CurrentWorkers() int
}

// HumanResources tracks population and employment across buildings.
type HumanResources struct {
	population map[string]int
	workers    map[string]int
	onChange   []func()
}

// NewHumanResources creates an empty pool.
func NewHumanResources() *HumanResources {
	return &HumanResources{
		population: make(map[string]int),
		workers:    make(map[string]int),
	}
}

// OnChange registers an observer fired after any tracked value changes.
func (h *HumanResources) OnChange(fn func()) {
	h.onChange = append(h.onChange, fn)
}

func (h *HumanResources) changed() {
	for _, fn := range h.onChange {
		fn()
	}
}

// Register starts tracking a building. Registering twice refreshes it.
func (h *HumanResources) Register(r Resident) {
	h.population[r.ID()] = r.CurrentPopulation()
	h.workers[r.ID()] = r.CurrentWorkers()
	h.changed()
}

// Unregister stops tracking a building.
func (h *HumanResources) Unregister(r Resident) {
	delete(h.population, r.ID())
	delete(h.workers, r.ID())
	h.changed()
}

// Update refreshes a tracked building's values. Untracked buildings are ignored.
func (h *HumanResources) Update(r Resident) {
	id := r.ID()
	if _, ok := h.population[id]; !ok {
		return
	}
	h.population[id] = r.CurrentPopulation()
	h.workers[id] = r.CurrentWorkers()
	h.changed()
}

// Tracked returns the ids of tracked buildings sorted.
func (h *HumanResources) Tracked() []string {
	ids := make([]string, 0, len(h.population))
	for id := range h.population {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalPopulation sums population across buildings.
func (h *HumanResources) TotalPopulation() int {
	total := 0
	for _, v := range h.population {
		total += v
	}
	return total
}

// TotalWorkers sums workers across buildings.
func (h *HumanResources) TotalWorkers() int {
	total := 0
	for _, v := range h.workers {
		total += v
	}
	return total
}

// Unemployed returns population minus workers, floored at zero.
func (h *HumanResources) Unemployed() int {
	return max(0, h.TotalPopulation()-h.TotalWorkers())
}
