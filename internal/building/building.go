// Package building implements placed buildings: runtime state, derived
// stats, and the rules that drive their behavior each turn phase.
package building

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/economy"
	"github.com/talgya/lifeon/internal/research"
	"github.com/talgya/lifeon/internal/social"
	"github.com/talgya/lifeon/internal/world"
)

// Context gives rules and conditions access to the shared simulation state.
type Context interface {
	Resources() *economy.Network
	HumanResources() *social.HumanResources
	Environment() *social.Environment
	Research() *research.Tracker
	Supply(id string) (*catalog.Supply, bool)
}

// Vector is a free-form 3D value kept per instance.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Building is a placed instance of an archetype.
// It is not safe for concurrent use.
type Building struct {
	id   string
	arch *catalog.Archetype
	ctx  Context

	level      int
	exp        int
	population int
	workers    int
	traffic    float64
	products   mapset.Set[string]
	mods       *Modifiers

	rules         []Rule
	pendingAdd    []Rule
	pendingRemove []Rule

	occupied []world.HexCoord
	center   world.HexCoord

	ints    map[string]int
	floats  map[string]float64
	vectors map[string]Vector
	strs    map[string]string

	observers    []observerEntry
	nextObserver int
}

// NewInstanceID returns a fresh 32 character instance id.
func NewInstanceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newBuilding(arch *catalog.Archetype, cells []world.HexCoord, center world.HexCoord, ctx Context) *Building {
	occupied := make([]world.HexCoord, len(cells))
	copy(occupied, cells)
	return &Building{
		id:       NewInstanceID(),
		arch:     arch,
		ctx:      ctx,
		products: mapset.New[string](),
		mods:     NewModifiers(),
		occupied: occupied,
		center:   center,
		ints:     make(map[string]int),
		floats:   make(map[string]float64),
		vectors:  make(map[string]Vector),
		strs:     make(map[string]string),
	}
}

// New creates a building at level 0 with its base and level rules attached
// and committed.
func New(arch *catalog.Archetype, cells []world.HexCoord, center world.HexCoord, ctx Context) *Building {
	b := newBuilding(arch, cells, center, ctx)
	b.initialize()
	return b
}

// Restore rebuilds a building from its saved record. Workers are restored
// as saved; population is clamped to the level's cap.
func Restore(arch *catalog.Archetype, data SaveData, ctx Context) *Building {
	b := newBuilding(arch, data.Occupied, data.Center, ctx)
	if data.InstanceID != "" {
		b.id = data.InstanceID
	}
	b.level = max(0, data.Level)
	b.exp = data.Exp
	b.workers = max(0, data.Workers)
	for k, v := range data.Ints {
		b.ints[k] = v
	}
	for k, v := range data.Floats {
		b.floats[k] = v
	}
	for k, v := range data.Vectors {
		b.vectors[k] = v
	}
	for k, v := range data.Strings {
		b.strs[k] = v
	}
	b.initialize()
	b.population = min(max(data.Population, 0), max(b.MaxPopulation(), 0))
	return b
}

func (b *Building) initialize() {
	if b.arch == nil || len(b.arch.Levels) == 0 {
		slog.Warn("building has no level data; no rules loaded", "building", b.id, "archetype", b.ArchetypeID())
		return
	}
	b.loadBaseRules()
	b.loadLevelRules(b.level)
	b.ApplyPendingRuleChanges()
}

// ID returns the instance id.
func (b *Building) ID() string { return b.id }

// Archetype returns the definition, which may be nil.
func (b *Building) Archetype() *catalog.Archetype { return b.arch }

// ArchetypeID returns the archetype id or "" without a definition.
func (b *Building) ArchetypeID() string {
	if b.arch == nil {
		return ""
	}
	return b.arch.ID
}

// Name returns the current level's name, falling back to the archetype's.
func (b *Building) Name() string {
	if lvl := b.levelDef(); lvl != nil && lvl.Name != "" {
		return lvl.Name
	}
	if b.arch != nil {
		return b.arch.Name
	}
	return ""
}

func (b *Building) levelDef() *catalog.LevelDef {
	return b.arch.Level(b.level)
}

// LevelIndex returns the current level index.
func (b *Building) LevelIndex() int { return b.level }

// CurrentExp returns the accumulated experience.
func (b *Building) CurrentExp() int { return b.exp }

// SetExp sets the experience. It does not notify observers.
func (b *Building) SetExp(v int) { b.exp = v }

// CurrentPopulation returns the resident count.
func (b *Building) CurrentPopulation() int { return b.population }

// SetPopulation clamps v into [0, MaxPopulation] and notifies on change.
func (b *Building) SetPopulation(v int) {
	v = min(max(v, 0), max(b.MaxPopulation(), 0))
	if v == b.population {
		return
	}
	b.population = v
	b.notify(FieldCurrentPopulation)
}

// CurrentWorkers returns the number of employed workers.
func (b *Building) CurrentWorkers() int { return b.workers }

// SetWorkers accepts v only when the number of extra hires does not exceed
// the settlement's unemployed count. It reports whether the value was taken.
func (b *Building) SetWorkers(v int) bool {
	if v < 0 || v-b.workers > b.ctx.HumanResources().Unemployed() {
		return false
	}
	if v == b.workers {
		return true
	}
	b.workers = v
	b.notify(FieldCurrentWorkers)
	return true
}

// Traffic returns the current transport load.
func (b *Building) Traffic() float64 { return b.traffic }

// SetTraffic sets the transport load and notifies on change.
func (b *Building) SetTraffic(v float64) {
	if v == b.traffic {
		return
	}
	b.traffic = v
	b.notify(FieldTraffic)
}

// Products returns the supply ids this building produces, sorted.
func (b *Building) Products() []string {
	out := make([]string, 0, b.products.Size())
	b.products.Each(func(id string) { out = append(out, id) })
	sort.Strings(out)
	return out
}

// HasProduct reports whether id is in the product set.
func (b *Building) HasProduct(id string) bool { return b.products.Has(id) }

// AddProduct adds id to the product set and notifies if it was new.
func (b *Building) AddProduct(id string) bool {
	if id == "" || b.products.Has(id) {
		return false
	}
	b.products.Put(id)
	b.notify(FieldProducts)
	return true
}

// RemoveProduct removes id from the product set and notifies if present.
func (b *Building) RemoveProduct(id string) bool {
	if !b.products.Has(id) {
		return false
	}
	b.products.Remove(id)
	b.notify(FieldProducts)
	return true
}

// Modifiers returns the stat modifier bundle.
func (b *Building) Modifiers() *Modifiers { return b.mods }

// ApplyModifier applies a delta to a stat and notifies the matching field.
func (b *Building) ApplyModifier(s catalog.Stat, d catalog.ModifierDelta) {
	b.mods.Apply(s, d)
	if f, ok := statField(s); ok {
		b.notify(f)
	}
}

// RevertModifier undoes ApplyModifier and notifies the matching field.
func (b *Building) RevertModifier(s catalog.Stat, d catalog.ModifierDelta) {
	b.mods.Revert(s, d)
	if f, ok := statField(s); ok {
		b.notify(f)
	}
}

// Occupied returns the cells the building covers.
func (b *Building) Occupied() []world.HexCoord {
	out := make([]world.HexCoord, len(b.occupied))
	copy(out, b.occupied)
	return out
}

// Center returns the building's center cell.
func (b *Building) Center() world.HexCoord { return b.center }

// Context returns the simulation context the building was created with.
func (b *Building) Context() Context { return b.ctx }

// SetIntData stores a free-form integer.
func (b *Building) SetIntData(key string, v int) { b.ints[key] = v }

// IntData returns a free-form integer or 0.
func (b *Building) IntData(key string) int { return b.ints[key] }

// SetFloatData stores a free-form float.
func (b *Building) SetFloatData(key string, v float64) { b.floats[key] = v }

// FloatData returns a free-form float or 0.
func (b *Building) FloatData(key string) float64 { return b.floats[key] }

// SetVectorData stores a free-form vector.
func (b *Building) SetVectorData(key string, v Vector) { b.vectors[key] = v }

// VectorData returns a free-form vector or the zero vector.
func (b *Building) VectorData(key string) Vector { return b.vectors[key] }

// SetStringData stores a free-form string.
func (b *Building) SetStringData(key, v string) { b.strs[key] = v }

// StringData returns a free-form string or "".
func (b *Building) StringData(key string) string { return b.strs[key] }
