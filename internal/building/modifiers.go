package building

import "github.com/talgya/lifeon/internal/catalog"

// StatModifier adjusts one derived stat:
//
//	base   = (levelValue + BaseAdd) * BaseMul
//	bonus  = BonusAdd * BonusMul
//	result = (base + bonus) * FinalMul
type StatModifier struct {
	BaseAdd  float64 `json:"base_add"`
	BaseMul  float64 `json:"base_mul"`
	BonusAdd float64 `json:"bonus_add"`
	BonusMul float64 `json:"bonus_mul"`
	FinalMul float64 `json:"final_mul"`
}

// IdentityModifier leaves a stat unchanged.
func IdentityModifier() StatModifier {
	return StatModifier{BaseMul: 1, BonusMul: 1, FinalMul: 1}
}

// Evaluate applies the modifier to a level value.
func (m StatModifier) Evaluate(levelValue float64) float64 {
	base := (levelValue + m.BaseAdd) * m.BaseMul
	bonus := m.BonusAdd * m.BonusMul
	return (base + bonus) * m.FinalMul
}

// Modifiers is the per-stat modifier bundle of a building.
type Modifiers struct {
	stats map[catalog.Stat]StatModifier
}

// NewModifiers creates a bundle where every stat is unmodified.
func NewModifiers() *Modifiers {
	return &Modifiers{stats: make(map[catalog.Stat]StatModifier)}
}

// Get returns the modifier for a stat.
func (m *Modifiers) Get(s catalog.Stat) StatModifier {
	if v, ok := m.stats[s]; ok {
		return v
	}
	return IdentityModifier()
}

// Set replaces the modifier for a stat.
func (m *Modifiers) Set(s catalog.Stat, v StatModifier) {
	m.stats[s] = v
}

// Apply adds the delta's additive parts and multiplies in its
// multipliers. A zero multiplier in the delta counts as 1.
func (m *Modifiers) Apply(s catalog.Stat, d catalog.ModifierDelta) {
	v := m.Get(s)
	v.BaseAdd += d.BaseAdd
	v.BonusAdd += d.BonusAdd
	v.BaseMul *= mul(d.BaseMul)
	v.BonusMul *= mul(d.BonusMul)
	v.FinalMul *= mul(d.FinalMul)
	m.stats[s] = v
}

// Revert undoes a previous Apply of the same delta.
func (m *Modifiers) Revert(s catalog.Stat, d catalog.ModifierDelta) {
	v := m.Get(s)
	v.BaseAdd -= d.BaseAdd
	v.BonusAdd -= d.BonusAdd
	v.BaseMul /= mul(d.BaseMul)
	v.BonusMul /= mul(d.BonusMul)
	v.FinalMul /= mul(d.FinalMul)
	m.stats[s] = v
}

func mul(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

// statField maps a stat to the notification fired when its modifier changes.
func statField(s catalog.Stat) (StateField, bool) {
	switch s {
	case catalog.StatExpToNext:
		return FieldExpToNext, true
	case catalog.StatMaxPopulation:
		return FieldMaxPopulation, true
	case catalog.StatMaxStorage:
		return FieldMaxStorageCapacity, true
	case catalog.StatMaxTraffic:
		return FieldTransportAbility, true
	case catalog.StatTransportResistance:
		return FieldTransportResistance, true
	case catalog.StatJobAttractiveness:
		return FieldJobAttractiveness, true
	default:
		return 0, false
	}
}
