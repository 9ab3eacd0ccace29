package building

import (
	"fmt"
	"log/slog"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/social"
	"github.com/talgya/lifeon/internal/turn"
)

// Rule is a behavior attached to one building. The set of rule kinds is
// closed: rules are only built by NewRule from a catalog.RuleSpec.
type Rule interface {
	Kind() string
	Name() string
	Lifecycle() catalog.Lifecycle
	RemainingRounds() int
	OnAdd(b *Building)
	OnUpdate(b *Building, phase turn.Phase)
	OnRemove(b *Building)

	countdown() int
}

type ruleBase struct {
	kind      string
	name      string
	lifecycle catalog.Lifecycle
	remaining int
}

func (r *ruleBase) Kind() string                 { return r.kind }
func (r *ruleBase) Lifecycle() catalog.Lifecycle { return r.lifecycle }
func (r *ruleBase) RemainingRounds() int         { return r.remaining }

func (r *ruleBase) Name() string {
	if r.name != "" {
		return r.name
	}
	return r.kind
}

func (r *ruleBase) countdown() int {
	r.remaining--
	return r.remaining
}

// NewRule builds a fresh rule instance from its template.
func NewRule(spec catalog.RuleSpec) (Rule, error) {
	base := ruleBase{
		kind:      spec.Kind,
		name:      spec.Name,
		lifecycle: spec.Lifecycle,
		remaining: -1,
	}
	if base.lifecycle == "" {
		base.lifecycle = catalog.LifecyclePersistent
	}
	if base.lifecycle == catalog.LifecycleTimeBased {
		base.remaining = spec.Rounds
	}

	switch spec.Kind {
	case catalog.RuleProduce:
		return &produceRule{ruleBase: base, supplies: cloneSupplies(spec.Supplies)}, nil
	case catalog.RuleProducer:
		return &producerRule{ruleBase: base, supplies: cloneSupplies(spec.Supplies)}, nil
	case catalog.RuleGainExp:
		return &gainExpRule{ruleBase: base, exp: spec.Exp}, nil
	case catalog.RuleFillJobs:
		return &fillJobsRule{ruleBase: base}, nil
	case catalog.RuleConsumeGrow:
		return &consumeGrowRule{ruleBase: base, category: spec.Category, amount: spec.Amount, growth: spec.Growth}, nil
	case catalog.RuleAura:
		rings := make([]social.Ring, 0, len(spec.Rings))
		for _, r := range spec.Rings {
			rings = append(rings, social.Ring{Radius: r.Radius, Value: r.Value})
		}
		return &auraRule{ruleBase: base, category: social.AuraCategory(spec.Aura), rings: rings}, nil
	case catalog.RuleResearch:
		return &researchRule{ruleBase: base, points: spec.Points}, nil
	case catalog.RuleModifier:
		return &modifierRule{ruleBase: base, stat: spec.Stat, delta: spec.Modifier}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
}

func cloneSupplies(in []catalog.SupplyAmount) []catalog.SupplyAmount {
	out := make([]catalog.SupplyAmount, len(in))
	copy(out, in)
	return out
}

// produceRule adds its supplies to the network every ResourceProduce phase.
type produceRule struct {
	ruleBase
	supplies []catalog.SupplyAmount
}

func (r *produceRule) OnAdd(b *Building) {
	for _, s := range r.supplies {
		b.AddProduct(s.Supply)
	}
}

func (r *produceRule) OnUpdate(b *Building, phase turn.Phase) {
	if phase != turn.PhaseResourceProduce {
		return
	}
	for _, sa := range r.supplies {
		s, ok := b.ctx.Supply(sa.Supply)
		if !ok {
			slog.Warn("produce: unknown supply", "building", b.id, "supply", sa.Supply)
			continue
		}
		if ok, reason := b.ctx.Resources().TryAddResource(s, sa.Amount); !ok {
			slog.Warn("produce failed", "building", b.id, "supply", sa.Supply, "amount", sa.Amount, "reason", reason)
		}
	}
}

func (r *produceRule) OnRemove(b *Building) {
	for _, s := range r.supplies {
		b.RemoveProduct(s.Supply)
	}
}

// producerRule only marks the building as a producer of its supplies.
type producerRule struct {
	ruleBase
	supplies []catalog.SupplyAmount
}

func (r *producerRule) OnAdd(b *Building) {
	for _, s := range r.supplies {
		b.AddProduct(s.Supply)
	}
}

func (r *producerRule) OnUpdate(*Building, turn.Phase) {}

func (r *producerRule) OnRemove(b *Building) {
	for _, s := range r.supplies {
		b.RemoveProduct(s.Supply)
	}
}

// gainExpRule grants experience at the end of each turn.
type gainExpRule struct {
	ruleBase
	exp int
}

func (r *gainExpRule) OnAdd(*Building)    {}
func (r *gainExpRule) OnRemove(*Building) {}

func (r *gainExpRule) OnUpdate(b *Building, phase turn.Phase) {
	if phase == turn.PhaseTurnEnd {
		b.SetExp(b.CurrentExp() + r.exp)
	}
}

// fillJobsRule hires one unemployed resident per turn while jobs are open.
type fillJobsRule struct {
	ruleBase
}

func (r *fillJobsRule) OnAdd(*Building)    {}
func (r *fillJobsRule) OnRemove(*Building) {}

func (r *fillJobsRule) OnUpdate(b *Building, phase turn.Phase) {
	if phase != turn.PhaseTurnEnd {
		return
	}
	if b.CurrentWorkers() < b.MaxJobs() && b.ctx.HumanResources().Unemployed() > 0 {
		b.SetWorkers(b.CurrentWorkers() + 1)
	}
}

// consumeGrowRule eats from a supply category and grows the population
// when the meal succeeds.
type consumeGrowRule struct {
	ruleBase
	category catalog.Category
	amount   int
	growth   int
}

func (r *consumeGrowRule) OnAdd(*Building)    {}
func (r *consumeGrowRule) OnRemove(*Building) {}

func (r *consumeGrowRule) OnUpdate(b *Building, phase turn.Phase) {
	if phase != turn.PhaseResourceConsume {
		return
	}
	if ok, reason := b.ctx.Resources().TryConsumeCategory(r.category, r.amount); !ok {
		slog.Warn("consumption failed", "building", b.id, "reason", reason)
		return
	}
	if b.CurrentPopulation() < b.MaxPopulation() {
		b.SetPopulation(b.CurrentPopulation() + r.growth)
	}
}

// auraRule projects environment rings around the building.
type auraRule struct {
	ruleBase
	category social.AuraCategory
	rings    []social.Ring
}

func (r *auraRule) sourceID(b *Building) string {
	return b.id + "/" + string(r.category)
}

func (r *auraRule) OnAdd(b *Building) {
	b.ctx.Environment().AddAura(r.sourceID(b), b.center, r.category, r.rings)
}

func (r *auraRule) OnUpdate(*Building, turn.Phase) {}

func (r *auraRule) OnRemove(b *Building) {
	b.ctx.Environment().RemoveAura(r.sourceID(b))
}

// researchRule feeds points into the active research lane.
type researchRule struct {
	ruleBase
	points int
}

func (r *researchRule) OnAdd(*Building)    {}
func (r *researchRule) OnRemove(*Building) {}

func (r *researchRule) OnUpdate(b *Building, phase turn.Phase) {
	if phase == turn.PhaseResourceProduce {
		b.ctx.Research().AddToActive(r.points)
	}
}

// modifierRule holds a stat modifier for as long as it is attached.
type modifierRule struct {
	ruleBase
	stat  catalog.Stat
	delta catalog.ModifierDelta
}

func (r *modifierRule) OnAdd(b *Building)              { b.ApplyModifier(r.stat, r.delta) }
func (r *modifierRule) OnUpdate(*Building, turn.Phase) {}
func (r *modifierRule) OnRemove(b *Building)           { b.RevertModifier(r.stat, r.delta) }
