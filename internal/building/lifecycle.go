package building

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/turn"
)

// Rules returns the live rules in execution order.
func (b *Building) Rules() []Rule {
	return slices.Clone(b.rules)
}

// PendingRuleChanges returns the sizes of the add and remove queues.
func (b *Building) PendingRuleChanges() (adds, removes int) {
	return len(b.pendingAdd), len(b.pendingRemove)
}

// AddRule runs the rule's add callback now and queues it for the live
// list. Nil rules are ignored.
func (b *Building) AddRule(r Rule) {
	if r == nil {
		return
	}
	b.pendingAdd = append(b.pendingAdd, r)
	r.OnAdd(b)
}

// RemoveRule runs the rule's remove callback now and queues its removal.
// Only live or pending rules are accepted, and a rule already queued for
// removal is left alone.
func (b *Building) RemoveRule(r Rule) bool {
	if r == nil || slices.Contains(b.pendingRemove, r) {
		return false
	}
	if !slices.Contains(b.rules, r) && !slices.Contains(b.pendingAdd, r) {
		return false
	}
	r.OnRemove(b)
	b.pendingRemove = append(b.pendingRemove, r)
	return true
}

// ApplyPendingRuleChanges commits the queues: removals first, then
// additions. A rule added and removed before the commit never goes live.
// It reports whether anything changed.
func (b *Building) ApplyPendingRuleChanges() bool {
	if len(b.pendingAdd) == 0 && len(b.pendingRemove) == 0 {
		return false
	}
	if len(b.pendingRemove) > 0 {
		removed := b.pendingRemove
		drop := func(r Rule) bool { return slices.Contains(removed, r) }
		b.rules = slices.DeleteFunc(b.rules, drop)
		b.pendingAdd = slices.DeleteFunc(b.pendingAdd, drop)
		b.pendingRemove = nil
	}
	b.rules = append(b.rules, b.pendingAdd...)
	b.pendingAdd = nil
	return true
}

// ExecuteRules runs every live rule for the phase in list order. At
// TurnEnd time-based rules count down and are queued for removal at zero.
func (b *Building) ExecuteRules(phase turn.Phase) {
	for _, r := range b.rules {
		r.OnUpdate(b, phase)
		if phase == turn.PhaseTurnEnd && r.Lifecycle() == catalog.LifecycleTimeBased {
			if r.countdown() <= 0 {
				b.RemoveRule(r)
			}
		}
	}
}

// HandlePhase is the building's turn listener.
func (b *Building) HandlePhase(phase turn.Phase) {
	switch phase {
	case turn.PhaseTurnEnd:
		if ok, reason := b.TryUpgrade(); !ok && reason != "" {
			slog.Debug("no upgrade", "building", b.id, "reason", reason)
		}
	case turn.PhaseStartPrep:
		b.ApplyPendingRuleChanges()
	}
	b.ExecuteRules(phase)
}

// TryUpgrade advances one level when enough experience is banked and the
// current level's upgrade conditions hold. Excess experience carries over,
// level-based rules are replaced by the new level's set, and the change is
// committed immediately.
func (b *Building) TryUpgrade() (bool, string) {
	lvl := b.levelDef()
	if lvl == nil {
		return false, "no level data"
	}
	if b.level >= len(b.arch.Levels)-1 {
		return false, ""
	}

	required := b.ExpToNext()
	if required <= 0 {
		required = max(0, lvl.ExpToNext)
	}
	if b.exp < required {
		return false, ""
	}
	if ok, reason := EvaluateConditions(lvl.UpgradeConditions, b, b.ctx); !ok {
		return false, reason
	}

	b.level++
	b.exp = max(0, b.exp-required)

	for _, r := range b.rules {
		if r.Lifecycle() == catalog.LifecycleLevelBased {
			b.RemoveRule(r)
		}
	}
	b.loadLevelRules(b.level)
	b.ApplyPendingRuleChanges()

	slog.Info("building upgraded", "building", b.id, "archetype", b.ArchetypeID(), "level", b.level)
	for _, f := range []StateField{
		FieldLevelIndex,
		FieldExpToNext,
		FieldMaxPopulation,
		FieldMaxStorageCapacity,
		FieldJobAttractiveness,
	} {
		b.notify(f)
	}
	return true, ""
}

func (b *Building) loadBaseRules() {
	b.addFromSpecs(b.arch.BaseRules, "base")
}

func (b *Building) loadLevelRules(index int) {
	lvl := b.arch.Level(index)
	if lvl == nil {
		return
	}
	b.addFromSpecs(lvl.Rules, fmt.Sprintf("level %d", index))
}

func (b *Building) addFromSpecs(specs []catalog.RuleSpec, source string) {
	for i, spec := range specs {
		r, err := NewRule(spec)
		if err != nil {
			slog.Warn("skipping rule", "building", b.id, "source", source, "index", i, "err", err)
			continue
		}
		b.AddRule(r)
	}
}

// Detach removes every live and pending rule, running their remove
// callbacks, and commits. The building keeps no rules afterwards.
func (b *Building) Detach() {
	for _, r := range slices.Concat(b.rules, b.pendingAdd) {
		b.RemoveRule(r)
	}
	b.ApplyPendingRuleChanges()
}
