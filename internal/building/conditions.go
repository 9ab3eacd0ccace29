package building

import (
	"fmt"
	"strings"

	"github.com/talgya/lifeon/internal/catalog"
)

// Condition is a gate checked against a building. A nil building is
// allowed for conditions that do not depend on one, such as tech gates.
type Condition interface {
	Evaluate(b *Building, ctx Context) (bool, string)
}

type conditionFunc func(b *Building, ctx Context) (bool, string)

func (f conditionFunc) Evaluate(b *Building, ctx Context) (bool, string) { return f(b, ctx) }

// NewCondition builds a condition from its spec.
func NewCondition(spec catalog.ConditionSpec) (Condition, error) {
	switch spec.Kind {
	case catalog.CondNever:
		return conditionFunc(func(*Building, Context) (bool, string) {
			return false, "never allowed"
		}), nil
	case catalog.CondTech:
		return conditionFunc(func(_ *Building, ctx Context) (bool, string) {
			if ctx.Research().IsUnlocked(spec.Tech) {
				return true, ""
			}
			return false, fmt.Sprintf("requires research %q", spec.Tech)
		}), nil
	case catalog.CondWorkersAtLeast:
		return compare(spec.Value, "workers", (*Building).CurrentWorkers, func(v, want int) bool { return v >= want }, "at least"), nil
	case catalog.CondWorkersLessThan:
		return compare(spec.Value, "workers", (*Building).CurrentWorkers, func(v, want int) bool { return v < want }, "less than"), nil
	case catalog.CondWorkersEqual:
		return compare(spec.Value, "workers", (*Building).CurrentWorkers, func(v, want int) bool { return v == want }, "exactly"), nil
	case catalog.CondPopulationAtLeast:
		return compare(spec.Value, "population", (*Building).CurrentPopulation, func(v, want int) bool { return v >= want }, "at least"), nil
	case catalog.CondPopulationLessThan:
		return compare(spec.Value, "population", (*Building).CurrentPopulation, func(v, want int) bool { return v < want }, "less than"), nil
	default:
		return nil, fmt.Errorf("unknown condition kind %q", spec.Kind)
	}
}

func compare(want int, what string, get func(*Building) int, ok func(v, want int) bool, phrase string) Condition {
	return conditionFunc(func(b *Building, _ Context) (bool, string) {
		if b == nil {
			return false, fmt.Sprintf("%s condition needs a building", what)
		}
		if v := get(b); !ok(v, want) {
			return false, fmt.Sprintf("needs %s %d %s, has %d", phrase, want, what, v)
		}
		return true, ""
	})
}

// EvaluateConditions checks every condition in order and joins the reasons
// of those that fail. A panic inside a condition becomes a failure reason.
func EvaluateConditions(specs []catalog.ConditionSpec, b *Building, ctx Context) (bool, string) {
	var reasons []string
	for _, spec := range specs {
		if ok, reason := evaluateOne(spec, b, ctx); !ok {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) > 0 {
		return false, strings.Join(reasons, "; ")
	}
	return true, ""
}

func evaluateOne(spec catalog.ConditionSpec, b *Building, ctx Context) (ok bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			ok, reason = false, fmt.Sprintf("condition %q failed: %v", spec.Kind, r)
		}
	}()
	cond, err := NewCondition(spec)
	if err != nil {
		return false, err.Error()
	}
	return cond.Evaluate(b, ctx)
}
