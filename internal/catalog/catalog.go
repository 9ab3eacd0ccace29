package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the loaded set of definitions with id indexes.
// Lookups never fail hard: a missing id returns nil, false.
type Catalog struct {
	Supplies   []Supply    `yaml:"supplies" validate:"dive"`
	Archetypes []Archetype `yaml:"archetypes" validate:"dive"`
	Techs      []TechNode  `yaml:"techs" validate:"dive"`

	// StartingTechs are unlocked in every new settlement.
	StartingTechs []string `yaml:"starting_techs"`

	supplies   map[string]*Supply
	archetypes map[string]*Archetype
	techs      map[string]*TechNode
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	c, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i := range c.Supplies {
		if c.Supplies[i].OccupationUnit == 0 {
			c.Supplies[i].OccupationUnit = 1
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field constraints, unique ids, references, and that the
// research graph is acyclic. It also builds the lookup indexes.
func (c *Catalog) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return formatValidationError(err)
	}
	if err := c.index(); err != nil {
		return err
	}

	var errs []error
	for _, a := range c.Archetypes {
		for _, spec := range a.BaseRules {
			errs = append(errs, c.checkRule(a.ID, spec))
		}
		for _, cond := range append(append([]ConditionSpec{}, a.ShowConditions...), a.BuildConditions...) {
			errs = append(errs, c.checkCondition(a.ID, cond))
		}
		for li, lvl := range a.Levels {
			owner := fmt.Sprintf("%s level %d", a.ID, li)
			for _, spec := range lvl.Rules {
				errs = append(errs, c.checkRule(owner, spec))
			}
			for _, cond := range lvl.UpgradeConditions {
				errs = append(errs, c.checkCondition(owner, cond))
			}
		}
	}
	for _, t := range c.Techs {
		for _, dep := range t.Dependencies {
			if _, ok := c.Tech(dep); !ok {
				errs = append(errs, fmt.Errorf("tech %q: unknown dependency %q", t.ID, dep))
			}
		}
	}
	for _, id := range c.StartingTechs {
		if _, ok := c.Tech(id); !ok {
			errs = append(errs, fmt.Errorf("unknown starting tech %q", id))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return c.checkCycles()
}

func (c *Catalog) index() error {
	c.supplies = make(map[string]*Supply, len(c.Supplies))
	for i := range c.Supplies {
		s := &c.Supplies[i]
		if _, dup := c.supplies[s.ID]; dup {
			return fmt.Errorf("duplicate supply id %q", s.ID)
		}
		c.supplies[s.ID] = s
	}
	c.archetypes = make(map[string]*Archetype, len(c.Archetypes))
	for i := range c.Archetypes {
		a := &c.Archetypes[i]
		if _, dup := c.archetypes[a.ID]; dup {
			return fmt.Errorf("duplicate archetype id %q", a.ID)
		}
		c.archetypes[a.ID] = a
	}
	c.techs = make(map[string]*TechNode, len(c.Techs))
	for i := range c.Techs {
		t := &c.Techs[i]
		key := techKey(t.ID)
		if _, dup := c.techs[key]; dup {
			return fmt.Errorf("duplicate tech id %q", t.ID)
		}
		c.techs[key] = t
	}
	return nil
}

func (c *Catalog) checkRule(owner string, spec RuleSpec) error {
	if spec.Lifecycle == LifecycleTimeBased && spec.Rounds <= 0 {
		return fmt.Errorf("%s: rule %q is time based but has no rounds", owner, spec.Kind)
	}
	switch spec.Kind {
	case RuleProduce, RuleProducer:
		if len(spec.Supplies) == 0 {
			return fmt.Errorf("%s: rule %q needs supplies", owner, spec.Kind)
		}
		for _, sa := range spec.Supplies {
			if _, ok := c.Supply(sa.Supply); !ok {
				return fmt.Errorf("%s: rule %q references unknown supply %q", owner, spec.Kind, sa.Supply)
			}
		}
	case RuleConsumeGrow:
		if spec.Category == "" || spec.Amount <= 0 {
			return fmt.Errorf("%s: rule %q needs a category and a positive amount", owner, spec.Kind)
		}
	case RuleAura:
		if spec.Aura == "" || len(spec.Rings) == 0 {
			return fmt.Errorf("%s: rule %q needs an aura category and rings", owner, spec.Kind)
		}
	case RuleModifier:
		if !validStat(spec.Stat) {
			return fmt.Errorf("%s: rule %q has unknown stat %q", owner, spec.Kind, spec.Stat)
		}
	}
	return nil
}

func (c *Catalog) checkCondition(owner string, cond ConditionSpec) error {
	if cond.Kind == CondTech {
		if _, ok := c.Tech(cond.Tech); !ok {
			return fmt.Errorf("%s: condition references unknown tech %q", owner, cond.Tech)
		}
	}
	return nil
}

// checkCycles rejects research graphs with a dependency cycle.
func (c *Catalog) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.Techs))

	var visit func(id string, trail []string) error
	visit = func(id string, trail []string) error {
		key := techKey(id)
		switch state[key] {
		case visiting:
			return fmt.Errorf("tech dependency cycle: %s", strings.Join(append(trail, id), " -> "))
		case done:
			return nil
		}
		state[key] = visiting
		t := c.techs[key]
		for _, dep := range t.Dependencies {
			if err := visit(dep, append(trail, id)); err != nil {
				return err
			}
		}
		state[key] = done
		return nil
	}

	for _, t := range c.Techs {
		if err := visit(t.ID, nil); err != nil {
			return err
		}
	}
	return nil
}

// Supply looks up a supply by id.
func (c *Catalog) Supply(id string) (*Supply, bool) {
	s, ok := c.supplies[id]
	return s, ok
}

// Archetype looks up a building archetype by id.
func (c *Catalog) Archetype(id string) (*Archetype, bool) {
	a, ok := c.archetypes[id]
	return a, ok
}

// Tech looks up a research node by id, ignoring case.
func (c *Catalog) Tech(id string) (*TechNode, bool) {
	t, ok := c.techs[techKey(id)]
	return t, ok
}

// SuppliesInCategory returns the supplies of a category sorted by id.
func (c *Catalog) SuppliesInCategory(cat Category) []*Supply {
	var out []*Supply
	for i := range c.Supplies {
		if c.Supplies[i].Category == cat {
			out = append(out, &c.Supplies[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func techKey(id string) string {
	return strings.ToLower(id)
}

func validStat(s Stat) bool {
	for _, known := range Stats {
		if s == known {
			return true
		}
	}
	return false
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		messages := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			messages = append(messages, fmt.Sprintf(
				"field '%s' failed validation: %s (value: '%v')",
				e.Namespace(),
				e.Tag(),
				e.Value(),
			))
		}
		return fmt.Errorf("validation failed:\n  %s", strings.Join(messages, "\n  "))
	}
	return err
}
