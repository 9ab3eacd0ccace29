// Package catalog holds the immutable definitions the simulation is built
// from: supplies, building archetypes with their levels, and research nodes.
package catalog

// Category groups interchangeable supplies.
type Category string

// Supply is a resource kind stored in the shared network.
type Supply struct {
	ID             string   `yaml:"id" validate:"required"`
	Name           string   `yaml:"name"`
	Category       Category `yaml:"category" validate:"required"`
	OccupationUnit int      `yaml:"occupation_unit" validate:"min=1"`
}

// SupplyAmount pairs a supply id with a quantity.
type SupplyAmount struct {
	Supply string `yaml:"supply" validate:"required"`
	Amount int    `yaml:"amount" validate:"min=1"`
}

// Lifecycle controls when an attached rule expires.
type Lifecycle string

const (
	LifecyclePersistent Lifecycle = "persistent"  // until demolition
	LifecycleTimeBased  Lifecycle = "time_based"  // for a number of rounds
	LifecycleLevelBased Lifecycle = "level_based" // until the next level up
)

// Stat names a derived building stat.
type Stat string

const (
	StatExpToNext           Stat = "exp_to_next"
	StatMaxPopulation       Stat = "max_population"
	StatMaxJobs             Stat = "max_jobs"
	StatMaxStorage          Stat = "max_storage"
	StatTransportRadius     Stat = "transport_radius"
	StatDistributeRadius    Stat = "distribute_radius"
	StatMaxTraffic          Stat = "max_traffic"
	StatTransportResistance Stat = "transport_resistance"
	StatJobAttractiveness   Stat = "job_attractiveness"
)

// Stats lists every derived stat.
var Stats = []Stat{
	StatExpToNext,
	StatMaxPopulation,
	StatMaxJobs,
	StatMaxStorage,
	StatTransportRadius,
	StatDistributeRadius,
	StatMaxTraffic,
	StatTransportResistance,
	StatJobAttractiveness,
}

// Rule kinds.
const (
	RuleProduce     = "produce"
	RuleProducer    = "producer"
	RuleGainExp     = "gain_exp"
	RuleFillJobs    = "fill_jobs"
	RuleConsumeGrow = "consume_grow"
	RuleAura        = "aura"
	RuleResearch    = "research"
	RuleModifier    = "modifier"
)

// ModifierDelta is a change applied to one stat's modifier.
// Multipliers of zero are read as 1.
type ModifierDelta struct {
	BaseAdd  float64 `yaml:"base_add"`
	BaseMul  float64 `yaml:"base_mul"`
	BonusAdd float64 `yaml:"bonus_add"`
	BonusMul float64 `yaml:"bonus_mul"`
	FinalMul float64 `yaml:"final_mul"`
}

// AuraRing is one ring of an environment aura.
type AuraRing struct {
	Radius int `yaml:"radius" validate:"min=0"`
	Value  int `yaml:"value"`
}

// RuleSpec is the template a building rule is built from.
// Which fields matter depends on Kind.
type RuleSpec struct {
	Kind      string    `yaml:"kind" validate:"required,oneof=produce producer gain_exp fill_jobs consume_grow aura research modifier"`
	Name      string    `yaml:"name"`
	Lifecycle Lifecycle `yaml:"lifecycle" validate:"omitempty,oneof=persistent time_based level_based"`
	Rounds    int       `yaml:"rounds"`

	Supplies []SupplyAmount `yaml:"supplies" validate:"dive"`
	Category Category       `yaml:"category"`
	Amount   int            `yaml:"amount"`
	Growth   int            `yaml:"growth"`
	Exp      int            `yaml:"exp"`
	Points   int            `yaml:"points"`

	Aura  string     `yaml:"aura"`
	Rings []AuraRing `yaml:"rings" validate:"dive"`

	Stat     Stat          `yaml:"stat"`
	Modifier ModifierDelta `yaml:"modifier"`
}

// Condition kinds.
const (
	CondNever              = "never"
	CondTech               = "tech"
	CondWorkersAtLeast     = "workers_at_least"
	CondWorkersLessThan    = "workers_less_than"
	CondWorkersEqual       = "workers_equal"
	CondPopulationAtLeast  = "population_at_least"
	CondPopulationLessThan = "population_less_than"
)

// ConditionSpec is a gate evaluated against a building.
type ConditionSpec struct {
	Kind  string `yaml:"kind" validate:"required,oneof=never tech workers_at_least workers_less_than workers_equal population_at_least population_less_than"`
	Tech  string `yaml:"tech"`
	Value int    `yaml:"value"`
}

// LevelDef holds the base values of one building level.
type LevelDef struct {
	Name                string  `yaml:"name"`
	MaxPopulation       int     `yaml:"max_population"`
	StorageCapacity     int     `yaml:"storage_capacity"`
	ExpToNext           int     `yaml:"exp_to_next"` // -1 at the top level
	MaxJobs             int     `yaml:"max_jobs"`
	TransportResistance int     `yaml:"transport_resistance"`
	TransportRadius     float64 `yaml:"transport_radius"`
	DistributeRadius    float64 `yaml:"distribute_radius"`
	MaxTraffic          float64 `yaml:"max_traffic"`
	JobAttractiveness   float64 `yaml:"job_attractiveness"`

	UpgradeConditions []ConditionSpec `yaml:"upgrade_conditions" validate:"dive"`
	Rules             []RuleSpec      `yaml:"rules" validate:"dive"`
}

// Value returns the level's base value for a stat.
func (l *LevelDef) Value(s Stat) float64 {
	switch s {
	case StatExpToNext:
		return float64(l.ExpToNext)
	case StatMaxPopulation:
		return float64(l.MaxPopulation)
	case StatMaxJobs:
		return float64(l.MaxJobs)
	case StatMaxStorage:
		return float64(l.StorageCapacity)
	case StatTransportRadius:
		return l.TransportRadius
	case StatDistributeRadius:
		return l.DistributeRadius
	case StatMaxTraffic:
		return l.MaxTraffic
	case StatTransportResistance:
		return float64(l.TransportResistance)
	case StatJobAttractiveness:
		return l.JobAttractiveness
	default:
		return 0
	}
}

// Archetype is a building type.
type Archetype struct {
	ID             string `yaml:"id" validate:"required"`
	Name           string `yaml:"name"`
	Size           int    `yaml:"size" validate:"min=0"`
	Classification string `yaml:"classification"`
	Introduction   string `yaml:"introduction"`

	ShowConditions  []ConditionSpec `yaml:"show_conditions" validate:"dive"`
	BuildConditions []ConditionSpec `yaml:"build_conditions" validate:"dive"`
	BaseRules       []RuleSpec      `yaml:"base_rules" validate:"dive"`
	Levels          []LevelDef      `yaml:"levels" validate:"dive"`
}

// Level returns the level definition at index, clamped into range.
// It returns nil when the archetype defines no levels.
func (a *Archetype) Level(index int) *LevelDef {
	if a == nil || len(a.Levels) == 0 {
		return nil
	}
	index = max(0, min(index, len(a.Levels)-1))
	return &a.Levels[index]
}

// TechNode is a research node.
type TechNode struct {
	ID           string   `yaml:"id" validate:"required"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Cost         int      `yaml:"cost" validate:"min=0"`
	Dependencies []string `yaml:"dependencies"`
}
