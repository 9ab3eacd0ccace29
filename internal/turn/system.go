// Package turn sequences the phases of a round and gates the end of turn
// behind registered blocks.
package turn

import (
	"log/slog"
	"sort"
	"time"
)

// Phase is one step of a round.
type Phase uint8

const (
	PhaseEndPrep Phase = iota
	PhaseResourceConsume
	PhaseResourceProduce
	PhaseTurnEnd
	PhaseStartPrep
)

// Phases lists every phase in firing order.
var Phases = [...]Phase{
	PhaseEndPrep,
	PhaseResourceConsume,
	PhaseResourceProduce,
	PhaseTurnEnd,
	PhaseStartPrep,
}

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseEndPrep:
		return "EndPrep"
	case PhaseResourceConsume:
		return "ResourceConsume"
	case PhaseResourceProduce:
		return "ResourceProduce"
	case PhaseTurnEnd:
		return "TurnEnd"
	case PhaseStartPrep:
		return "StartPrep"
	default:
		return "Unknown"
	}
}

// Listener receives every phase as it fires.
type Listener func(Phase)

// Block prevents the round from ending while registered.
type Block struct {
	ID        int
	Reason    string
	Duration  *time.Duration // nil for manual blocks
	ExpiresAt time.Time
}

// Timed reports whether the block expires on its own.
func (b Block) Timed() bool { return b.Duration != nil }

// Config holds turn system parameters.
type Config struct {
	// Cooldown is the lifetime of the block registered after EndPrep.
	// Zero disables it.
	Cooldown time.Duration
}

// DefaultConfig returns the standard one second end-turn cooldown.
func DefaultConfig() Config {
	return Config{Cooldown: time.Second}
}

// SaveData is the persisted turn state.
type SaveData struct {
	Round int `json:"round"`
}

type listenerEntry struct {
	id int
	fn Listener
}

// System is the turn phase orchestrator.
// It is not safe for concurrent use; the engine runner owns it.
type System struct {
	cfg   Config
	clock Clock

	round       int
	nextBlockID int
	blocks      map[int]Block
	ending      bool

	listeners      []listenerEntry
	nextListenerID int
	countObservers []func(int)
}

// NewSystem creates a turn system. A nil clock uses the wall clock.
func NewSystem(cfg Config, clock Clock) *System {
	if clock == nil {
		clock = SystemClock{}
	}
	return &System{
		cfg:    cfg,
		clock:  clock,
		blocks: make(map[int]Block),
	}
}

// Subscribe registers a phase listener. Listeners fire in subscription order.
// The returned function removes the listener.
func (s *System) Subscribe(l Listener) func() {
	s.nextListenerID++
	id := s.nextListenerID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	return func() {
		for i, e := range s.listeners {
			if e.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnBlockCountChanged registers an observer of the block count.
func (s *System) OnBlockCountChanged(fn func(count int)) {
	s.countObservers = append(s.countObservers, fn)
}

// Round returns the number of completed rounds.
func (s *System) Round() int { return s.round }

// EndTurn fires every phase in order and advances the round.
// It returns false without firing anything while blocked or while a
// previous EndTurn is still dispatching.
func (s *System) EndTurn() bool {
	if s.ending || s.IsBlocked() {
		slog.Debug("end turn refused", "round", s.round, "blocks", len(s.blocks))
		return false
	}
	s.ending = true
	defer func() { s.ending = false }()

	for _, p := range Phases {
		s.fire(p)
		if p == PhaseEndPrep && s.cfg.Cooldown > 0 {
			s.AddTimedBlock("end turn cooldown", s.cfg.Cooldown)
		}
	}
	s.round++
	slog.Debug("turn ended", "round", s.round)
	return true
}

// fire dispatches a phase to a snapshot of the listener list, so
// subscription changes made by a listener apply from the next phase.
func (s *System) fire(p Phase) {
	snapshot := make([]listenerEntry, len(s.listeners))
	copy(snapshot, s.listeners)
	for _, e := range snapshot {
		e.fn(p)
	}
}

// AddTimedBlock registers a block that expires after d. Expiry is only
// observed by Tick, so a non-positive d expires on the next Tick.
func (s *System) AddTimedBlock(reason string, d time.Duration) int {
	d = max(d, 0)
	s.nextBlockID++
	id := s.nextBlockID
	s.blocks[id] = Block{
		ID:        id,
		Reason:    reason,
		Duration:  &d,
		ExpiresAt: s.clock.Now().Add(d),
	}
	s.notifyCount()
	return id
}

// AddManualBlock registers a block that stays until RemoveBlock.
func (s *System) AddManualBlock(reason string) int {
	s.nextBlockID++
	id := s.nextBlockID
	s.blocks[id] = Block{ID: id, Reason: reason}
	s.notifyCount()
	return id
}

// RemoveBlock removes a block by id. It returns false for unknown ids.
func (s *System) RemoveBlock(id int) bool {
	if _, ok := s.blocks[id]; !ok {
		return false
	}
	delete(s.blocks, id)
	s.notifyCount()
	return true
}

// Tick removes every timed block whose deadline has passed and returns how
// many were removed.
func (s *System) Tick() int {
	now := s.clock.Now()
	var expired []int
	for id, b := range s.blocks {
		if b.Timed() && !now.Before(b.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return 0
	}
	for _, id := range expired {
		delete(s.blocks, id)
	}
	s.notifyCount()
	return len(expired)
}

// IsBlocked reports whether any block is registered.
func (s *System) IsBlocked() bool { return len(s.blocks) > 0 }

// BlockCount returns the number of registered blocks.
func (s *System) BlockCount() int { return len(s.blocks) }

// Blocks returns the registered blocks ordered by id.
func (s *System) Blocks() []Block {
	out := make([]Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *System) notifyCount() {
	n := len(s.blocks)
	for _, fn := range s.countObservers {
		fn(n)
	}
}

// Save returns the persisted turn state.
func (s *System) Save() SaveData {
	return SaveData{Round: s.round}
}

// Load restores the round counter.
func (s *System) Load(data SaveData) {
	if data.Round < 0 {
		data.Round = 0
	}
	s.round = data.Round
}
