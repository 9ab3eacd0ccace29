// Package engine runs the settlement: the Simulation owns all state and the
// Runner is the single goroutine allowed to touch it.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrStopped is returned by Do once the runner has stopped.
var ErrStopped = errors.New("runner stopped")

// DefaultPoll is how often the runner drains expired turn blocks.
const DefaultPoll = 100 * time.Millisecond

type op struct {
	fn   func(*Simulation) error
	done chan error
}

// Runner drives the simulation forward. Every mutation goes through its
// loop: queued closures, timer expiry, and automatic turns.
type Runner struct {
	sim      *Simulation
	Poll     time.Duration // loop interval for draining timers
	AutoTurn time.Duration // end a turn this often; 0 disables

	ops     chan op
	stopped chan struct{}
}

// NewRunner creates a runner for sim. It does nothing until Run is called.
func NewRunner(sim *Simulation, autoTurn time.Duration) *Runner {
	return &Runner{
		sim:      sim,
		Poll:     DefaultPoll,
		AutoTurn: autoTurn,
		ops:      make(chan op),
		stopped:  make(chan struct{}),
	}
}

// Run starts the loop. Blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.stopped)

	poll := r.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var turnC <-chan time.Time
	if r.AutoTurn > 0 {
		turnTicker := time.NewTicker(r.AutoTurn)
		defer turnTicker.Stop()
		turnC = turnTicker.C
	}

	slog.Info("simulation runner started", "round", r.sim.Turns.Round(), "auto_turn", r.AutoTurn)
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation runner stopped", "round", r.sim.Turns.Round())
			return
		case o := <-r.ops:
			o.done <- o.fn(r.sim)
		case <-ticker.C:
			r.sim.Turns.Tick()
		case <-turnC:
			r.sim.Turns.Tick()
			if !r.sim.EndTurn() {
				slog.Debug("automatic turn skipped", "blocks", r.sim.Turns.BlockCount())
			}
		}
	}
}

// Do runs fn on the runner's goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(*Simulation) error) error {
	o := op{fn: fn, done: make(chan error, 1)}
	select {
	case r.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrStopped
	}
	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndTurn drains expired blocks and then ends the turn on the runner's
// goroutine. It reports whether the turn ran.
func (r *Runner) EndTurn(ctx context.Context) (bool, error) {
	var ran bool
	err := r.Do(ctx, func(s *Simulation) error {
		s.Turns.Tick()
		ran = s.EndTurn()
		return nil
	})
	return ran, err
}
