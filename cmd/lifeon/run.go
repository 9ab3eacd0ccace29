package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/config"
	"github.com/talgya/lifeon/internal/engine"
	"github.com/talgya/lifeon/internal/persistence"
	"github.com/talgya/lifeon/internal/turn"
	"github.com/talgya/lifeon/internal/world"
)

var defaultStarters = []string{"warehouse", "residence", "berry_bush", "library"}

type runOptions struct {
	turns    int
	name     string
	resume   string
	snapshot string
	research string
	starters []string
}

func newRunCommand(cfg *config.Config) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a settlement for a number of turns and save it",
		Long: `Generate a map, place the starter buildings, end the requested number of
turns and store the result in the database. With --resume an earlier save
is loaded instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSettlement(ctx, *cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&opts.turns, "turns", "n", 10, "number of turns to play")
	cmd.Flags().StringVar(&opts.name, "name", "", "settlement name, derived from the seed when empty")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "save id to continue from")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "also write a compressed snapshot to this file")
	cmd.Flags().StringVar(&opts.research, "research", "agriculture", "technology to research first; empty for none")
	cmd.Flags().StringSliceVar(&opts.starters, "starter", defaultStarters, "archetypes placed on a new map")
	return cmd
}

func runSettlement(ctx context.Context, cfg config.Config, opts runOptions, out io.Writer) error {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	sim, saveID, name, err := prepare(db, cat, cfg, opts)
	if err != nil {
		return err
	}
	if opts.research != "" && opts.resume == "" {
		if !sim.Research().StartResearch(opts.research) {
			slog.Warn("research could not start", "tech", opts.research)
		}
	}

	runner := engine.NewRunner(sim, cfg.AutoTurn)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		runner.Run(runCtx)
		close(done)
	}()

	played, err := playTurns(runCtx, runner, opts.turns, cfg.AutoTurn > 0)
	if err != nil {
		slog.Warn("turns interrupted", "played", played, "error", err)
	}

	var data engine.SaveData
	var events []engine.Event
	// Saving goes through the runner so it sees a consistent settlement.
	saveErr := runner.Do(context.Background(), func(s *engine.Simulation) error {
		data = s.Save(saveID, name)
		events = slices.Clone(s.Events)
		s.RefreshStats()
		return nil
	})
	cancel()
	<-done
	if saveErr != nil {
		return fmt.Errorf("capture settlement: %w", saveErr)
	}

	if err := db.SaveGame(data, events); err != nil {
		return fmt.Errorf("save settlement: %w", err)
	}
	var snapshotSize int64 = -1
	if opts.snapshot != "" {
		if err := persistence.WriteSnapshotFile(opts.snapshot, data); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if fi, err := os.Stat(opts.snapshot); err == nil {
			snapshotSize = fi.Size()
		}
	}

	printReport(out, sim, data, played, snapshotSize, opts.snapshot)
	return nil
}

// prepare restores a save or builds a new settlement.
func prepare(db *persistence.DB, cat *catalog.Catalog, cfg config.Config, opts runOptions) (*engine.Simulation, string, string, error) {
	turns := turn.NewSystem(cfg.TurnConfig(), nil)

	if opts.resume != "" {
		data, err := db.LoadGame(opts.resume)
		if err != nil {
			return nil, "", "", err
		}
		sim := engine.NewSimulation(cat, world.Generate(data.Gen), turns)
		if err := sim.Load(data); err != nil {
			return nil, "", "", err
		}
		name := data.Name
		if opts.name != "" {
			name = opts.name
		}
		return sim, data.ID, name, nil
	}

	sim := engine.Generate(cat, cfg.GenConfig(), turns)
	name := opts.name
	if name == "" {
		name = world.SettlementName(sim.Gen.Seed)
	}
	for _, id := range opts.starters {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := sim.PlaceAuto(id); err != nil {
			slog.Warn("starter building not placed", "archetype", id, "error", err)
		}
	}
	return sim, "", name, nil
}

// playTurns waits until n turns have passed, waiting out any blocks between
// them. With auto set the runner ends turns on its own and playTurns only
// watches the round counter.
func playTurns(ctx context.Context, r *engine.Runner, n int, auto bool) (int, error) {
	round := func() (int, error) {
		var v int
		err := r.Do(ctx, func(s *engine.Simulation) error {
			v = s.Turns.Round()
			return nil
		})
		return v, err
	}
	start, err := round()
	if err != nil {
		return 0, err
	}

	played := 0
	wait := time.NewTicker(engine.DefaultPoll)
	defer wait.Stop()

	for played < n {
		if auto {
			now, err := round()
			if err != nil {
				return played, err
			}
			played = now - start
		} else {
			ran, err := r.EndTurn(ctx)
			if err != nil {
				return played, err
			}
			if ran {
				played++
				continue
			}
		}
		if played >= n {
			break
		}
		select {
		case <-ctx.Done():
			return played, ctx.Err()
		case <-wait.C:
		}
	}
	return played, nil
}

func printReport(out io.Writer, sim *engine.Simulation, data engine.SaveData, played int, snapshotSize int64, snapshotPath string) {
	st := sim.Stats
	fmt.Fprintf(out, "%s (%s)\n", data.Name, data.ID)
	fmt.Fprintf(out, "  Turns played:  %s (round %s)\n", humanize.Comma(int64(played)), humanize.Comma(int64(st.Round)))
	fmt.Fprintf(out, "  Buildings:     %s\n", humanize.Comma(int64(st.Buildings)))
	fmt.Fprintf(out, "  Population:    %s (%s working, %s unemployed)\n",
		humanize.Comma(int64(st.Population)), humanize.Comma(int64(st.Workers)), humanize.Comma(int64(st.Unemployed)))
	fmt.Fprintf(out, "  Storage:       %s / %s\n", humanize.Comma(int64(st.StoredGoods)), humanize.Comma(int64(st.Capacity)))
	fmt.Fprintf(out, "  Technologies:  %d unlocked, researching %q\n", st.UnlockedTechs, data.Research.Active)

	for _, stock := range sim.Resources().Snapshot() {
		if stock.Amount > 0 {
			fmt.Fprintf(out, "    %-12s %s\n", stock.ID, humanize.Comma(int64(stock.Amount)))
		}
	}
	for _, b := range sim.Buildings() {
		fmt.Fprintf(out, "    %-20s %-10s level %d, %s\n", b.Name(), b.Center(), b.LevelIndex()+1, english.Plural(b.CurrentPopulation(), "resident", "residents"))
	}
	if snapshotSize >= 0 {
		fmt.Fprintf(out, "  Snapshot:      %s (%s)\n", snapshotPath, humanize.Bytes(uint64(snapshotSize)))
	}
}
