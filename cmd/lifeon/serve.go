package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/lifeon/internal/api"
	"github.com/talgya/lifeon/internal/config"
	"github.com/talgya/lifeon/internal/engine"
	"github.com/talgya/lifeon/internal/persistence"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a settlement over HTTP",
		Long: `Run a settlement behind the HTTP API. Turns advance through POST
/api/v1/turn or automatically every LIFEON_AUTO_TURN. The settlement is saved
every LIFEON_SAVE_EVERY and on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "settlement name, derived from the seed when empty")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "save id to continue from")
	cmd.Flags().StringVar(&opts.research, "research", "agriculture", "technology to research first; empty for none")
	cmd.Flags().StringSliceVar(&opts.starters, "starter", defaultStarters, "archetypes placed on a new map")
	cmd.Flags().IntVar(&cfg.Port, "port", 8080, "listen port (LIFEON_PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, opts runOptions) error {
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

	sim, saveID, name, err := prepare(db, cat, cfg, opts)
	if err != nil {
		return err
	}
	if opts.research != "" && opts.resume == "" {
		sim.Research().StartResearch(opts.research)
	}

	runner := engine.NewRunner(sim, cfg.AutoTurn)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(runCtx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	srv := &api.Server{
		Runner:   runner,
		DB:       db,
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
		SaveID:   saveID,
		SaveName: name,
	}

	save := func() {
		var data engine.SaveData
		var events []engine.Event
		err := runner.Do(context.Background(), func(s *engine.Simulation) error {
			data = s.Save(srv.SaveID, srv.SaveName)
			srv.SaveID = data.ID
			events = slices.Clone(s.Events)
			return nil
		})
		if err == nil {
			err = db.SaveGame(data, events)
		}
		if err != nil {
			slog.Error("periodic save failed", "error", err)
		}
	}

	if cfg.SaveEvery > 0 {
		go func() {
			t := time.NewTicker(cfg.SaveEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					save()
				}
			}
		}()
	}

	err = srv.ListenAndServe(ctx)
	save()
	return err
}
