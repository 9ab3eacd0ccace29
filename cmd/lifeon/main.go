// Command lifeon runs a turn-based hex settlement.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/talgya/lifeon/internal/catalog"
	"github.com/talgya/lifeon/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg config.Config
	var envFile string

	root := &cobra.Command{
		Use:           "lifeon",
		Short:         "Turn-based hex settlement simulation",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Values already in the environment win over the file.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			// Flags given on the command line win over the environment.
			flags := cmd.Flags()
			if flags.Changed("db") {
				loaded.DBPath = cfg.DBPath
			}
			if flags.Changed("catalog") {
				loaded.CatalogPath = cfg.CatalogPath
			}
			if flags.Changed("seed") {
				loaded.Seed = cfg.Seed
			}
			if flags.Changed("radius") {
				loaded.Radius = cfg.Radius
			}
			if flags.Changed("port") {
				loaded.Port = cfg.Port
			}
			if flags.Changed("log-level") {
				loaded.LogLevel = cfg.LogLevel
			}
			level, err := config.ParseLevel(loaded.LogLevel)
			if err != nil {
				return err
			}
			cfg = loaded

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "optional file of LIFEON_* variables")
	pf.StringVar(&cfg.DBPath, "db", "data/lifeon.db", "SQLite database path (LIFEON_DB_PATH)")
	pf.StringVar(&cfg.CatalogPath, "catalog", "", "catalog YAML file, built-in when empty (LIFEON_CATALOG)")
	pf.Int64Var(&cfg.Seed, "seed", 0, "map seed, random when 0 (LIFEON_SEED)")
	pf.IntVar(&cfg.Radius, "radius", 16, "map radius (LIFEON_RADIUS)")
	pf.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error (LIFEON_LOG_LEVEL)")

	root.AddCommand(newRunCommand(&cfg))
	root.AddCommand(newPathCommand(&cfg))
	root.AddCommand(newCatalogCommand(&cfg))
	root.AddCommand(newSavesCommand(&cfg))
	root.AddCommand(newServeCommand(&cfg))
	return root
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}
