package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/lifeon/internal/config"
	"github.com/talgya/lifeon/internal/persistence"
)

func newCatalogCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [FILE]",
		Short: "Validate a catalog and list its contents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.CatalogPath
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := loadCatalog(path)
			if err != nil {
				return err
			}
			if path == "" {
				path = "built-in"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s is valid\n", path)

			fmt.Fprintf(out, "Supplies (%d):\n", len(cat.Supplies))
			for _, s := range cat.Supplies {
				fmt.Fprintf(out, "  %-14s %-10s unit %d\n", s.ID, s.Category, s.OccupationUnit)
			}

			fmt.Fprintf(out, "Archetypes (%d):\n", len(cat.Archetypes))
			for _, a := range cat.Archetypes {
				levels := make([]string, 0, len(a.Levels))
				for _, l := range a.Levels {
					levels = append(levels, l.Name)
				}
				fmt.Fprintf(out, "  %-14s size %d  %s\n", a.ID, a.Size, strings.Join(levels, " > "))
			}

			fmt.Fprintf(out, "Technologies (%d):\n", len(cat.Techs))
			for _, t := range cat.Techs {
				deps := "none"
				if len(t.Dependencies) > 0 {
					deps = strings.Join(t.Dependencies, ", ")
				}
				fmt.Fprintf(out, "  %-14s cost %-4d needs %s\n", t.ID, t.Cost, deps)
			}
			return nil
		},
	}
}

func newSavesCommand(cfg *config.Config) *cobra.Command {
	var remove string

	cmd := &cobra.Command{
		Use:   "saves",
		Short: "List or delete stored settlements",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := persistence.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if remove != "" {
				if err := db.DeleteSave(remove); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted %s\n", remove)
				return nil
			}

			saves, err := db.ListSaves()
			if err != nil {
				return err
			}
			if len(saves) == 0 {
				fmt.Fprintln(out, "no saves")
				return nil
			}
			for _, s := range saves {
				fmt.Fprintf(out, "%s  %-20s round %-6s %s\n", s.ID, s.Name, humanize.Comma(int64(s.Round)), humanize.Time(s.SavedAt))
				events, err := db.RecentEvents(s.ID, 3)
				if err != nil {
					return err
				}
				for _, e := range events {
					fmt.Fprintf(out, "    [%d] %s\n", e.Round, e.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remove, "delete", "", "delete the save with this id")
	return cmd
}
