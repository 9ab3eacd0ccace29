package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/lifeon/internal/config"
	"github.com/talgya/lifeon/internal/world"
)

func newPathCommand(cfg *config.Config) *cobra.Command {
	var maxCost float64

	cmd := &cobra.Command{
		Use:   "path FROM TO",
		Short: "Find the cheapest route between two cells",
		Long: `Generate the map for the configured seed and radius and run A* between two
axial coordinates written as q,r (for example: lifeon path 0,0 3,-2).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAxial(args[0])
			if err != nil {
				return err
			}
			to, err := parseAxial(args[1])
			if err != nil {
				return err
			}
			if cfg.Seed == 0 {
				return fmt.Errorf("path needs a fixed --seed to describe a map")
			}

			m := world.Generate(cfg.GenConfig())
			out := cmd.OutOrStdout()
			for _, c := range []world.HexCoord{from, to} {
				cell := m.Get(c)
				if cell == nil {
					return fmt.Errorf("%s is outside the map", c)
				}
				fmt.Fprintf(out, "%s: %s\n", c, world.TerrainName(cell.Terrain))
			}

			path, ok := world.FindPath(m, from, to, maxCost)
			if !ok {
				fmt.Fprintln(out, "no route")
				return nil
			}
			steps := make([]string, 0, len(path)+1)
			steps = append(steps, from.String())
			for _, c := range path {
				steps = append(steps, c.String())
			}
			fmt.Fprintf(out, "route (%d steps, cost %.2f): %s\n",
				len(path), world.PathCost(m, path), strings.Join(steps, " -> "))
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxCost, "max-cost", 0, "give up beyond this cost; 0 means unlimited")
	return cmd
}

func parseAxial(s string) (world.HexCoord, error) {
	qs, rs, ok := strings.Cut(s, ",")
	if !ok {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: want q,r", s)
	}
	q, err := strconv.Atoi(strings.TrimSpace(qs))
	if err != nil {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	r, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return world.Axial(q, r), nil
}
