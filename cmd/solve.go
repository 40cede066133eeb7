package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/rings/internal/bruteforce"
	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/presets"
)

var (
	solvePreset   string
	solveRings    string
	solveAngles   int
	solveMaxMoves int
	solveTimeout  time.Duration
)

func init() {
	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a layout offline",
		Long: `Search for the shortest move sequence after which a layout can be cleared.

Examples:
  rings solve --preset line-one-off
  rings solve --rings 0x1,0x1,0x1,0x2 --angles 12 --max-moves 2`,
		RunE: runSolve,
	}
	solveCmd.Flags().StringVarP(&solvePreset, "preset", "p", "", "Preset name")
	solveCmd.Flags().StringVarP(&solveRings, "rings", "r", "", "Comma-separated ring masks, innermost first")
	solveCmd.Flags().IntVar(&solveAngles, "angles", 12, "Cells per ring (with --rings)")
	solveCmd.Flags().IntVarP(&solveMaxMoves, "max-moves", "m", bruteforce.DefaultMaxMoves, "Move budget")
	solveCmd.Flags().DurationVar(&solveTimeout, "timeout", 10*time.Second, "Search timeout")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	d, rings, err := solveInput()
	if err != nil {
		return err
	}
	g, err := grid.Decode(d, rings)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, g.Format())

	s, err := bruteforce.New(d, &bruteforce.Options{MaxMoves: solveMaxMoves, Timeout: solveTimeout})
	if err != nil {
		return err
	}
	start := time.Now()
	sol, err := s.Solve(context.Background(), rings)
	if errors.Is(err, bruteforce.ErrNoSolution) {
		fmt.Fprintf(out, "no solution within %d moves (%d nodes, %s)\n", solveMaxMoves, s.Nodes(), time.Since(start).Round(time.Millisecond))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "solved in %d moves (%d nodes, %s)\n", len(sol.Moves), s.Nodes(), time.Since(start).Round(time.Millisecond))
	for i, m := range sol.Moves {
		fmt.Fprintf(out, "  %d. %v\n", i+1, m)
	}
	res, err := grid.Decode(d, sol.Result)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "jumps: %d  hammers: %d\n%s\n", sol.JumpRows, sol.HammerGroups, res.Format())
	return nil
}

func solveInput() (grid.Dims, []uint64, error) {
	switch {
	case solvePreset != "":
		if err := presets.Init(); err != nil {
			return grid.Dims{}, nil, err
		}
		p, err := presets.Get(solvePreset)
		if err != nil {
			return grid.Dims{}, nil, err
		}
		return p.Dims, p.Rings, nil
	case solveRings != "":
		var rings []uint64
		for _, part := range strings.Split(solveRings, ",") {
			v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 64)
			if err != nil {
				return grid.Dims{}, nil, fmt.Errorf("ring %q: %w", part, err)
			}
			rings = append(rings, v)
		}
		return grid.Dims{Rings: len(rings), Angles: solveAngles}, rings, nil
	default:
		return grid.Dims{}, nil, errors.New("one of --preset or --rings is required")
	}
}
