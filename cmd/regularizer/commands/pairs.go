package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
	"github.com/saaqdata/regularizer/internal/detector"
)

var (
	pairsIncludeExact bool
	pairsRefresh      bool
	pairsWithStatus   bool
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List make/model pairs found only in uncurated years",
	RunE:  runPairs,
}

func init() {
	pairsCmd.Flags().BoolVar(&pairsIncludeExact, "include-exact", false, "include pairs whose names also exist in curated data")
	pairsCmd.Flags().BoolVar(&pairsRefresh, "refresh", false, "discard the cached scan and recompute")
	pairsCmd.Flags().BoolVar(&pairsWithStatus, "status", false, "derive curation status per pair (slower)")
	rootCmd.AddCommand(pairsCmd)
}

func runPairs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.UncuratedPairs(ctx, detector.Options{
		IncludeExactMatches: pairsIncludeExact,
		ForceRefresh:        pairsRefresh,
	})
	if err != nil {
		return fmt.Errorf("detect pairs: %w", err)
	}

	ui.Section("Uncurated Pairs")
	if res.FromCache {
		ui.Message("(served from cached scan)")
	}
	if len(res.Pairs) == 0 {
		ui.Success("No uncurated pairs found.")
		return nil
	}

	for _, p := range res.Pairs {
		line := fmt.Sprintf("%-20s %-20s %8d records  %d-%d",
			p.MakeName, p.ModelName, p.RecordCount, p.EarliestYear, p.LatestYear)
		if p.IsExactMatch {
			line += " " + ui.ExactBadge()
		}
		if pairsWithStatus {
			st, err := a.engine.PairStatus(ctx, p)
			if err != nil {
				return fmt.Errorf("status for %s %s: %w", p.MakeName, p.ModelName, err)
			}
			line += "  " + ui.StatusBadge(string(st))
		}
		ui.Message("%s", line)
	}
	ui.Message("\n%d pairs", len(res.Pairs))
	return nil
}
