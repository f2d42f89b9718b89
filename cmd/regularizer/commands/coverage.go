package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show assignment coverage over uncurated pairs",
	RunE:  runCoverage,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent auto-assignment runs",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(coverageCmd, runsCmd)
}

func runCoverage(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	cov, err := a.engine.Coverage(ctx)
	if err != nil {
		return fmt.Errorf("compute coverage: %w", err)
	}

	ui.Section("Coverage")
	ui.Message("Total pairs:        %d", cov.TotalPairs)
	ui.Message("With vehicle type:  %d", cov.WithVehicleType)
	ui.Message("With fuel type:     %d", cov.WithFuelType)
	ui.Message("")
	ui.Message("%s: %d   %s: %d   %s: %d",
		ui.StatusBadge("complete"), cov.Complete,
		ui.StatusBadge("partial"), cov.Partial,
		ui.StatusBadge("unassigned"), cov.Unassigned)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	runs, err := a.engine.RecentRuns(ctx, 20)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	ui.Section("Recent Auto-Assignment Runs")
	if len(runs) == 0 {
		ui.Message("none")
		return nil
	}
	for _, r := range runs {
		ui.Message("%s  %s  considered=%d assigned=%d skipped=%d failed=%d  %s",
			r.StartedAt.Format(time.RFC3339), r.ID,
			r.PairsConsidered, r.PairsAssigned, r.PairsSkipped, r.PairsFailed,
			r.Duration.Round(time.Millisecond))
	}
	return nil
}
