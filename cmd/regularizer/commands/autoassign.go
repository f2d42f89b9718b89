package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
)

var autoassignCmd = &cobra.Command{
	Use:   "autoassign",
	Short: "Auto-assign vehicle and fuel types to exact-match pairs",
	Long: `Scans uncurated pairs whose make/model names also exist in curated
data, records the make/model mapping, and assigns vehicle type and fuel
type wherever the curated record leaves exactly one candidate. Ambiguous
dimensions are left unset for manual curation. Re-running is safe:
existing mappings are never overwritten.`,
	RunE: runAutoAssign,
}

func init() {
	rootCmd.AddCommand(autoassignCmd)
}

func runAutoAssign(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	var bar *ui.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = ui.NewProgressBar(int64(total), "assigning")
		}
		bar.Set(int64(done))
	}

	rep, err := a.engine.AutoAssign(ctx, progress)
	if err != nil {
		return fmt.Errorf("auto-assignment: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	ui.Section("Auto-Assignment Report")
	ui.Message("Run ID:     %s", rep.RunID)
	ui.Message("Considered: %d", rep.PairsConsidered)
	ui.Success("Assigned:   %d", rep.PairsAssigned)
	ui.Message("Skipped:    %d", rep.PairsSkipped)
	if rep.PairsFailed > 0 {
		ui.Error("Failed:     %d", rep.PairsFailed)
	}
	ui.Message("Elapsed:    %s", rep.Duration.Round(time.Millisecond))
	return nil
}
