package commands

import (
	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
	"github.com/saaqdata/regularizer/internal/config"
)

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "Show the configured curated/uncurated year partition",
	RunE:  runYears,
}

var yearsCheckCmd = &cobra.Command{
	Use:   "check <years>",
	Short: "Parse and validate a year list expression",
	Long:  `Accepts forms like "2011-2022" or "2011,2013,2023-2024" and prints the resolved set.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runYearsCheck,
}

func init() {
	yearsCmd.AddCommand(yearsCheckCmd)
	rootCmd.AddCommand(yearsCmd)
}

func runYears(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	years := a.engine.Years()
	ui.Message("Curated:   %v", years.CuratedYears())
	ui.Message("Uncurated: %v", years.UncuratedYears())
	ui.Message("Signature: %s", years.Signature())
	return nil
}

func runYearsCheck(cmd *cobra.Command, args []string) error {
	ui.Init(noColor)

	years, err := config.ParseYearList(args[0])
	if err != nil {
		return err
	}
	ui.Message("%v", years)
	return nil
}
