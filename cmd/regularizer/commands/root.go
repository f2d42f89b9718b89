// Package commands implements the regularizer CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "regularizer",
	Short: "Make/model regularization engine for vehicle registration data",
	Long: `The regularizer detects make/model pairs that appear only in uncurated
registration years, manages the mappings that correct them to canonical
pairs, and auto-assigns vehicle and fuel types where curated data leaves
no ambiguity.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
