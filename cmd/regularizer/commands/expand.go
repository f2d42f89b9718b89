package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
)

var (
	expandMakes  string
	expandModels string
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Show how a make/model ID filter expands through mappings",
	RunE:  runExpand,
}

func init() {
	expandCmd.Flags().StringVar(&expandMakes, "makes", "", "comma-separated make IDs (required)")
	expandCmd.Flags().StringVar(&expandModels, "models", "", "comma-separated model IDs")
	expandCmd.MarkFlagRequired("makes")
	rootCmd.AddCommand(expandCmd)
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	makeIDs, err := parseIDList(expandMakes)
	if err != nil {
		return err
	}
	modelIDs, err := parseIDList(expandModels)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.engine.RegularizationEnabled() {
		ui.Warning("Regularization is disabled; filters pass through unchanged.")
	}

	expandedMakes, expandedModels, err := a.engine.ExpandPairIDs(ctx, makeIDs, modelIDs)
	if err != nil {
		return fmt.Errorf("expand filter: %w", err)
	}

	ui.Message("Makes:  %v -> %v", makeIDs, expandedMakes)
	ui.Message("Models: %v -> %v", modelIDs, expandedModels)
	return nil
}

func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
