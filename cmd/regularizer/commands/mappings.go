package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
	"github.com/saaqdata/regularizer/internal/storage"
)

var (
	mapUncuratedMake  int64
	mapUncuratedModel int64
	mapCanonicalMake  int64
	mapCanonicalModel int64
	mapVehicleType    int64
	mapFuelType       int64
	mapModelYear      int
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage regularization mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pair and year mappings",
	RunE:  runMappingsList,
}

var mappingsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a pair-level mapping",
	RunE:  runMappingsAdd,
}

var mappingsAddYearCmd = &cobra.Command{
	Use:   "add-year",
	Short: "Add a year-specific fuel type mapping",
	RunE:  runMappingsAddYear,
}

var mappingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a pair-level mapping by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingsDelete,
}

func init() {
	mappingsAddCmd.Flags().Int64Var(&mapUncuratedMake, "make", 0, "uncurated make ID (required)")
	mappingsAddCmd.Flags().Int64Var(&mapUncuratedModel, "model", 0, "uncurated model ID (required)")
	mappingsAddCmd.Flags().Int64Var(&mapCanonicalMake, "to-make", 0, "canonical make ID (required)")
	mappingsAddCmd.Flags().Int64Var(&mapCanonicalModel, "to-model", 0, "canonical model ID (required)")
	mappingsAddCmd.Flags().Int64Var(&mapVehicleType, "vehicle-type", 0, "vehicle type ID (optional)")
	mappingsAddCmd.Flags().Int64Var(&mapFuelType, "fuel-type", 0, "fuel type ID applied to all model years (optional)")
	mappingsAddCmd.MarkFlagRequired("make")
	mappingsAddCmd.MarkFlagRequired("model")
	mappingsAddCmd.MarkFlagRequired("to-make")
	mappingsAddCmd.MarkFlagRequired("to-model")

	mappingsAddYearCmd.Flags().Int64Var(&mapUncuratedMake, "make", 0, "uncurated make ID (required)")
	mappingsAddYearCmd.Flags().Int64Var(&mapUncuratedModel, "model", 0, "uncurated model ID (required)")
	mappingsAddYearCmd.Flags().Int64Var(&mapCanonicalMake, "to-make", 0, "canonical make ID (defaults to --make)")
	mappingsAddYearCmd.Flags().Int64Var(&mapCanonicalModel, "to-model", 0, "canonical model ID (defaults to --model)")
	mappingsAddYearCmd.Flags().IntVar(&mapModelYear, "year", 0, "model year (required)")
	mappingsAddYearCmd.Flags().Int64Var(&mapFuelType, "fuel-type", 0, "fuel type ID (required)")
	mappingsAddYearCmd.MarkFlagRequired("make")
	mappingsAddYearCmd.MarkFlagRequired("model")
	mappingsAddYearCmd.MarkFlagRequired("year")
	mappingsAddYearCmd.MarkFlagRequired("fuel-type")

	mappingsCmd.AddCommand(mappingsListCmd, mappingsAddCmd, mappingsAddYearCmd, mappingsDeleteCmd)
	rootCmd.AddCommand(mappingsCmd)
}

func runMappingsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	mappings, err := a.engine.Mappings(ctx)
	if err != nil {
		return fmt.Errorf("list mappings: %w", err)
	}
	triplets, err := a.engine.YearMappings(ctx)
	if err != nil {
		return fmt.Errorf("list year mappings: %w", err)
	}

	ui.Section("Pair Mappings")
	if len(mappings) == 0 {
		ui.Message("none")
	}
	for _, m := range mappings {
		extra := ""
		if m.VehicleTypeID != nil {
			extra += fmt.Sprintf(" vehicle_type=%d", *m.VehicleTypeID)
		}
		if m.FuelTypeID != nil {
			extra += fmt.Sprintf(" fuel_type=%d (all years)", *m.FuelTypeID)
		}
		ui.Message("#%d  (%d,%d) -> (%d,%d)%s  %d records %d-%d",
			m.ID, m.UncuratedMakeID, m.UncuratedModelID,
			m.CanonicalMakeID, m.CanonicalModelID, extra,
			m.RecordCount, m.YearRangeStart, m.YearRangeEnd)
	}

	ui.Section("Year Mappings")
	if len(triplets) == 0 {
		ui.Message("none")
	}
	for _, t := range triplets {
		ui.Message("#%d  (%d,%d) year %d -> fuel_type=%d",
			t.ID, t.UncuratedMakeID, t.UncuratedModelID, t.ModelYear, t.FuelTypeID)
	}
	return nil
}

func runMappingsAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	m := &storage.Mapping{
		UncuratedMakeID:  mapUncuratedMake,
		UncuratedModelID: mapUncuratedModel,
		CanonicalMakeID:  mapCanonicalMake,
		CanonicalModelID: mapCanonicalModel,
	}
	if cmd.Flags().Changed("vehicle-type") {
		m.VehicleTypeID = &mapVehicleType
	}
	if cmd.Flags().Changed("fuel-type") {
		m.FuelTypeID = &mapFuelType
	}

	if err := a.engine.SaveMapping(ctx, m); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			ui.Warning("Pair (%d,%d) is already mapped. Delete the existing mapping first or edit it.",
				mapUncuratedMake, mapUncuratedModel)
			return nil
		}
		return fmt.Errorf("save mapping: %w", err)
	}
	ui.Success("Mapping #%d saved.", m.ID)
	return nil
}

func runMappingsAddYear(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	canonicalMake, canonicalModel := mapCanonicalMake, mapCanonicalModel
	if canonicalMake == 0 {
		canonicalMake = mapUncuratedMake
	}
	if canonicalModel == 0 {
		canonicalModel = mapUncuratedModel
	}
	t := &storage.YearMapping{
		UncuratedMakeID:  mapUncuratedMake,
		UncuratedModelID: mapUncuratedModel,
		CanonicalMakeID:  canonicalMake,
		CanonicalModelID: canonicalModel,
		ModelYear:        mapModelYear,
		FuelTypeID:       mapFuelType,
	}
	if err := a.engine.SaveYearMapping(ctx, t); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			ui.Warning("Pair (%d,%d) already has a mapping for year %d.",
				mapUncuratedMake, mapUncuratedModel, mapModelYear)
			return nil
		}
		return fmt.Errorf("save year mapping: %w", err)
	}
	ui.Success("Year mapping #%d saved.", t.ID)
	return nil
}

func runMappingsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid mapping ID %q", args[0])
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.DeleteMapping(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ui.Warning("No mapping with ID %d.", id)
			return nil
		}
		return fmt.Errorf("delete mapping: %w", err)
	}
	ui.Success("Mapping #%d deleted.", id)
	return nil
}
