package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
	"github.com/saaqdata/regularizer/internal/storage"
)

var (
	seedMake        string
	seedModel       string
	seedYear        int
	seedModelYear   int
	seedFuelType    string
	seedVehicleType string
	seedCount       int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert vehicle records for local testing",
	Long: `Interns the make, model, fuel type, and vehicle type values and
inserts registration records. Intended for fixtures and local
experiments, not bulk import.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedMake, "make", "", "make name (required)")
	seedCmd.Flags().StringVar(&seedModel, "model", "", "model name (required)")
	seedCmd.Flags().IntVar(&seedYear, "year", 0, "data collection year (required)")
	seedCmd.Flags().IntVar(&seedModelYear, "model-year", 0, "vehicle model year (required)")
	seedCmd.Flags().StringVar(&seedFuelType, "fuel-type", "", "fuel type value (optional)")
	seedCmd.Flags().StringVar(&seedVehicleType, "vehicle-type", "", "vehicle type value (optional)")
	seedCmd.Flags().IntVar(&seedCount, "count", 1, "number of identical records to insert")
	seedCmd.MarkFlagRequired("make")
	seedCmd.MarkFlagRequired("model")
	seedCmd.MarkFlagRequired("year")
	seedCmd.MarkFlagRequired("model-year")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	enums := a.engine.Enums()
	makeID, err := enums.Intern(ctx, storage.EnumMake, seedMake)
	if err != nil {
		return fmt.Errorf("intern make: %w", err)
	}
	modelID, err := enums.Intern(ctx, storage.EnumModel, seedModel)
	if err != nil {
		return fmt.Errorf("intern model: %w", err)
	}

	rec := &storage.VehicleRecord{
		MakeID:    makeID,
		ModelID:   modelID,
		Year:      seedYear,
		ModelYear: seedModelYear,
	}
	if seedFuelType != "" {
		id, err := enums.Intern(ctx, storage.EnumFuelType, seedFuelType)
		if err != nil {
			return fmt.Errorf("intern fuel type: %w", err)
		}
		rec.FuelTypeID = &id
	}
	if seedVehicleType != "" {
		id, err := enums.Intern(ctx, storage.EnumVehicleType, seedVehicleType)
		if err != nil {
			return fmt.Errorf("intern vehicle type: %w", err)
		}
		rec.VehicleTypeID = &id
	}

	for i := 0; i < seedCount; i++ {
		rec.ID = 0
		if err := a.engine.Records().Insert(ctx, rec); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	ui.Success("Inserted %d record(s) for %s %s (%d).", seedCount, seedMake, seedModel, seedModelYear)
	return nil
}
