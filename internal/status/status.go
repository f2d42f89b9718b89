// Package status derives curation status and coverage statistics for
// uncurated pairs.
package status

import (
	"context"
	"errors"

	"github.com/saaqdata/regularizer/internal/storage"
)

// Status is the curation state of one uncurated pair.
type Status string

const (
	// Unassigned means no mapping of any kind exists for the pair.
	Unassigned Status = "unassigned"
	// Partial means some dimension or model year is still missing.
	Partial Status = "partial"
	// Complete means vehicle type is assigned and every model year has
	// a fuel type, via triplet or wildcard.
	Complete Status = "complete"
)

// Derive computes the status for one pair. mapping may be nil;
// modelYears are the distinct model years the pair appears with in
// uncurated records. A triplet beats the pair-level wildcard for its
// year; the wildcard covers every year without a triplet.
func Derive(mapping *storage.Mapping, triplets []storage.YearMapping, modelYears []int) Status {
	if mapping == nil && len(triplets) == 0 {
		return Unassigned
	}

	vehicleAssigned := mapping != nil && mapping.VehicleTypeID != nil

	wildcard := mapping != nil && mapping.FuelTypeID != nil
	byYear := make(map[int]bool, len(triplets))
	for _, t := range triplets {
		byYear[t.ModelYear] = true
	}

	fuelComplete := true
	for _, y := range modelYears {
		if !byYear[y] && !wildcard {
			fuelComplete = false
			break
		}
	}
	// A pair with no observed model years can only rely on the wildcard.
	if len(modelYears) == 0 {
		fuelComplete = wildcard
	}

	if vehicleAssigned && fuelComplete {
		return Complete
	}
	return Partial
}

// Coverage summarizes assignment progress over a pair set, counted
// per dimension and overall.
type Coverage struct {
	TotalPairs      int `json:"totalPairs"`
	WithVehicleType int `json:"withVehicleType"`
	WithFuelType    int `json:"withFuelType"`
	Unassigned      int `json:"unassigned"`
	Partial         int `json:"partial"`
	Complete        int `json:"complete"`
}

// mappingSource is the store surface coverage reads.
type mappingSource interface {
	GetByUncuratedPair(ctx context.Context, makeID, modelID int64) (*storage.Mapping, error)
	TripletsByPair(ctx context.Context, makeID, modelID int64) ([]storage.YearMapping, error)
}

// modelYearSource lists model years per pair.
type modelYearSource interface {
	ModelYears(ctx context.Context, makeID, modelID int64, years []int) ([]int, error)
}

// Reporter computes coverage over detected pairs.
type Reporter struct {
	mappings mappingSource
	records  modelYearSource
}

// NewReporter creates a coverage reporter.
func NewReporter(mappings mappingSource, records modelYearSource) *Reporter {
	return &Reporter{mappings: mappings, records: records}
}

// ForPair derives the status of a single pair.
func (r *Reporter) ForPair(ctx context.Context, pair storage.UncuratedPair, uncuratedYears []int) (Status, error) {
	mapping, err := r.mappings.GetByUncuratedPair(ctx, pair.MakeID, pair.ModelID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	triplets, err := r.mappings.TripletsByPair(ctx, pair.MakeID, pair.ModelID)
	if err != nil {
		return "", err
	}
	modelYears, err := r.records.ModelYears(ctx, pair.MakeID, pair.ModelID, uncuratedYears)
	if err != nil {
		return "", err
	}
	return Derive(mapping, triplets, modelYears), nil
}

// Report computes coverage over a pair set.
func (r *Reporter) Report(ctx context.Context, pairs []storage.UncuratedPair, uncuratedYears []int) (*Coverage, error) {
	cov := &Coverage{TotalPairs: len(pairs)}
	for _, pair := range pairs {
		mapping, err := r.mappings.GetByUncuratedPair(ctx, pair.MakeID, pair.ModelID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		triplets, err := r.mappings.TripletsByPair(ctx, pair.MakeID, pair.ModelID)
		if err != nil {
			return nil, err
		}
		modelYears, err := r.records.ModelYears(ctx, pair.MakeID, pair.ModelID, uncuratedYears)
		if err != nil {
			return nil, err
		}

		if mapping != nil && mapping.VehicleTypeID != nil {
			cov.WithVehicleType++
		}
		if (mapping != nil && mapping.FuelTypeID != nil) || len(triplets) > 0 {
			cov.WithFuelType++
		}

		switch Derive(mapping, triplets, modelYears) {
		case Unassigned:
			cov.Unassigned++
		case Partial:
			cov.Partial++
		case Complete:
			cov.Complete++
		}
	}
	return cov, nil
}
