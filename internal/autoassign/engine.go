// Package autoassign assigns vehicle types and fuel types to uncurated
// pairs whose exact names also exist in the canonical hierarchy.
package autoassign

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/internal/detector"
	"github.com/saaqdata/regularizer/internal/hierarchy"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

// placeholderValue matches enum values the source data uses for
// "unknown", in both English and French. Placeholders never count as
// candidates: a model whose only curated fuel entry is "Not specified"
// has zero usable candidates, not one.
var placeholderValue = regexp.MustCompile(`(?i)^(not specified|non précisé|non precise)$`)

// mappingStore is the mapping surface the engine writes through.
type mappingStore interface {
	GetByUncuratedPair(ctx context.Context, makeID, modelID int64) (*storage.Mapping, error)
	SavePair(ctx context.Context, m *storage.Mapping) error
	SaveTriplet(ctx context.Context, t *storage.YearMapping) error
	TripletsByPair(ctx context.Context, makeID, modelID int64) ([]storage.YearMapping, error)
}

// modelYearSource lists the model years an uncurated pair appears with.
type modelYearSource interface {
	ModelYears(ctx context.Context, makeID, modelID int64, years []int) ([]int, error)
}

// enumSource resolves enum IDs to their values for placeholder checks.
type enumSource interface {
	All(ctx context.Context, table string) (map[int64]string, error)
}

// auditStore records completed runs.
type auditStore interface {
	Save(ctx context.Context, a *storage.RunAudit) error
}

// Engine runs auto-assignment passes.
type Engine struct {
	detector  *detector.Detector
	hierarchy *hierarchy.Builder
	mappings  mappingStore
	records   modelYearSource
	enums     enumSource
	audits    auditStore
	years     *yearconfig.Configuration
	log       zerolog.Logger
}

// Report summarizes one run. Considered = Assigned + Skipped + Failed.
type Report struct {
	RunID           string
	StartedAt       time.Time
	Duration        time.Duration
	PairsConsidered int
	PairsAssigned   int
	PairsSkipped    int
	PairsFailed     int
}

// Progress is invoked after each pair when set, for CLI progress bars.
type Progress func(done, total int)

// New creates an auto-assignment engine.
func New(
	det *detector.Detector,
	builder *hierarchy.Builder,
	mappings mappingStore,
	records modelYearSource,
	enums enumSource,
	audits auditStore,
	years *yearconfig.Configuration,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		detector:  det,
		hierarchy: builder,
		mappings:  mappings,
		records:   records,
		enums:     enums,
		audits:    audits,
		years:     years,
		log:       logger.With().Str("component", "autoassign").Logger(),
	}
}

// Run performs one auto-assignment pass over all exact-match uncurated
// pairs. Re-running after a completed pass assigns nothing new: pairs
// with an existing mapping are skipped, never overwritten. One pair's
// failure is logged and counted without aborting the run.
func (e *Engine) Run(ctx context.Context, progress Progress) (*Report, error) {
	rep := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	log := e.log.With().Str("run_id", rep.RunID).Logger()

	tree, err := e.hierarchy.Build(ctx, false)
	if err != nil {
		return nil, err
	}

	res, err := e.detector.Detect(ctx, detector.Options{IncludeExactMatches: true})
	if err != nil {
		return nil, err
	}

	fuelValues, err := e.enums.All(ctx, storage.EnumFuelType)
	if err != nil {
		return nil, fmt.Errorf("load fuel type values: %w", err)
	}
	vehicleValues, err := e.enums.All(ctx, storage.EnumVehicleType)
	if err != nil {
		return nil, fmt.Errorf("load vehicle type values: %w", err)
	}

	var candidates []storage.UncuratedPair
	for _, p := range res.Pairs {
		if p.IsExactMatch {
			candidates = append(candidates, p)
		}
	}
	rep.PairsConsidered = len(candidates)

	for i, pair := range candidates {
		assigned, err := e.assignPair(ctx, tree, pair, fuelValues, vehicleValues)
		switch {
		case err != nil:
			rep.PairsFailed++
			log.Error().Err(err).
				Str("make", pair.MakeName).
				Str("model", pair.ModelName).
				Msg("pair assignment failed")
		case assigned:
			rep.PairsAssigned++
		default:
			rep.PairsSkipped++
		}
		if progress != nil {
			progress(i+1, len(candidates))
		}
	}

	rep.Duration = time.Since(rep.StartedAt)
	log.Info().
		Int("considered", rep.PairsConsidered).
		Int("assigned", rep.PairsAssigned).
		Int("skipped", rep.PairsSkipped).
		Int("failed", rep.PairsFailed).
		Dur("elapsed", rep.Duration).
		Msg("auto-assignment run complete")

	if err := e.audits.Save(ctx, &storage.RunAudit{
		ID:              rep.RunID,
		StartedAt:       rep.StartedAt,
		Duration:        rep.Duration,
		PairsConsidered: rep.PairsConsidered,
		PairsAssigned:   rep.PairsAssigned,
		PairsSkipped:    rep.PairsSkipped,
		PairsFailed:     rep.PairsFailed,
	}); err != nil {
		log.Warn().Err(err).Msg("audit record write failed")
	}
	return rep, nil
}

// assignPair writes the mapping for one exact-match pair, filling each
// typed dimension only where the curated observations are unambiguous.
// Returns true if anything was written.
func (e *Engine) assignPair(
	ctx context.Context,
	tree *hierarchy.Hierarchy,
	pair storage.UncuratedPair,
	fuelValues, vehicleValues map[int64]string,
) (bool, error) {
	mk, ok := tree.FindMake(pair.MakeName)
	if !ok {
		return false, nil
	}
	node, ok := mk.Find(pair.ModelName)
	if !ok {
		return false, nil
	}

	existing, err := e.mappings.GetByUncuratedPair(ctx, pair.MakeID, pair.ModelID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	// The name match alone establishes the canonical correspondence, so
	// the pair row is written even when both typed dimensions stay
	// ambiguous; the typed fields are best-effort within it.
	vehicleType := singleCandidate(node.VehicleTypes, vehicleValues)
	fuelType := singleCandidate(node.FuelTypes, fuelValues)

	// The canonical identities come from the tree, never from the pair:
	// the names match but the uncurated import may have minted its own
	// enum rows for them.
	m := &storage.Mapping{
		UncuratedMakeID:  pair.MakeID,
		UncuratedModelID: pair.ModelID,
		CanonicalMakeID:  mk.ID,
		CanonicalModelID: node.ID,
		VehicleTypeID:    vehicleType,
		FuelTypeID:       fuelType,
		RecordCount:      pair.RecordCount,
		YearRangeStart:   pair.EarliestYear,
		YearRangeEnd:     pair.LatestYear,
	}
	if err := e.mappings.SavePair(ctx, m); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent writer got there first. Their mapping stands.
			return false, nil
		}
		return false, err
	}

	if err := e.assignPerYearFuel(ctx, mk, node, pair, fuelValues); err != nil {
		return true, err
	}
	return true, nil
}

// assignPerYearFuel writes triplet rows for model years whose curated
// fuel observations are unambiguous, even when the all-years fuel set
// is not.
func (e *Engine) assignPerYearFuel(
	ctx context.Context,
	mk *hierarchy.MakeNode,
	node *hierarchy.ModelNode,
	pair storage.UncuratedPair,
	fuelValues map[int64]string,
) error {
	if len(node.FuelTypesByYear) == 0 {
		return nil
	}

	modelYears, err := e.records.ModelYears(ctx, pair.MakeID, pair.ModelID, e.years.UncuratedYears())
	if err != nil {
		return fmt.Errorf("list model years: %w", err)
	}

	for _, year := range modelYears {
		byYear, ok := node.FuelTypesByYear[year]
		if !ok {
			continue
		}
		fuelType := singleCandidate(byYear, fuelValues)
		if fuelType == nil {
			continue
		}
		t := &storage.YearMapping{
			UncuratedMakeID:  pair.MakeID,
			UncuratedModelID: pair.ModelID,
			ModelYear:        year,
			CanonicalMakeID:  mk.ID,
			CanonicalModelID: node.ID,
			FuelTypeID:       *fuelType,
		}
		if err := e.mappings.SaveTriplet(ctx, t); err != nil && !errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("save year mapping for %d: %w", year, err)
		}
	}
	return nil
}

// singleCandidate returns the ID when the set holds exactly one
// non-placeholder value, nil otherwise. Zero candidates and multiple
// candidates are both "no answer".
func singleCandidate(set map[int64]bool, values map[int64]string) *int64 {
	var found *int64
	for id := range set {
		if placeholderValue.MatchString(values[id]) {
			continue
		}
		if found != nil {
			return nil
		}
		v := id
		found = &v
	}
	return found
}
