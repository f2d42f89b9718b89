package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaqdata/regularizer/internal/detector"
	"github.com/saaqdata/regularizer/internal/observability"
	"github.com/saaqdata/regularizer/internal/status"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/storage/storagetest"
	"github.com/saaqdata/regularizer/internal/yearconfig"
	"github.com/saaqdata/regularizer/pkg/engine"
)

func newEngine(t *testing.T, curated, uncurated []int) *engine.Engine {
	e, err := engine.New(engine.Config{
		DB:                    storagetest.New(t),
		Years:                 yearconfig.Partition{Curated: curated, Uncurated: uncurated},
		RegularizationEnabled: true,
		Logger:                observability.Nop(),
	})
	require.NoError(t, err)
	return e
}

func intern(t *testing.T, e *engine.Engine, table, value string) int64 {
	t.Helper()
	id, err := e.Enums().Intern(context.Background(), table, value)
	require.NoError(t, err)
	return id
}

// The full curation walk for one renamed model: HONDA sold the CR-V
// through the curated years, and the 2023 file spells it CRV.
func TestEngine_RenamedModelCurationFlow(t *testing.T) {
	curated := []int{2011, 2012, 2013, 2014, 2015, 2016, 2017, 2018, 2019, 2020, 2021, 2022}
	e := newEngine(t, curated, []int{2023, 2024})
	ctx := context.Background()

	honda := intern(t, e, storage.EnumMake, "HONDA")
	crvCanonical := intern(t, e, storage.EnumModel, "CR-V")
	crvRenamed := intern(t, e, storage.EnumModel, "CRV")
	gasoline := intern(t, e, storage.EnumFuelType, "Gasoline")
	automobile := intern(t, e, storage.EnumVehicleType, "Automobile")

	require.NoError(t, e.Records().Insert(ctx, &storage.VehicleRecord{
		MakeID: honda, ModelID: crvCanonical, Year: 2015, ModelYear: 2015,
		FuelTypeID: &gasoline, VehicleTypeID: &automobile,
	}))
	require.NoError(t, e.Records().Insert(ctx, &storage.VehicleRecord{
		MakeID: honda, ModelID: crvRenamed, Year: 2023, ModelYear: 2023,
	}))

	// Detection: CRV exists only in uncurated years, and its spelling
	// does not match any canonical node.
	res, err := e.UncuratedPairs(ctx, detector.Options{})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	pair := res.Pairs[0]
	assert.Equal(t, "HONDA", pair.MakeName)
	assert.Equal(t, "CRV", pair.ModelName)
	assert.False(t, pair.IsExactMatch)

	st, err := e.PairStatus(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, status.Unassigned, st)

	// Auto-assignment has nothing to do with a renamed model.
	rep, err := e.AutoAssign(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, rep.PairsConsidered)

	// Manual curation: map CRV to CR-V with its vehicle type. Fuel is
	// left open, so the pair is only partially curated.
	m := &storage.Mapping{
		UncuratedMakeID:  honda,
		UncuratedModelID: crvRenamed,
		CanonicalMakeID:  honda,
		CanonicalModelID: crvCanonical,
		VehicleTypeID:    &automobile,
	}
	require.NoError(t, e.SaveMapping(ctx, m))

	st, err = e.PairStatus(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, status.Partial, st)

	// A second mapping for the same pair is rejected, not merged.
	assert.ErrorIs(t, e.SaveMapping(ctx, &storage.Mapping{
		UncuratedMakeID:  honda,
		UncuratedModelID: crvRenamed,
		CanonicalMakeID:  honda,
		CanonicalModelID: crvCanonical,
	}), engine.ErrConflict)

	// The 2023 model year gets its fuel type; every observed model year
	// is now covered.
	require.NoError(t, e.SaveYearMapping(ctx, &storage.YearMapping{
		UncuratedMakeID:  honda,
		UncuratedModelID: crvRenamed,
		ModelYear:        2023,
		CanonicalMakeID:  honda,
		CanonicalModelID: crvCanonical,
		FuelTypeID:       gasoline,
	}))

	st, err = e.PairStatus(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, status.Complete, st)

	cov, err := e.Coverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cov.TotalPairs)
	assert.Equal(t, 1, cov.Complete)
	assert.Equal(t, 1, cov.WithVehicleType)
	assert.Equal(t, 1, cov.WithFuelType)

	// Query-time expansion: a filter on the canonical model now covers
	// the renamed one, and the reverse.
	makes, models, err := e.ExpandPairIDs(ctx, []int64{honda}, []int64{crvCanonical})
	require.NoError(t, err)
	assert.Equal(t, []int64{honda}, makes)
	assert.ElementsMatch(t, []int64{crvCanonical, crvRenamed}, models)

	_, models, err = e.ExpandPairIDs(ctx, []int64{honda}, []int64{crvRenamed})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{crvCanonical, crvRenamed}, models)

	// Disabling regularization makes expansion the identity.
	e.SetRegularizationEnabled(false)
	assert.False(t, e.RegularizationEnabled())
	_, models, err = e.ExpandPairIDs(ctx, []int64{honda}, []int64{crvCanonical})
	require.NoError(t, err)
	assert.Equal(t, []int64{crvCanonical}, models)
}

func TestEngine_AutoAssignThenCoverage(t *testing.T) {
	e := newEngine(t, []int{2017}, []int{2023})
	ctx := context.Background()

	honda := intern(t, e, storage.EnumMake, "HONDA")
	civic := intern(t, e, storage.EnumModel, "CIVIC")
	gasoline := intern(t, e, storage.EnumFuelType, "Gasoline")
	automobile := intern(t, e, storage.EnumVehicleType, "Automobile")
	require.NoError(t, e.Records().Insert(ctx, &storage.VehicleRecord{
		MakeID: honda, ModelID: civic, Year: 2017, ModelYear: 2017,
		FuelTypeID: &gasoline, VehicleTypeID: &automobile,
	}))

	// The 2023 import minted its own CIVIC identity.
	reencoded, err := e.Enums().Insert(ctx, storage.EnumModel, "CIVIC")
	require.NoError(t, err)
	require.NoError(t, e.Records().Insert(ctx, &storage.VehicleRecord{
		MakeID: honda, ModelID: reencoded, Year: 2023, ModelYear: 2023,
	}))

	rep, err := e.AutoAssign(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PairsAssigned)

	m, err := e.MappingForPair(ctx, honda, reencoded)
	require.NoError(t, err)
	assert.Equal(t, civic, m.CanonicalModelID)

	cov, err := e.Coverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cov.TotalPairs)
	assert.Equal(t, 1, cov.Complete)

	runs, err := e.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].PairsAssigned)
}

func TestEngine_PartitionChangeReflowsDetection(t *testing.T) {
	e := newEngine(t, []int{2017}, []int{2023})
	ctx := context.Background()

	honda := intern(t, e, storage.EnumMake, "HONDA")
	crv := intern(t, e, storage.EnumModel, "CRV")
	require.NoError(t, e.Records().Insert(ctx, &storage.VehicleRecord{
		MakeID: honda, ModelID: crv, Year: 2023, ModelYear: 2023,
	}))

	res, err := e.UncuratedPairs(ctx, detector.Options{})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)

	// 2023 is promoted to curated: the pair stops being uncurated.
	e.Years().SetCurated(2023)
	res, err = e.UncuratedPairs(ctx, detector.Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
}
