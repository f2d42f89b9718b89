package autoassign_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaqdata/regularizer/internal/autoassign"
	"github.com/saaqdata/regularizer/internal/detector"
	"github.com/saaqdata/regularizer/internal/hierarchy"
	"github.com/saaqdata/regularizer/internal/observability"
	"github.com/saaqdata/regularizer/internal/status"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/storage/storagetest"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

type fixture struct {
	t        *testing.T
	enums    *storage.EnumRepository
	records  *storage.RecordRepository
	mappings *storage.MappingRepository
	audits   *storage.AuditRepository
	years    *yearconfig.Configuration
	engine   *autoassign.Engine
}

func newFixture(t *testing.T, curated, uncurated []int) *fixture {
	db := storagetest.New(t)
	years, err := yearconfig.New(curated, uncurated)
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		enums:    storage.NewEnumRepository(db),
		records:  storage.NewRecordRepository(db),
		mappings: storage.NewMappingRepository(db),
		audits:   storage.NewAuditRepository(db),
		years:    years,
	}
	builder := hierarchy.NewBuilder(f.records, years, observability.Nop())
	det := detector.New(f.records, storage.NewPairCacheRepository(db), builder, years, observability.Nop())
	f.engine = autoassign.New(det, builder, f.mappings, f.records, f.enums, f.audits, years, observability.Nop())
	return f
}

// addCurated inserts a curated-year record with interned identities and
// returns the (make, model) IDs.
func (f *fixture) addCurated(make, model string, year, modelYear int, fuelType, vehicleType string) (int64, int64) {
	f.t.Helper()
	ctx := context.Background()
	rec := &storage.VehicleRecord{Year: year, ModelYear: modelYear}
	var err error
	rec.MakeID, err = f.enums.Intern(ctx, storage.EnumMake, make)
	require.NoError(f.t, err)
	rec.ModelID, err = f.enums.Intern(ctx, storage.EnumModel, model)
	require.NoError(f.t, err)
	if fuelType != "" {
		id, err := f.enums.Intern(ctx, storage.EnumFuelType, fuelType)
		require.NoError(f.t, err)
		rec.FuelTypeID = &id
	}
	if vehicleType != "" {
		id, err := f.enums.Intern(ctx, storage.EnumVehicleType, vehicleType)
		require.NoError(f.t, err)
		rec.VehicleTypeID = &id
	}
	require.NoError(f.t, f.records.Insert(ctx, rec))
	return rec.MakeID, rec.ModelID
}

// addUncurated inserts an uncurated-year record whose model identity is
// freshly minted, the way a later import re-encodes the value.
func (f *fixture) addUncurated(make, model string, year, modelYear int) (int64, int64) {
	f.t.Helper()
	ctx := context.Background()
	makeID, err := f.enums.Intern(ctx, storage.EnumMake, make)
	require.NoError(f.t, err)
	modelID, err := f.enums.Insert(ctx, storage.EnumModel, model)
	require.NoError(f.t, err)
	require.NoError(f.t, f.records.Insert(ctx, &storage.VehicleRecord{
		MakeID: makeID, ModelID: modelID, Year: year, ModelYear: modelYear,
	}))
	return makeID, modelID
}

func (f *fixture) fuelID(value string) int64 {
	f.t.Helper()
	id, err := f.enums.Lookup(context.Background(), storage.EnumFuelType, value)
	require.NoError(f.t, err)
	return id
}

func TestEngine_AssignsUnambiguousPair(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	_, curatedModel := f.addCurated("HONDA", "CIVIC", 2017, 2017, "Gasoline", "Automobile")
	makeID, modelID := f.addUncurated("HONDA", "CIVIC", 2023, 2023)
	// Not an exact match: never considered.
	f.addUncurated("NOVA", "LFS", 2023, 2023)

	ctx := context.Background()
	rep, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PairsConsidered)
	assert.Equal(t, 1, rep.PairsAssigned)
	assert.Zero(t, rep.PairsSkipped)
	assert.Zero(t, rep.PairsFailed)

	m, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)
	assert.Equal(t, curatedModel, m.CanonicalModelID)
	assert.Equal(t, makeID, m.CanonicalMakeID)
	require.NotNil(t, m.VehicleTypeID)
	require.NotNil(t, m.FuelTypeID)
	assert.Equal(t, f.fuelID("Gasoline"), *m.FuelTypeID)
	assert.Equal(t, int64(1), m.RecordCount)
	assert.Equal(t, 2023, m.YearRangeStart)
	assert.Equal(t, 2023, m.YearRangeEnd)
}

func TestEngine_SecondRunAssignsNothing(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.addCurated("HONDA", "CIVIC", 2017, 2017, "Gasoline", "Automobile")
	makeID, modelID := f.addUncurated("HONDA", "CIVIC", 2023, 2023)
	ctx := context.Background()

	_, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	first, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)

	rep, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, rep.PairsAssigned)
	assert.Equal(t, 1, rep.PairsSkipped)

	// The existing mapping is untouched, not rewritten.
	second, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Both runs are audited.
	runs, err := f.audits.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestEngine_AmbiguousDimensionsLeaveTypedFieldsUnset(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	// Two vehicle types and two fuel types in the same model year: no
	// typed dimension is assignable, but the name match still records
	// the pair mapping so the re-encoded IDs are linked.
	_, curatedModel := f.addCurated("FORD", "TRANSIT", 2017, 2017, "Gasoline", "Automobile")
	f.addCurated("FORD", "TRANSIT", 2017, 2017, "Diesel", "Truck")
	makeID, modelID := f.addUncurated("FORD", "TRANSIT", 2023, 2023)

	ctx := context.Background()
	rep, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PairsConsidered)
	assert.Equal(t, 1, rep.PairsAssigned)
	assert.Zero(t, rep.PairsSkipped)

	m, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)
	assert.Equal(t, curatedModel, m.CanonicalModelID)
	assert.Equal(t, makeID, m.CanonicalMakeID)
	assert.Nil(t, m.VehicleTypeID)
	assert.Nil(t, m.FuelTypeID)

	triplets, err := f.mappings.TripletsByPair(ctx, makeID, modelID)
	require.NoError(t, err)
	assert.Empty(t, triplets)
	assert.Equal(t, status.Partial, status.Derive(m, triplets, []int{2023}))
}

func TestEngine_PlaceholderIsNotACandidate(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	// "Not specified" alongside one real fuel value leaves exactly one
	// usable candidate.
	f.addCurated("HONDA", "CIVIC", 2017, 2017, "Gasoline", "Automobile")
	f.addCurated("HONDA", "CIVIC", 2017, 2017, "Not specified", "Automobile")
	makeID, modelID := f.addUncurated("HONDA", "CIVIC", 2023, 2023)

	ctx := context.Background()
	rep, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PairsAssigned)

	m, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)
	require.NotNil(t, m.FuelTypeID)
	assert.Equal(t, f.fuelID("Gasoline"), *m.FuelTypeID)
}

func TestEngine_PlaceholderOnlyMeansNoCandidates(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	// French placeholder in both dimensions: the pair mapping is still
	// recorded, with zero usable candidates in either typed field.
	f.addCurated("HONDA", "CIVIC", 2017, 2017, "Non précisé", "Non précisé")
	makeID, modelID := f.addUncurated("HONDA", "CIVIC", 2023, 2023)

	ctx := context.Background()
	rep, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PairsAssigned)

	m, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)
	assert.Nil(t, m.VehicleTypeID)
	assert.Nil(t, m.FuelTypeID)
}

func TestEngine_PerYearFuelBeatsAmbiguousWildcard(t *testing.T) {
	f := newFixture(t, []int{2017, 2018}, []int{2023})
	// Across all years the fuel set is ambiguous, but 2017 alone saw
	// only Gasoline.
	_, curatedModel := f.addCurated("HONDA", "CR-V", 2017, 2017, "Gasoline", "Automobile")
	f.addCurated("HONDA", "CR-V", 2018, 2018, "Gasoline", "Automobile")
	f.addCurated("HONDA", "CR-V", 2018, 2018, "Hybrid", "Automobile")
	// The uncurated pair appears with both model years.
	makeID, modelID := f.addUncurated("HONDA", "CR-V", 2023, 2017)
	require.NoError(t, f.records.Insert(context.Background(), &storage.VehicleRecord{
		MakeID: makeID, ModelID: modelID, Year: 2023, ModelYear: 2018,
	}))

	ctx := context.Background()
	rep, err := f.engine.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PairsAssigned)

	m, err := f.mappings.GetByUncuratedPair(ctx, makeID, modelID)
	require.NoError(t, err)
	require.NotNil(t, m.VehicleTypeID)
	assert.Nil(t, m.FuelTypeID)

	triplets, err := f.mappings.TripletsByPair(ctx, makeID, modelID)
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	assert.Equal(t, 2017, triplets[0].ModelYear)
	assert.Equal(t, f.fuelID("Gasoline"), triplets[0].FuelTypeID)
	assert.Equal(t, curatedModel, triplets[0].CanonicalModelID)
}

func TestEngine_ProgressCallback(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.addCurated("HONDA", "CIVIC", 2017, 2017, "Gasoline", "Automobile")
	f.addUncurated("HONDA", "CIVIC", 2023, 2023)

	var calls [][2]int
	_, err := f.engine.Run(context.Background(), func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, [2]int{1, 1}, calls[0])
}
