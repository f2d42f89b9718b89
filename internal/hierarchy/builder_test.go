package hierarchy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaqdata/regularizer/internal/cache"
	"github.com/saaqdata/regularizer/internal/hierarchy"
	"github.com/saaqdata/regularizer/internal/observability"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/storage/storagetest"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

type fixture struct {
	t       *testing.T
	db      *storagetest.CountingDB
	records *storage.RecordRepository
	enums   *storage.EnumRepository
	years   *yearconfig.Configuration
}

func newFixture(t *testing.T, curated, uncurated []int) *fixture {
	db := storagetest.NewCountingDB(storagetest.New(t))
	years, err := yearconfig.New(curated, uncurated)
	require.NoError(t, err)
	return &fixture{
		t:       t,
		db:      db,
		records: storage.NewRecordRepository(db),
		enums:   storage.NewEnumRepository(db),
		years:   years,
	}
}

func (f *fixture) add(make, model string, year, modelYear int, fuelType, vehicleType string) {
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
}

func (f *fixture) builder(opts ...hierarchy.BuilderOption) *hierarchy.Builder {
	return hierarchy.NewBuilder(f.records, f.years, observability.Nop(), opts...)
}

func TestBuilder_BuildsTreeFromCuratedYears(t *testing.T) {
	f := newFixture(t, []int{2017, 2018}, []int{2023})
	f.add("HONDA", "CR-V", 2017, 2017, "Gasoline", "Automobile")
	f.add("HONDA", "CR-V", 2018, 2018, "Hybrid", "Automobile")
	f.add("HONDA", "CIVIC", 2017, 2017, "Gasoline", "Automobile")
	f.add("NOVA", "LFS", 2023, 2023, "Diesel", "Bus") // uncurated year, excluded

	h, err := f.builder().Build(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, h.Makes, 1)
	node, ok := h.Find("HONDA", "CR-V")
	require.True(t, ok)
	assert.Len(t, node.FuelTypes, 2)
	assert.Len(t, node.VehicleTypes, 1)
	assert.Len(t, node.FuelTypesByYear[2017], 1)
	assert.Len(t, node.FuelTypesByYear[2018], 1)

	assert.True(t, h.Contains("HONDA", "CIVIC"))
	assert.False(t, h.Contains("NOVA", "LFS"))
	assert.False(t, h.Contains("HONDA", "LFS"))
}

func TestBuilder_CachesUntilPartitionChanges(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.add("HONDA", "CIVIC", 2017, 2017, "Gasoline", "Automobile")

	b := f.builder()
	ctx := context.Background()

	_, err := b.Build(ctx, false)
	require.NoError(t, err)
	f.db.Reset()

	// Second build is served from memory.
	_, err = b.Build(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, f.db.CountContaining("vehicle_records"))

	// forceRefresh recomputes.
	_, err = b.Build(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.db.CountContaining("vehicle_records"))

	// Partition mutation invalidates before returning.
	f.db.Reset()
	f.years.SetCurated(2018)
	_, err = b.Build(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.db.CountContaining("vehicle_records"))
}

func TestBuilder_EmptyCuratedYears(t *testing.T) {
	f := newFixture(t, nil, []int{2023})
	f.add("HONDA", "CIVIC", 2023, 2023, "", "")
	f.db.Reset()

	h, err := f.builder().Build(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, h.IsEmpty())
	// No curated years means no query at all.
	assert.Zero(t, f.db.CountContaining("vehicle_records"))
}

func TestBuilder_SnapshotCacheSurvivesRebuild(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.add("HONDA", "CR-V", 2017, 2017, "Gasoline", "Automobile")

	snap := cache.NewMemoryClient()
	ctx := context.Background()

	b1 := f.builder(hierarchy.WithSnapshotCache(snap, 0))
	_, err := b1.Build(ctx, false)
	require.NoError(t, err)

	// A fresh builder sharing the snapshot cache skips the records scan.
	f.db.Reset()
	b2 := f.builder(hierarchy.WithSnapshotCache(snap, 0))
	h, err := b2.Build(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, f.db.CountContaining("vehicle_records"))

	node, ok := h.Find("HONDA", "CR-V")
	require.True(t, ok)
	assert.Len(t, node.FuelTypes, 1)
	assert.Len(t, node.FuelTypesByYear[2017], 1)
}
