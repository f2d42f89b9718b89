package detector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaqdata/regularizer/internal/detector"
	"github.com/saaqdata/regularizer/internal/hierarchy"
	"github.com/saaqdata/regularizer/internal/observability"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/storage/storagetest"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

type fixture struct {
	t         *testing.T
	db        *storagetest.CountingDB
	records   *storage.RecordRepository
	enums     *storage.EnumRepository
	pairCache *storage.PairCacheRepository
	years     *yearconfig.Configuration
	detector  *detector.Detector
}

func newFixture(t *testing.T, curated, uncurated []int) *fixture {
	db := storagetest.NewCountingDB(storagetest.New(t))
	years, err := yearconfig.New(curated, uncurated)
	require.NoError(t, err)

	f := &fixture{
		t:         t,
		db:        db,
		records:   storage.NewRecordRepository(db),
		enums:     storage.NewEnumRepository(db),
		pairCache: storage.NewPairCacheRepository(db),
		years:     years,
	}
	builder := hierarchy.NewBuilder(f.records, years, observability.Nop())
	f.detector = detector.New(f.records, f.pairCache, builder, years, observability.Nop())
	return f
}

func (f *fixture) add(make, model string, year, modelYear int) {
	f.t.Helper()
	ctx := context.Background()
	makeID, err := f.enums.Intern(ctx, storage.EnumMake, make)
	require.NoError(f.t, err)
	modelID, err := f.enums.Intern(ctx, storage.EnumModel, model)
	require.NoError(f.t, err)
	require.NoError(f.t, f.records.Insert(ctx, &storage.VehicleRecord{
		MakeID: makeID, ModelID: modelID, Year: year, ModelYear: modelYear,
	}))
}

// addReencoded inserts a record whose model carries a freshly minted
// enum identity, the way a later year's import re-encodes a value the
// older files already had.
func (f *fixture) addReencoded(make, model string, year, modelYear int) int64 {
	f.t.Helper()
	ctx := context.Background()
	makeID, err := f.enums.Intern(ctx, storage.EnumMake, make)
	require.NoError(f.t, err)
	modelID, err := f.enums.Insert(ctx, storage.EnumModel, model)
	require.NoError(f.t, err)
	require.NoError(f.t, f.records.Insert(ctx, &storage.VehicleRecord{
		MakeID: makeID, ModelID: modelID, Year: year, ModelYear: modelYear,
	}))
	return modelID
}

func TestDetector_ExcludesPairsSeenInCuratedYears(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023, 2024})
	// LFS only in uncurated years.
	f.add("NOVA", "LFS", 2023, 2023)
	f.add("NOVA", "LFS", 2024, 2024)
	// ELFS in both partitions: excluded.
	f.add("NOVA", "ELFS", 2023, 2023)
	f.add("NOVA", "ELFS", 2017, 2017)

	res, err := f.detector.Detect(context.Background(), detector.Options{})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "LFS", res.Pairs[0].ModelName)
	assert.False(t, res.FromCache)
}

func TestDetector_ServesFromSnapshotWithoutRescan(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.add("NOVA", "LFS", 2023, 2023)
	ctx := context.Background()

	first, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	require.Len(t, first.Pairs, 1)

	// Second detection reads the persisted snapshot only.
	f.db.Reset()
	second, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Pairs, second.Pairs)
	assert.Zero(t, f.db.CountContaining("vehicle_records"))
}

func TestDetector_SnapshotSurvivesProcessRestart(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.add("NOVA", "LFS", 2023, 2023)
	ctx := context.Background()

	_, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)

	// A second detector over the same database (same partition, fresh
	// process) trusts the stored snapshot.
	years2, err := yearconfig.New([]int{2017}, []int{2023})
	require.NoError(t, err)
	builder2 := hierarchy.NewBuilder(f.records, years2, observability.Nop())
	det2 := detector.New(f.records, f.pairCache, builder2, years2, observability.Nop())

	f.db.Reset()
	res, err := det2.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Zero(t, f.db.CountContaining("vehicle_records"))
}

func TestDetector_AnnotatesExactMatches(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.add("HONDA", "CIVIC", 2017, 2017)
	// 2023 re-encoded CIVIC under a new model ID: the pair is uncurated
	// by identity even though its names exist in the curated tree.
	reencoded := f.addReencoded("HONDA", "CIVIC", 2023, 2023)
	// Renamed model: not an exact match.
	f.add("HONDA", "CRV", 2023, 2023)

	ctx := context.Background()

	all, err := f.detector.Detect(ctx, detector.Options{IncludeExactMatches: true})
	require.NoError(t, err)
	require.Len(t, all.Pairs, 2)
	byModel := map[string]storage.UncuratedPair{}
	for _, p := range all.Pairs {
		byModel[p.ModelName] = p
	}
	assert.True(t, byModel["CIVIC"].IsExactMatch)
	assert.Equal(t, reencoded, byModel["CIVIC"].ModelID)
	assert.False(t, byModel["CRV"].IsExactMatch)

	// The default view hides exact matches: they are auto-assignment
	// work, not manual curation work.
	res, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "CRV", res.Pairs[0].ModelName)
}

func TestDetector_ExactMatchFilterIsViewOnly(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	f.add("HONDA", "CIVIC", 2017, 2017)
	f.addReencoded("HONDA", "CIVIC", 2023, 2023)
	f.add("NOVA", "LFS", 2023, 2023)
	ctx := context.Background()

	all, err := f.detector.Detect(ctx, detector.Options{IncludeExactMatches: true})
	require.NoError(t, err)
	require.Len(t, all.Pairs, 2)

	// Flipping the flag back and forth slices the one cached superset.
	// No rescan in between.
	f.db.Reset()
	res, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "LFS", res.Pairs[0].ModelName)
	assert.Zero(t, f.db.CountContaining("vehicle_records"))

	again, err := f.detector.Detect(ctx, detector.Options{IncludeExactMatches: true})
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, all.Pairs, again.Pairs)
	assert.Zero(t, f.db.CountContaining("vehicle_records"))
}

func TestDetector_EmptySnapshotIsNeverTrusted(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023})
	ctx := context.Background()

	// First run over an empty record set computes and persists an empty
	// snapshot.
	res, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)

	// Records arrive later (import finished after the first scan). An
	// empty snapshot must not mask them.
	f.add("NOVA", "LFS", 2023, 2023)
	res, err = f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.False(t, res.FromCache)
}

func TestDetector_PartitionChangeInvalidatesSnapshot(t *testing.T) {
	f := newFixture(t, []int{2017}, []int{2023, 2024})
	f.add("NOVA", "LFS", 2023, 2023)
	f.add("NOVA", "LFS", 2017, 2017)
	ctx := context.Background()

	res, err := f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Pairs) // LFS spans both partitions

	// 2017 stops being curated; LFS becomes uncurated-only.
	f.years.SetUncurated(2017)
	res, err = f.detector.Detect(ctx, detector.Options{})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, int64(2), res.Pairs[0].RecordCount)
}
