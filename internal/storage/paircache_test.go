package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/storage/storagetest"
)

func TestPairCacheRepository_ReplaceAndLoad(t *testing.T) {
	f := newFixture(t, storagetest.New(t))
	cache := storage.NewPairCacheRepository(f.db)
	ctx := context.Background()

	makeID := f.intern(storage.EnumMake, "NOVA")
	modelID := f.intern(storage.EnumModel, "LFS")

	sig, err := cache.Signature(ctx)
	require.NoError(t, err)
	assert.Empty(t, sig)

	pairs := []storage.UncuratedPair{{
		MakeID: makeID, ModelID: modelID,
		RecordCount: 7, EarliestYear: 2023, LatestYear: 2024,
		IsExactMatch: true,
	}}
	require.NoError(t, cache.Replace(ctx, "sig-a", pairs))

	sig, err = cache.Signature(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sig-a", sig)

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "NOVA", loaded[0].MakeName)
	assert.Equal(t, "LFS", loaded[0].ModelName)
	assert.Equal(t, int64(7), loaded[0].RecordCount)
	assert.True(t, loaded[0].IsExactMatch)
}

func TestPairCacheRepository_ReplaceIsWholesale(t *testing.T) {
	f := newFixture(t, storagetest.New(t))
	cache := storage.NewPairCacheRepository(f.db)
	ctx := context.Background()

	a := f.intern(storage.EnumMake, "A")
	b := f.intern(storage.EnumMake, "B")
	m := f.intern(storage.EnumModel, "M")

	require.NoError(t, cache.Replace(ctx, "sig-1", []storage.UncuratedPair{
		{MakeID: a, ModelID: m, RecordCount: 1, EarliestYear: 2023, LatestYear: 2023},
	}))
	require.NoError(t, cache.Replace(ctx, "sig-2", []storage.UncuratedPair{
		{MakeID: b, ModelID: m, RecordCount: 2, EarliestYear: 2024, LatestYear: 2024},
	}))

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, b, loaded[0].MakeID)

	sig, err := cache.Signature(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sig-2", sig)
}

func TestPairCacheRepository_Invalidate(t *testing.T) {
	f := newFixture(t, storagetest.New(t))
	cache := storage.NewPairCacheRepository(f.db)
	ctx := context.Background()

	a := f.intern(storage.EnumMake, "A")
	m := f.intern(storage.EnumModel, "M")
	require.NoError(t, cache.Replace(ctx, "sig-1", []storage.UncuratedPair{
		{MakeID: a, ModelID: m, RecordCount: 1, EarliestYear: 2023, LatestYear: 2023},
	}))

	require.NoError(t, cache.Invalidate(ctx))

	sig, err := cache.Signature(ctx)
	require.NoError(t, err)
	assert.Empty(t, sig)
}
