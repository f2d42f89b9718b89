package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/storage/storagetest"
)

func TestEnumRepository_Intern_StableID(t *testing.T) {
	db := storagetest.New(t)
	enums := storage.NewEnumRepository(db)
	ctx := context.Background()

	id1, err := enums.Intern(ctx, storage.EnumMake, "HONDA")
	require.NoError(t, err)
	require.NotZero(t, id1)

	// Interning the same value again returns the same ID.
	id2, err := enums.Intern(ctx, storage.EnumMake, "HONDA")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// A different value gets a different ID.
	id3, err := enums.Intern(ctx, storage.EnumMake, "TOYOTA")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestEnumRepository_Insert_MintsNewIdentity(t *testing.T) {
	db := storagetest.New(t)
	enums := storage.NewEnumRepository(db)
	ctx := context.Background()

	first, err := enums.Intern(ctx, storage.EnumModel, "CIVIC")
	require.NoError(t, err)

	// Insert never collapses equal strings: a later import's re-encoded
	// value keeps its own identity.
	second, err := enums.Insert(ctx, storage.EnumModel, "CIVIC")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Lookup and Intern resolve to the oldest identity.
	id, err := enums.Lookup(ctx, storage.EnumModel, "CIVIC")
	require.NoError(t, err)
	assert.Equal(t, first, id)

	id, err = enums.Intern(ctx, storage.EnumModel, "CIVIC")
	require.NoError(t, err)
	assert.Equal(t, first, id)

	// Both identities resolve back to the same string.
	v1, err := enums.Value(ctx, storage.EnumModel, first)
	require.NoError(t, err)
	v2, err := enums.Value(ctx, storage.EnumModel, second)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestEnumRepository_Lookup_NotFound(t *testing.T) {
	db := storagetest.New(t)
	enums := storage.NewEnumRepository(db)

	_, err := enums.Lookup(context.Background(), storage.EnumModel, "NOPE")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestEnumRepository_RejectsUnknownTable(t *testing.T) {
	db := storagetest.New(t)
	enums := storage.NewEnumRepository(db)

	_, err := enums.Intern(context.Background(), "vehicle_records", "x")
	assert.Error(t, err)
}

func TestEnumRepository_All(t *testing.T) {
	db := storagetest.New(t)
	enums := storage.NewEnumRepository(db)
	ctx := context.Background()

	dieselID, err := enums.Intern(ctx, storage.EnumFuelType, "Diesel")
	require.NoError(t, err)
	gasID, err := enums.Intern(ctx, storage.EnumFuelType, "Gasoline")
	require.NoError(t, err)

	all, err := enums.All(ctx, storage.EnumFuelType)
	require.NoError(t, err)
	assert.Equal(t, "Diesel", all[dieselID])
	assert.Equal(t, "Gasoline", all[gasID])
}
