// Package storage provides database access for the regularization engine:
// enumeration interning, vehicle records, the mapping store, and the
// persisted uncurated-pair cache.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Common errors
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness constraint was violated. A
	// duplicate mapping insert surfaces as ErrConflict so callers can
	// offer "edit existing" instead of retrying.
	ErrConflict = errors.New("record conflict")
	// ErrStorageUnavailable indicates the backing store is unreachable
	// or locked. Not retried automatically.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DB is the database connection surface the repositories need.
// *sql.DB satisfies it; tests wrap it to count queries.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Enumeration table names. Enum values are interned strings with a
// stable integer identity: created once, never deleted.
const (
	EnumMake        = "make_enum"
	EnumModel       = "model_enum"
	EnumFuelType    = "fuel_type_enum"
	EnumVehicleType = "vehicle_type_enum"
)

// EnumValue is one interned string with its stable ID.
type EnumValue struct {
	ID    int64
	Value string
}

// VehicleRecord is one registration record. FuelTypeID and
// VehicleTypeID may be absent in uncurated years.
type VehicleRecord struct {
	ID            int64
	MakeID        int64
	ModelID       int64
	Year          int
	ModelYear     int
	FuelTypeID    *int64
	VehicleTypeID *int64
}

// CuratedCombination is one distinct (make, model, fuel, vehicle type,
// model year) tuple observed in curated years. Input to the hierarchy
// builder.
type CuratedCombination struct {
	MakeID        int64
	MakeName      string
	ModelID       int64
	ModelName     string
	FuelTypeID    *int64
	VehicleTypeID *int64
	ModelYear     int
}

// UncuratedPair is a (make, model) combination confined to uncurated
// years: no record with this exact pair exists in any curated year.
type UncuratedPair struct {
	MakeID       int64
	ModelID      int64
	MakeName     string
	ModelName    string
	RecordCount  int64
	EarliestYear int
	LatestYear   int
	IsExactMatch bool
}

// Mapping is a pair-level correction: an uncurated (make, model) mapped
// to its canonical pair, with optional vehicle type and a wildcard fuel
// type applicable to all model years absent a more specific year row.
// RecordCount and the year range are informational only.
type Mapping struct {
	ID               int64
	UncuratedMakeID  int64
	UncuratedModelID int64
	CanonicalMakeID  int64
	CanonicalModelID int64
	VehicleTypeID    *int64
	FuelTypeID       *int64
	RecordCount      int64
	YearRangeStart   int
	YearRangeEnd     int
	CreatedAt        time.Time
}

// YearMapping is a triplet-level correction carrying the fuel type for
// one specific model year. It takes precedence over the pair-level
// wildcard for that year.
type YearMapping struct {
	ID               int64
	UncuratedMakeID  int64
	UncuratedModelID int64
	ModelYear        int
	CanonicalMakeID  int64
	CanonicalModelID int64
	FuelTypeID       int64
	CreatedAt        time.Time
}

// RunAudit records one auto-assignment run.
type RunAudit struct {
	ID              string
	StartedAt       time.Time
	Duration        time.Duration
	PairsConsidered int
	PairsAssigned   int
	PairsSkipped    int
	PairsFailed     int
}
