// Package engine provides the public API of the regularization engine:
// one facade wiring the hierarchy builder, pair detector, mapping
// store, auto-assignment, and query-time ID expansion over a single
// database.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/internal/autoassign"
	"github.com/saaqdata/regularizer/internal/cache"
	"github.com/saaqdata/regularizer/internal/detector"
	"github.com/saaqdata/regularizer/internal/expansion"
	"github.com/saaqdata/regularizer/internal/hierarchy"
	"github.com/saaqdata/regularizer/internal/status"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

// Storage errors re-exported so callers need not import internal
// packages.
var (
	ErrNotFound = storage.ErrNotFound
	ErrConflict = storage.ErrConflict
)

// Config holds engine construction settings.
type Config struct {
	DB storage.DB
	// Years is the initial curated/uncurated partition.
	Years yearconfig.Partition
	// SnapshotCache optionally persists serialized hierarchies across
	// restarts. Nil disables the second cache level.
	SnapshotCache cache.Client
	// SnapshotTTL bounds snapshot lifetime. Defaults to one hour.
	SnapshotTTL time.Duration
	// RegularizationEnabled is the boot state of the expansion toggle.
	RegularizationEnabled bool
	Logger                zerolog.Logger
}

// Engine is the facade over all regularization components.
type Engine struct {
	db    storage.DB
	years *yearconfig.Configuration
	log   zerolog.Logger

	enums     *storage.EnumRepository
	records   *storage.RecordRepository
	mappings  *storage.MappingRepository
	pairCache *storage.PairCacheRepository
	audits    *storage.AuditRepository

	builder    *hierarchy.Builder
	detector   *detector.Detector
	autoassign *autoassign.Engine
	expander   *expansion.Expander
	reporter   *status.Reporter

	enabled atomic.Bool
}

// New wires an engine over an open database.
func New(cfg Config) (*Engine, error) {
	if cfg.DB == nil {
		return nil, errors.New("engine: DB is required")
	}

	years, err := yearconfig.New(cfg.Years.Curated, cfg.Years.Uncurated)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		db:        cfg.DB,
		years:     years,
		log:       cfg.Logger,
		enums:     storage.NewEnumRepository(cfg.DB),
		records:   storage.NewRecordRepository(cfg.DB),
		mappings:  storage.NewMappingRepository(cfg.DB),
		pairCache: storage.NewPairCacheRepository(cfg.DB),
		audits:    storage.NewAuditRepository(cfg.DB),
	}
	e.enabled.Store(cfg.RegularizationEnabled)

	var opts []hierarchy.BuilderOption
	if cfg.SnapshotCache != nil {
		ttl := cfg.SnapshotTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		opts = append(opts, hierarchy.WithSnapshotCache(cfg.SnapshotCache, ttl))
	}
	e.builder = hierarchy.NewBuilder(e.records, years, cfg.Logger, opts...)

	// The builder registered its own invalidation hook. The persisted
	// pair snapshot gets one too, so a partition change leaves no stale
	// signature behind even if the process dies before the next scan.
	years.OnChange(func() {
		if err := e.pairCache.Invalidate(context.Background()); err != nil {
			e.log.Warn().Err(err).Msg("pair cache invalidation failed")
		}
	})
	e.detector = detector.New(e.records, e.pairCache, e.builder, years, cfg.Logger)
	e.autoassign = autoassign.New(e.detector, e.builder, e.mappings, e.records, e.enums, e.audits, years, cfg.Logger)
	e.expander = expansion.New(e.mappings, e.enabled.Load, cfg.Logger)
	e.reporter = status.NewReporter(e.mappings, e.records)

	return e, nil
}

// Hierarchy returns the canonical hierarchy for the current curated
// years, cached until the partition changes.
func (e *Engine) Hierarchy(ctx context.Context, forceRefresh bool) (*hierarchy.Hierarchy, error) {
	return e.builder.Build(ctx, forceRefresh)
}

// UncuratedPairs returns the detected uncurated pairs.
func (e *Engine) UncuratedPairs(ctx context.Context, opts detector.Options) (*detector.Result, error) {
	return e.detector.Detect(ctx, opts)
}

// AutoAssign runs one auto-assignment pass.
func (e *Engine) AutoAssign(ctx context.Context, progress autoassign.Progress) (*autoassign.Report, error) {
	return e.autoassign.Run(ctx, progress)
}

// ExpandPairIDs widens coupled (make, model) filter sets through the
// mapping store, in both directions. Identity when regularization is
// disabled.
func (e *Engine) ExpandPairIDs(ctx context.Context, makeIDs, modelIDs []int64) ([]int64, []int64, error) {
	return e.expander.ExpandPairIDs(ctx, makeIDs, modelIDs)
}

// ExpandMakeIDs widens a make-only filter.
func (e *Engine) ExpandMakeIDs(ctx context.Context, makeIDs []int64) ([]int64, error) {
	return e.expander.ExpandMakeIDs(ctx, makeIDs)
}

// SetRegularizationEnabled toggles query-time expansion at runtime.
func (e *Engine) SetRegularizationEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// RegularizationEnabled reports the expansion toggle.
func (e *Engine) RegularizationEnabled() bool {
	return e.enabled.Load()
}

// SaveMapping stores a pair-level mapping. Returns ErrConflict when the
// uncurated pair is already mapped.
func (e *Engine) SaveMapping(ctx context.Context, m *storage.Mapping) error {
	return e.mappings.SavePair(ctx, m)
}

// UpdateMapping rewrites an existing pair-level mapping.
func (e *Engine) UpdateMapping(ctx context.Context, m *storage.Mapping) error {
	return e.mappings.UpdatePair(ctx, m)
}

// DeleteMapping removes a pair-level mapping by ID.
func (e *Engine) DeleteMapping(ctx context.Context, id int64) error {
	return e.mappings.DeletePair(ctx, id)
}

// SaveYearMapping stores a triplet-level mapping.
func (e *Engine) SaveYearMapping(ctx context.Context, t *storage.YearMapping) error {
	return e.mappings.SaveTriplet(ctx, t)
}

// DeleteYearMapping removes a triplet-level mapping by ID.
func (e *Engine) DeleteYearMapping(ctx context.Context, id int64) error {
	return e.mappings.DeleteTriplet(ctx, id)
}

// Mappings lists all pair-level mappings.
func (e *Engine) Mappings(ctx context.Context) ([]storage.Mapping, error) {
	return e.mappings.GetAll(ctx)
}

// YearMappings lists all triplet-level mappings.
func (e *Engine) YearMappings(ctx context.Context) ([]storage.YearMapping, error) {
	return e.mappings.GetAllTriplets(ctx)
}

// MappingForPair returns the pair-level mapping for an uncurated pair.
func (e *Engine) MappingForPair(ctx context.Context, makeID, modelID int64) (*storage.Mapping, error) {
	return e.mappings.GetByUncuratedPair(ctx, makeID, modelID)
}

// PairStatus derives the curation status of one uncurated pair.
func (e *Engine) PairStatus(ctx context.Context, pair storage.UncuratedPair) (status.Status, error) {
	return e.reporter.ForPair(ctx, pair, e.years.UncuratedYears())
}

// Coverage computes assignment coverage over the detected pairs.
func (e *Engine) Coverage(ctx context.Context) (*status.Coverage, error) {
	res, err := e.detector.Detect(ctx, detector.Options{IncludeExactMatches: true})
	if err != nil {
		return nil, err
	}
	return e.reporter.Report(ctx, res.Pairs, e.years.UncuratedYears())
}

// Years exposes the year partition for runtime reconfiguration. Every
// mutation invalidates the hierarchy and pair caches before returning.
func (e *Engine) Years() *yearconfig.Configuration {
	return e.years
}

// RecentRuns lists recent auto-assignment runs, newest first.
func (e *Engine) RecentRuns(ctx context.Context, limit int) ([]storage.RunAudit, error) {
	return e.audits.Recent(ctx, limit)
}

// Enums exposes enum interning for ingestion tooling.
func (e *Engine) Enums() *storage.EnumRepository {
	return e.enums
}

// Records exposes record inserts for ingestion tooling.
func (e *Engine) Records() *storage.RecordRepository {
	return e.records
}
