package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/internal/cache"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

// combinationSource is the storage surface the builder reads.
type combinationSource interface {
	CuratedCombinations(ctx context.Context, years []int) ([]storage.CuratedCombination, error)
}

// Builder assembles the canonical hierarchy and caches the result until
// the curated year set changes. A snapshot cache client is optional;
// when present, serialized trees survive process restarts (or are
// shared between processes via Redis).
type Builder struct {
	records combinationSource
	years   *yearconfig.Configuration
	snap    cache.Client
	ttl     time.Duration
	log     zerolog.Logger

	mu    sync.Mutex
	built *Hierarchy
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSnapshotCache adds a second cache level holding serialized trees.
// A non-positive ttl keeps the one hour default.
func WithSnapshotCache(client cache.Client, ttl time.Duration) BuilderOption {
	return func(b *Builder) {
		b.snap = client
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// NewBuilder creates a hierarchy builder bound to a year configuration.
// Every partition mutation invalidates the built tree before the
// mutator returns.
func NewBuilder(records combinationSource, years *yearconfig.Configuration, logger zerolog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		records: records,
		years:   years,
		ttl:     time.Hour,
		log:     logger.With().Str("component", "hierarchy").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	years.OnChange(b.Invalidate)
	return b
}

// Build returns the hierarchy for the current curated year set, reusing
// the cached tree when its signature still matches. forceRefresh skips
// both cache levels and recomputes from records.
func (b *Builder) Build(ctx context.Context, forceRefresh bool) (*Hierarchy, error) {
	sig := b.years.Signature()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !forceRefresh && b.built != nil && b.built.Signature == sig {
		return b.built, nil
	}

	if !forceRefresh && b.snap != nil {
		if h, err := b.loadSnapshot(ctx, sig); err == nil {
			b.built = h
			return h, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			b.log.Warn().Err(err).Msg("hierarchy snapshot load failed, rebuilding")
		}
	}

	h, err := b.compute(ctx, sig)
	if err != nil {
		return nil, err
	}
	b.built = h

	if b.snap != nil {
		if err := b.storeSnapshot(ctx, h); err != nil {
			b.log.Warn().Err(err).Msg("hierarchy snapshot store failed")
		}
	}
	return h, nil
}

// Invalidate drops the built tree. The next Build recomputes.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	b.built = nil
	b.mu.Unlock()
}

func (b *Builder) compute(ctx context.Context, sig string) (*Hierarchy, error) {
	h := NewHierarchy(sig)

	curated := b.years.CuratedYears()
	if len(curated) == 0 {
		// No curated years means no trusted data. An empty tree is the
		// correct answer, not an error.
		return h, nil
	}

	start := time.Now()
	combos, err := b.records.CuratedCombinations(ctx, curated)
	if err != nil {
		return nil, fmt.Errorf("load curated combinations: %w", err)
	}
	for _, c := range combos {
		h.observe(c.MakeID, c.MakeName, c.ModelID, c.ModelName, c.FuelTypeID, c.VehicleTypeID, c.ModelYear)
	}

	b.log.Debug().
		Int("makes", len(h.Makes)).
		Int("combinations", len(combos)).
		Dur("elapsed", time.Since(start)).
		Msg("hierarchy built")
	return h, nil
}

func (b *Builder) loadSnapshot(ctx context.Context, sig string) (*Hierarchy, error) {
	data, err := b.snap.Get(ctx, "hierarchy:"+sig)
	if err != nil {
		return nil, err
	}
	h := &Hierarchy{}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("decode hierarchy snapshot: %w", err)
	}
	if h.Signature != sig {
		return nil, cache.ErrCacheMiss
	}
	h.reindex()
	return h, nil
}

func (b *Builder) storeSnapshot(ctx context.Context, h *Hierarchy) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode hierarchy snapshot: %w", err)
	}
	return b.snap.Set(ctx, "hierarchy:"+h.Signature, data, b.ttl)
}
