// Package detector finds (make, model) pairs that exist only in
// uncurated years and maintains the persisted snapshot of that scan.
package detector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/saaqdata/regularizer/internal/hierarchy"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/yearconfig"
)

// pairSource is the storage surface the full scan reads.
type pairSource interface {
	UncuratedPairs(ctx context.Context, uncuratedYears, curatedYears []int) ([]storage.UncuratedPair, error)
}

// pairCache is the persisted snapshot store.
type pairCache interface {
	Signature(ctx context.Context) (string, error)
	Load(ctx context.Context) ([]storage.UncuratedPair, error)
	Replace(ctx context.Context, signature string, pairs []storage.UncuratedPair) error
}

// Detector computes the uncurated pair set. The expensive scan runs at
// most once per year-partition signature; results are persisted so
// later processes skip the scan entirely.
type Detector struct {
	records   pairSource
	cache     pairCache
	hierarchy *hierarchy.Builder
	years     *yearconfig.Configuration
	log       zerolog.Logger

	group singleflight.Group
}

// Options narrow a detection request. The underlying snapshot always
// holds the complete set; these only shape the returned view.
type Options struct {
	// IncludeExactMatches keeps pairs whose exact (make, model) names
	// also occur as a canonical hierarchy node.
	IncludeExactMatches bool
	// ForceRefresh discards the snapshot and rescans.
	ForceRefresh bool
}

// Result is one detection answer.
type Result struct {
	Pairs     []storage.UncuratedPair
	Signature string
	// FromCache reports whether the snapshot served this request
	// without touching vehicle records.
	FromCache bool
}

// New creates a detector.
func New(records pairSource, cache pairCache, builder *hierarchy.Builder, years *yearconfig.Configuration, logger zerolog.Logger) *Detector {
	return &Detector{
		records:   records,
		cache:     cache,
		hierarchy: builder,
		years:     years,
		log:       logger.With().Str("component", "detector").Logger(),
	}
}

// Detect returns the uncurated pairs for the current year partition.
// Concurrent callers with the same signature share one scan.
func (d *Detector) Detect(ctx context.Context, opts Options) (*Result, error) {
	sig := d.years.Signature()

	if !opts.ForceRefresh {
		if res, ok, err := d.fromSnapshot(ctx, sig); err != nil {
			return nil, err
		} else if ok {
			return d.view(res, opts), nil
		}
	}

	v, err, _ := d.group.Do(sig, func() (any, error) {
		return d.compute(ctx, sig)
	})
	if err != nil {
		return nil, err
	}
	return d.view(v.(*Result), opts), nil
}

// fromSnapshot serves from the persisted cache when its signature
// matches the live partition. An empty snapshot is never trusted: it is
// indistinguishable from a snapshot that was cleared or never written,
// so it always falls through to a scan.
func (d *Detector) fromSnapshot(ctx context.Context, sig string) (*Result, bool, error) {
	stored, err := d.cache.Signature(ctx)
	if err != nil {
		return nil, false, err
	}
	if stored == "" || stored != sig {
		return nil, false, nil
	}

	pairs, err := d.cache.Load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load pair snapshot: %w", err)
	}
	if len(pairs) == 0 {
		return nil, false, nil
	}
	sortPairs(pairs)
	return &Result{Pairs: pairs, Signature: sig, FromCache: true}, true, nil
}

// compute runs the full scan, annotates exact matches against the
// canonical hierarchy, and persists the snapshot.
func (d *Detector) compute(ctx context.Context, sig string) (*Result, error) {
	start := time.Now()

	tree, err := d.hierarchy.Build(ctx, false)
	if err != nil {
		return nil, err
	}

	pairs, err := d.records.UncuratedPairs(ctx, d.years.UncuratedYears(), d.years.CuratedYears())
	if err != nil {
		return nil, fmt.Errorf("scan uncurated pairs: %w", err)
	}

	exact := 0
	for i := range pairs {
		if tree.Contains(pairs[i].MakeName, pairs[i].ModelName) {
			pairs[i].IsExactMatch = true
			exact++
		}
	}
	sortPairs(pairs)

	if err := d.cache.Replace(ctx, sig, pairs); err != nil {
		return nil, fmt.Errorf("persist pair snapshot: %w", err)
	}

	d.log.Info().
		Int("pairs", len(pairs)).
		Int("exact_matches", exact).
		Dur("elapsed", time.Since(start)).
		Msg("uncurated pair scan complete")
	return &Result{Pairs: pairs, Signature: sig}, nil
}

// view applies the request options to the shared result. The slice is
// copied; callers never see each other's filters.
func (d *Detector) view(res *Result, opts Options) *Result {
	out := &Result{Signature: res.Signature, FromCache: res.FromCache}
	out.Pairs = make([]storage.UncuratedPair, 0, len(res.Pairs))
	for _, p := range res.Pairs {
		if p.IsExactMatch && !opts.IncludeExactMatches {
			continue
		}
		out.Pairs = append(out.Pairs, p)
	}
	return out
}

// sortPairs orders by record count descending, then names for ties, so
// the most impactful pairs surface first.
func sortPairs(pairs []storage.UncuratedPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].RecordCount != pairs[j].RecordCount {
			return pairs[i].RecordCount > pairs[j].RecordCount
		}
		if pairs[i].MakeName != pairs[j].MakeName {
			return pairs[i].MakeName < pairs[j].MakeName
		}
		return pairs[i].ModelName < pairs[j].ModelName
	})
}
