// Package expansion rewrites query filter ID sets so that a filter on a
// canonical pair also covers its mapped uncurated variants, and vice
// versa.
package expansion

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/internal/storage"
)

// linkSource lists mapping links in either direction.
type linkSource interface {
	LinksByCanonical(ctx context.Context, makeIDs, modelIDs []int64) ([]storage.PairLink, error)
	LinksByUncurated(ctx context.Context, makeIDs, modelIDs []int64) ([]storage.PairLink, error)
}

// Expander widens filter ID sets using the mapping store. Expansion is
// symmetric: filtering by HONDA/CR-V finds records stored as HONDA/CRV,
// and filtering by HONDA/CRV finds records stored as HONDA/CR-V.
type Expander struct {
	mappings linkSource
	log      zerolog.Logger

	// enabled gates all expansion. When false every call is identity.
	enabled func() bool
}

// New creates an expander. enabled is consulted per call so the toggle
// can change at runtime.
func New(mappings linkSource, enabled func() bool, logger zerolog.Logger) *Expander {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Expander{
		mappings: mappings,
		enabled:  enabled,
		log:      logger.With().Str("component", "expansion").Logger(),
	}
}

// ExpandPairIDs widens coupled (make, model) filter sets. Both inputs
// describe one filter; an empty side means that dimension is not
// filtered, so it stays empty and only the filtered side is widened.
// The returned sets include every mapped counterpart in both
// directions, deduplicated and sorted. With no mappings stored the
// inputs come back unchanged.
func (e *Expander) ExpandPairIDs(ctx context.Context, makeIDs, modelIDs []int64) ([]int64, []int64, error) {
	if !e.enabled() || (len(makeIDs) == 0 && len(modelIDs) == 0) {
		return makeIDs, modelIDs, nil
	}

	makeFiltered := len(makeIDs) > 0
	modelFiltered := len(modelIDs) > 0
	makes := newIDSet(makeIDs)
	models := newIDSet(modelIDs)

	fromCanonical, err := e.mappings.LinksByCanonical(ctx, makeIDs, modelIDs)
	if err != nil {
		return nil, nil, err
	}
	fromUncurated, err := e.mappings.LinksByUncurated(ctx, makeIDs, modelIDs)
	if err != nil {
		return nil, nil, err
	}

	for _, l := range fromCanonical {
		if makeFiltered {
			makes.add(l.UncuratedMakeID)
		}
		if modelFiltered {
			models.add(l.UncuratedModelID)
		}
	}
	for _, l := range fromUncurated {
		if makeFiltered {
			makes.add(l.CanonicalMakeID)
		}
		if modelFiltered {
			models.add(l.CanonicalModelID)
		}
	}

	if added := makes.added + models.added; added > 0 {
		e.log.Debug().Int("ids_added", added).Msg("filter expanded")
	}
	return makes.sorted(), models.sorted(), nil
}

// ExpandMakeIDs widens a make-only filter.
func (e *Expander) ExpandMakeIDs(ctx context.Context, makeIDs []int64) ([]int64, error) {
	expanded, _, err := e.ExpandPairIDs(ctx, makeIDs, nil)
	return expanded, err
}

type idSet struct {
	ids   map[int64]struct{}
	added int
}

func newIDSet(ids []int64) *idSet {
	s := &idSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *idSet) add(id int64) {
	if _, ok := s.ids[id]; !ok {
		s.ids[id] = struct{}{}
		s.added++
	}
}

func (s *idSet) sorted() []int64 {
	if len(s.ids) == 0 {
		return nil
	}
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
