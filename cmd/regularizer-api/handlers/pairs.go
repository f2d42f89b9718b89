package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/internal/detector"
	"github.com/saaqdata/regularizer/pkg/engine"
)

// PairsHandler serves uncurated pair listings.
type PairsHandler struct {
	logger zerolog.Logger
	engine *engine.Engine
}

// NewPairsHandler creates a new pairs handler.
func NewPairsHandler(logger zerolog.Logger, eng *engine.Engine) *PairsHandler {
	return &PairsHandler{logger: logger, engine: eng}
}

// PairDTO represents one uncurated pair.
type PairDTO struct {
	MakeID       int64  `json:"makeId"`
	ModelID      int64  `json:"modelId"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	RecordCount  int64  `json:"recordCount"`
	EarliestYear int    `json:"earliestYear"`
	LatestYear   int    `json:"latestYear"`
	ExactMatch   bool   `json:"exactMatch"`
}

// PairListDTO is the pair listing response.
type PairListDTO struct {
	Pairs     []PairDTO `json:"pairs"`
	FromCache bool      `json:"fromCache"`
}

// List handles GET /pairs.
func (h *PairsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.engine.UncuratedPairs(r.Context(), detector.Options{
		IncludeExactMatches: q.Get("includeExact") == "true",
		ForceRefresh:        q.Get("refresh") == "true",
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Pair detection failed")
		writeError(w, h.logger, http.StatusInternalServerError, "pair detection failed", err.Error())
		return
	}

	dto := PairListDTO{Pairs: make([]PairDTO, 0, len(res.Pairs)), FromCache: res.FromCache}
	for _, p := range res.Pairs {
		dto.Pairs = append(dto.Pairs, PairDTO{
			MakeID:       p.MakeID,
			ModelID:      p.ModelID,
			Make:         p.MakeName,
			Model:        p.ModelName,
			RecordCount:  p.RecordCount,
			EarliestYear: p.EarliestYear,
			LatestYear:   p.LatestYear,
			ExactMatch:   p.IsExactMatch,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, dto)
}

// Coverage handles GET /pairs/coverage.
func (h *PairsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	cov, err := h.engine.Coverage(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Coverage computation failed")
		writeError(w, h.logger, http.StatusInternalServerError, "coverage computation failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, cov)
}
