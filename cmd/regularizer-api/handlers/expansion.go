package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/pkg/engine"
)

// ExpansionHandler serves query-time filter expansion.
type ExpansionHandler struct {
	logger zerolog.Logger
	engine *engine.Engine
}

// NewExpansionHandler creates a new expansion handler.
func NewExpansionHandler(logger zerolog.Logger, eng *engine.Engine) *ExpansionHandler {
	return &ExpansionHandler{logger: logger, engine: eng}
}

// ExpandRequestDTO is a filter expansion request.
type ExpandRequestDTO struct {
	MakeIDs  []int64 `json:"makeIds"`
	ModelIDs []int64 `json:"modelIds,omitempty"`
}

// ExpandResponseDTO is a filter expansion response.
type ExpandResponseDTO struct {
	MakeIDs  []int64 `json:"makeIds"`
	ModelIDs []int64 `json:"modelIds"`
	Enabled  bool    `json:"enabled"`
}

// Expand handles POST /expand.
func (h *ExpansionHandler) Expand(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.MakeIDs) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "makeIds is required", "")
		return
	}

	makes, models, err := h.engine.ExpandPairIDs(r.Context(), req.MakeIDs, req.ModelIDs)
	if err != nil {
		h.logger.Error().Err(err).Msg("Filter expansion failed")
		writeError(w, h.logger, http.StatusInternalServerError, "expansion failed", err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ExpandResponseDTO{
		MakeIDs:  makes,
		ModelIDs: models,
		Enabled:  h.engine.RegularizationEnabled(),
	})
}
