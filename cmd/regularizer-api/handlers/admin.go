package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/pkg/engine"
)

// AdminHandler serves year configuration, the regularization toggle,
// and auto-assignment runs.
type AdminHandler struct {
	logger zerolog.Logger
	engine *engine.Engine
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(logger zerolog.Logger, eng *engine.Engine) *AdminHandler {
	return &AdminHandler{logger: logger, engine: eng}
}

// YearsDTO is the year partition payload.
type YearsDTO struct {
	Curated   []int  `json:"curated"`
	Uncurated []int  `json:"uncurated"`
	Signature string `json:"signature,omitempty"`
}

// GetYears handles GET /admin/years.
func (h *AdminHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	years := h.engine.Years()
	writeJSON(w, h.logger, http.StatusOK, YearsDTO{
		Curated:   years.CuratedYears(),
		Uncurated: years.UncuratedYears(),
		Signature: years.Signature(),
	})
}

// PutYears handles PUT /admin/years. Replacing the partition
// invalidates the hierarchy and pair caches before the response is
// written.
func (h *AdminHandler) PutYears(w http.ResponseWriter, r *http.Request) {
	var dto YearsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.engine.Years().Replace(dto.Curated, dto.Uncurated); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid year partition", err.Error())
		return
	}

	years := h.engine.Years()
	writeJSON(w, h.logger, http.StatusOK, YearsDTO{
		Curated:   years.CuratedYears(),
		Uncurated: years.UncuratedYears(),
		Signature: years.Signature(),
	})
}

// ToggleDTO is the regularization toggle payload.
type ToggleDTO struct {
	Enabled bool `json:"enabled"`
}

// GetToggle handles GET /admin/regularization.
func (h *AdminHandler) GetToggle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, ToggleDTO{Enabled: h.engine.RegularizationEnabled()})
}

// PutToggle handles PUT /admin/regularization.
func (h *AdminHandler) PutToggle(w http.ResponseWriter, r *http.Request) {
	var dto ToggleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	h.engine.SetRegularizationEnabled(dto.Enabled)
	writeJSON(w, h.logger, http.StatusOK, dto)
}

// RunDTO summarizes one auto-assignment run.
type RunDTO struct {
	RunID           string `json:"runId"`
	StartedAt       string `json:"startedAt"`
	DurationMs      int64  `json:"durationMs"`
	PairsConsidered int    `json:"pairsConsidered"`
	PairsAssigned   int    `json:"pairsAssigned"`
	PairsSkipped    int    `json:"pairsSkipped"`
	PairsFailed     int    `json:"pairsFailed"`
}

// AutoAssign handles POST /admin/autoassign.
func (h *AdminHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	rep, err := h.engine.AutoAssign(r.Context(), nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Auto-assignment failed")
		writeError(w, h.logger, http.StatusInternalServerError, "auto-assignment failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RunDTO{
		RunID:           rep.RunID,
		StartedAt:       rep.StartedAt.Format(time.RFC3339),
		DurationMs:      rep.Duration.Milliseconds(),
		PairsConsidered: rep.PairsConsidered,
		PairsAssigned:   rep.PairsAssigned,
		PairsSkipped:    rep.PairsSkipped,
		PairsFailed:     rep.PairsFailed,
	})
}

// Runs handles GET /admin/runs.
func (h *AdminHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	runs, err := h.engine.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "list runs failed", err.Error())
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, RunDTO{
			RunID:           run.ID,
			StartedAt:       run.StartedAt.Format(time.RFC3339),
			DurationMs:      run.Duration.Milliseconds(),
			PairsConsidered: run.PairsConsidered,
			PairsAssigned:   run.PairsAssigned,
			PairsSkipped:    run.PairsSkipped,
			PairsFailed:     run.PairsFailed,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, dtos)
}
