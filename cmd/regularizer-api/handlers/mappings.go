package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/pkg/engine"
)

// MappingsHandler manages pair and year mappings.
type MappingsHandler struct {
	logger zerolog.Logger
	engine *engine.Engine
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(logger zerolog.Logger, eng *engine.Engine) *MappingsHandler {
	return &MappingsHandler{logger: logger, engine: eng}
}

// MappingDTO represents a pair-level mapping.
type MappingDTO struct {
	ID               int64  `json:"id,omitempty"`
	UncuratedMakeID  int64  `json:"uncuratedMakeId"`
	UncuratedModelID int64  `json:"uncuratedModelId"`
	CanonicalMakeID  int64  `json:"canonicalMakeId"`
	CanonicalModelID int64  `json:"canonicalModelId"`
	VehicleTypeID    *int64 `json:"vehicleTypeId,omitempty"`
	FuelTypeID       *int64 `json:"fuelTypeId,omitempty"`
	RecordCount      int64  `json:"recordCount,omitempty"`
	YearRangeStart   int    `json:"yearRangeStart,omitempty"`
	YearRangeEnd     int    `json:"yearRangeEnd,omitempty"`
}

// YearMappingDTO represents a triplet-level mapping.
type YearMappingDTO struct {
	ID               int64 `json:"id,omitempty"`
	UncuratedMakeID  int64 `json:"uncuratedMakeId"`
	UncuratedModelID int64 `json:"uncuratedModelId"`
	ModelYear        int   `json:"modelYear"`
	CanonicalMakeID  int64 `json:"canonicalMakeId"`
	CanonicalModelID int64 `json:"canonicalModelId"`
	FuelTypeID       int64 `json:"fuelTypeId"`
}

// MappingListDTO is the combined mapping listing.
type MappingListDTO struct {
	Mappings     []MappingDTO     `json:"mappings"`
	YearMappings []YearMappingDTO `json:"yearMappings"`
}

// List handles GET /mappings.
func (h *MappingsHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.engine.Mappings(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "list mappings failed", err.Error())
		return
	}
	triplets, err := h.engine.YearMappings(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "list year mappings failed", err.Error())
		return
	}

	dto := MappingListDTO{
		Mappings:     make([]MappingDTO, 0, len(mappings)),
		YearMappings: make([]YearMappingDTO, 0, len(triplets)),
	}
	for _, m := range mappings {
		dto.Mappings = append(dto.Mappings, MappingDTO{
			ID:               m.ID,
			UncuratedMakeID:  m.UncuratedMakeID,
			UncuratedModelID: m.UncuratedModelID,
			CanonicalMakeID:  m.CanonicalMakeID,
			CanonicalModelID: m.CanonicalModelID,
			VehicleTypeID:    m.VehicleTypeID,
			FuelTypeID:       m.FuelTypeID,
			RecordCount:      m.RecordCount,
			YearRangeStart:   m.YearRangeStart,
			YearRangeEnd:     m.YearRangeEnd,
		})
	}
	for _, t := range triplets {
		dto.YearMappings = append(dto.YearMappings, YearMappingDTO{
			ID:               t.ID,
			UncuratedMakeID:  t.UncuratedMakeID,
			UncuratedModelID: t.UncuratedModelID,
			ModelYear:        t.ModelYear,
			CanonicalMakeID:  t.CanonicalMakeID,
			CanonicalModelID: t.CanonicalModelID,
			FuelTypeID:       t.FuelTypeID,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, dto)
}

// Create handles POST /mappings.
func (h *MappingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var dto MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if dto.UncuratedMakeID == 0 || dto.UncuratedModelID == 0 ||
		dto.CanonicalMakeID == 0 || dto.CanonicalModelID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "uncurated and canonical pair IDs are required", "")
		return
	}

	m := &storage.Mapping{
		UncuratedMakeID:  dto.UncuratedMakeID,
		UncuratedModelID: dto.UncuratedModelID,
		CanonicalMakeID:  dto.CanonicalMakeID,
		CanonicalModelID: dto.CanonicalModelID,
		VehicleTypeID:    dto.VehicleTypeID,
		FuelTypeID:       dto.FuelTypeID,
		RecordCount:      dto.RecordCount,
		YearRangeStart:   dto.YearRangeStart,
		YearRangeEnd:     dto.YearRangeEnd,
	}
	if err := h.engine.SaveMapping(r.Context(), m); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			writeError(w, h.logger, http.StatusConflict, "pair is already mapped", "")
			return
		}
		h.logger.Error().Err(err).Msg("Save mapping failed")
		writeError(w, h.logger, http.StatusInternalServerError, "save mapping failed", err.Error())
		return
	}

	dto.ID = m.ID
	writeJSON(w, h.logger, http.StatusCreated, dto)
}

// Update handles PUT /mappings/{id}: rewrites the canonical pair and
// the assignable dimensions of an existing mapping.
func (h *MappingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid mapping ID", "")
		return
	}
	var dto MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if dto.CanonicalMakeID == 0 || dto.CanonicalModelID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "canonical pair IDs are required", "")
		return
	}

	m := &storage.Mapping{
		ID:               id,
		CanonicalMakeID:  dto.CanonicalMakeID,
		CanonicalModelID: dto.CanonicalModelID,
		VehicleTypeID:    dto.VehicleTypeID,
		FuelTypeID:       dto.FuelTypeID,
	}
	if err := h.engine.UpdateMapping(r.Context(), m); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "mapping not found", "")
			return
		}
		h.logger.Error().Err(err).Msg("Update mapping failed")
		writeError(w, h.logger, http.StatusInternalServerError, "update mapping failed", err.Error())
		return
	}

	dto.ID = id
	writeJSON(w, h.logger, http.StatusOK, dto)
}

// Delete handles DELETE /mappings/{id}.
func (h *MappingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.engine.DeleteMapping)
}

// CreateYear handles POST /mappings/years.
func (h *MappingsHandler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var dto YearMappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if dto.UncuratedMakeID == 0 || dto.UncuratedModelID == 0 || dto.ModelYear == 0 || dto.FuelTypeID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "pair IDs, modelYear, and fuelTypeId are required", "")
		return
	}

	// The canonical side defaults to the uncurated side for pairs whose
	// identity is the only thing being repaired.
	if dto.CanonicalMakeID == 0 {
		dto.CanonicalMakeID = dto.UncuratedMakeID
	}
	if dto.CanonicalModelID == 0 {
		dto.CanonicalModelID = dto.UncuratedModelID
	}
	t := &storage.YearMapping{
		UncuratedMakeID:  dto.UncuratedMakeID,
		UncuratedModelID: dto.UncuratedModelID,
		CanonicalMakeID:  dto.CanonicalMakeID,
		CanonicalModelID: dto.CanonicalModelID,
		ModelYear:        dto.ModelYear,
		FuelTypeID:       dto.FuelTypeID,
	}
	if err := h.engine.SaveYearMapping(r.Context(), t); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			writeError(w, h.logger, http.StatusConflict, "pair already mapped for this year", "")
			return
		}
		h.logger.Error().Err(err).Msg("Save year mapping failed")
		writeError(w, h.logger, http.StatusInternalServerError, "save year mapping failed", err.Error())
		return
	}

	dto.ID = t.ID
	writeJSON(w, h.logger, http.StatusCreated, dto)
}

// DeleteYear handles DELETE /mappings/years/{id}.
func (h *MappingsHandler) DeleteYear(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.engine.DeleteYearMapping)
}

func (h *MappingsHandler) delete(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, id int64) error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid mapping ID", "")
		return
	}
	if err := del(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "mapping not found", "")
			return
		}
		writeError(w, h.logger, http.StatusInternalServerError, "delete failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
