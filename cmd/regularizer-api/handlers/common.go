// Package handlers provides HTTP handlers for the regularizer API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorDTO is the error envelope every handler returns on failure.
type ErrorDTO struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, message, detail string) {
	writeJSON(w, logger, status, ErrorDTO{Error: message, Detail: detail})
}
