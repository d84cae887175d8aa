package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"deckgenius/internal/logging"
	"deckgenius/internal/models"
	"deckgenius/internal/playback"
	"deckgenius/internal/services"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrSlideNotFound),
		errors.Is(err, services.ErrRemoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidImportFormat),
		errors.Is(err, models.ErrMalformedFeedData):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotPresenting),
		errors.Is(err, models.ErrEmptyPresentation),
		errors.Is(err, models.ErrNoTemplate),
		errors.Is(err, playback.ErrAutoplayActive),
		errors.Is(err, services.ErrRemoteInactive):
		return http.StatusConflict
	case errors.Is(err, models.ErrNetworkFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Success: false, Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func requestLogger(r *http.Request) *zerolog.Logger {
	return logging.FromContext(r.Context())
}
