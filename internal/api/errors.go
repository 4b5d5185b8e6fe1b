package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/registry"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeNotConnected   = "not_connected"
	ErrCodeUnsupported    = "unsupported"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps registry, session and robot errors to responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrRobotNotFound),
		errors.Is(err, registry.ErrFavoriteNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, session.ErrNotConnected):
		writeError(w, http.StatusConflict, ErrCodeNotConnected, err.Error())
	case errors.Is(err, robot.ErrFavoriteExists),
		errors.Is(err, registry.ErrNoJobToSave):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, robot.ErrUnsupportedCommand),
		errors.Is(err, robot.ErrUnsupportedOption):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnsupported, err.Error())
	case errors.Is(err, robot.ErrInvalidOptionValue),
		errors.Is(err, robot.ErrNotAJob),
		errors.Is(err, robot.ErrEmptyJob):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, discovery.ErrNoInterfaces):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
