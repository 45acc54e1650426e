package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/rfcontrol-core/internal/control"
	"github.com/nerrad567/rfcontrol-core/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeUnauthorized  = "unauthorised"
	ErrCodeConflict      = "conflict"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodePublishFailed = "publish_failed"
)

// msgDeviceNotFound is shared by missing and foreign devices.
const msgDeviceNotFound = "device not found"

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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDeviceError maps device and control errors onto HTTP responses.
// A foreign device and a missing one produce byte-identical responses.
func (s *Server) writeDeviceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, device.ErrUnauthorized), errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, msgDeviceNotFound)
	case errors.Is(err, device.ErrProfileExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device already has a profile")
	case errors.Is(err, control.ErrProfileMissing):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device has no profile")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, control.ErrPublishFailure):
		writeError(w, http.StatusBadGateway, ErrCodePublishFailed, "could not reach the device transmitter")
	default:
		s.logger.Error(op+" failed", "error", err)
		writeInternalError(w, op+" failed")
	}
}

// isValidationError reports whether err is caused by bad client input.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidProfile) ||
		errors.Is(err, device.ErrUnknownDeviceType) ||
		errors.Is(err, control.ErrInvalidAction)
}
