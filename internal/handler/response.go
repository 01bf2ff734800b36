package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON, every failure through writeError, so the
// page script can rely on one error shape:
//
//	{"error": "userName is required"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/bin-confirm/internal/apperror"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON sends data as JSON with the given status code.
// Headers and status must be set before the body is encoded.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status:
//
//	apperror.ErrValidation  → 400
//	apperror.ErrConflict    → 409
//	anything else           → 500
//
// Messages of *apperror.AppError are written as-is. Any other error gets a generic
// message so driver details (SQL, file paths) never reach the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	}

	message := "internal server error"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	writeJSON(w, status, ErrorResponse{Error: message})
}
