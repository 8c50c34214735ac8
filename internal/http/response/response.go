// Package response writes the JSON envelope every API endpoint returns.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/listenupapp/clipdeck/internal/errors"
)

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any         `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    errors.Code `json:"code,omitempty"`
	Details any         `json:"details,omitempty"`
	Success bool        `json:"success"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	write(w, status, Envelope{Success: status < 400, Data: data}, logger)
}

func write(w http.ResponseWriter, status int, envelope Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a created response (201 Created).
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// NoContent writes a no content response (204 No Content).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	write(w, status, Envelope{Error: message}, logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	write(w, http.StatusBadRequest, Envelope{Error: message, Code: errors.CodeValidation}, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	write(w, http.StatusNotFound, Envelope{Error: message, Code: errors.CodeNotFound}, logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, message, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	write(w, http.StatusInternalServerError, Envelope{Error: message, Code: errors.CodeInternal}, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Coded errors map to their HTTP status; anything else becomes a 500.
// Invariant violations are logged since they point at a client bug.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		if logger != nil && domainErr.Code.Invariant() {
			logger.Error("Engine invariant violated", "code", string(domainErr.Code), "error", err)
		}
		write(w, domainErr.HTTPStatus(), Envelope{
			Error:   domainErr.Message,
			Code:    domainErr.Code,
			Details: domainErr.Details,
		}, logger)
		return
	}

	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}
