package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AntanasZilinskas/fd2p/application/service"
	"github.com/go-chi/chi/v5/middleware"
)

// APIError is an error with the status code and message a client should see.
// The cause is logged, never written to the response.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

// Error implements error.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// resolve picks the status and message for err. Errors that are not
// APIErrors are mapped from the service sentinels.
func resolve(err error) (int, string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code(), apiErr.Message()
	}
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest, "Invalid request data"
	case errors.Is(err, service.ErrClientClosed):
		return http.StatusServiceUnavailable, "Service unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// logError records the full error against the request.
func logError(r *http.Request, code int, err error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelError
	if code < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(r.Context(), level, "request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", code,
		"error", err,
	)
}

// WriteError logs err and writes its client message as plain text.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	code, message := resolve(err)
	logError(r, code, err, logger)
	WriteText(w, code, message)
}

// WriteJSONError logs err and writes its client message as {"error": message}.
func WriteJSONError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	code, message := resolve(err)
	logError(r, code, err, logger)
	WriteJSON(w, code, map[string]string{"error": message})
}

// WriteText writes a plain-text response.
func WriteText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
