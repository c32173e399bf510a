package handler

// RESPONSE HELPERS:
// Every API response goes through writeJSON, writeSuccess or writeError so
// the frontend always sees the same shapes.
//
// ENVELOPE:
// Mutations answer with {"success": true, ...payload}. Errors answer with
//
//	{"success": false, "error": "TARGET_MESSAGES_DISABLED", "message": "...", "details": {...}}
//
// where "error" is the stable code clients switch on and "details" carries
// per-field validation messages when there are any. Reads return the view
// object directly.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/ratelimit"
)

// maxBodyBytes bounds every JSON request body. A full-length message is
// 10,000 characters of up to 4 bytes each, so 64KB leaves room for JSON.
const maxBodyBytes = 64 << 10

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Field   string            `json:"field,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be written before the body. Once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess merges payload into {"success": true}.
func writeSuccess(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to an HTTP status and sends the envelope.
//
// The service layer never knows about status codes; this is the only place
// the translation happens. Anything that is not an AppError is reported as
// a generic 500 and logged: raw errors can carry SQL or file paths.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if exceeded, ok := ratelimit.AsExceeded(err); ok {
		setRateLimitHeaders(w, exceeded.Result)
	}

	status := statusFor(err)
	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "INTERNAL_ERROR",
			Message: "An internal error occurred",
		})
		return
	}

	if status == http.StatusBadGateway {
		logger.Warn("dependency failure", slog.String("error", err.Error()))
	}
	writeJSON(w, status, ErrorResponse{
		Error:   appErr.Code,
		Message: appErr.Message,
		Field:   appErr.Field,
		Details: appErr.Fields,
	})
}

func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	retry := int(math.Ceil(res.ResetAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("Retry-After", strconv.Itoa(retry))
}

// decodeJSON reads a bounded JSON body into dst. Malformed bodies become a
// validation error so they render like any other bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.ValidationFailed("body", fmt.Sprintf("Request body must be %d bytes or fewer", maxBodyBytes))
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
