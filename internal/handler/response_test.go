package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/ratelimit"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", apperror.ValidationFailed("email", "Please enter a valid email address"), http.StatusBadRequest, apperror.CodeValidationFailed},
		{"unauthenticated", apperror.NotAuthenticated(), http.StatusUnauthorized, apperror.CodeNotAuthenticated},
		{"forbidden", apperror.Forbidden("Not authorized to view this thread"), http.StatusForbidden, apperror.CodeNotAuthorized},
		{"not found", apperror.NotFound("user", "u1"), http.StatusNotFound, apperror.CodeNotFound},
		{"conflict", apperror.Conflict("identity", "42"), http.StatusConflict, apperror.CodeConflict},
		{"unavailable", apperror.Unavailable(apperror.CodeTokenExchangeFailed, "GitHub is unavailable", errors.New("dial tcp")), http.StatusBadGateway, apperror.CodeTokenExchangeFailed},
		{"wrapped app error", fmt.Errorf("service/feed: %w", apperror.New(apperror.ErrForbidden, apperror.CodeOnboardingRequired, "Complete your builder profile")), http.StatusForbidden, apperror.CodeOnboardingRequired},
		{"raw error", errors.New("sqlite: database is locked"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, discardLogger, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, discardLogger, errors.New("open /var/lib/buildermatch.db: permission denied"))

	assert.NotContains(t, rec.Body.String(), "/var/lib")
}

func TestWriteError_FieldDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, discardLogger, apperror.InvalidFields(map[string]string{
		"timezone": "Timezone is required",
	}))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Timezone is required", body.Details["timezone"])
}

func TestWriteError_RateLimitHeaders(t *testing.T) {
	err := fmt.Errorf("service/interaction: %w", &ratelimit.ExceededError{
		Rule:   ratelimit.Message,
		Result: ratelimit.Result{Limit: 5, Remaining: 0, ResetAfter: 1500 * time.Millisecond},
	})

	rec := httptest.NewRecorder()
	writeError(rec, discardLogger, err)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperror.CodeRateLimited, body.Error)
}

func TestWriteSuccess_MergesPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSuccess(rec, http.StatusCreated, map[string]any{"threadId": "t1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"threadId":"t1"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Content string `json:"content"`
	}

	t.Run("valid body", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hi"}`))
		require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &p))
		assert.Equal(t, "hi", p.Content)
	})

	t.Run("malformed body", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":`))
		err := decodeJSON(httptest.NewRecorder(), req, &p)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})

	t.Run("oversized body", func(t *testing.T) {
		var p payload
		big := `{"content":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		err := decodeJSON(httptest.NewRecorder(), req, &p)
		require.True(t, errors.Is(err, apperror.ErrValidation))
		assert.Contains(t, err.Error(), "bytes or fewer")
	})
}
