package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// One slice of cases, one loop. Adding a case means adding one struct literal.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("thread", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("content", "Message cannot be empty"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "InvalidFields wraps ErrValidation",
			err:       InvalidFields(map[string]string{"timezone": "Timezone is required"}),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("portfolio item", "123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotAuthenticated wraps ErrUnauthenticated",
			err:       NotAuthenticated(),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "RateLimited wraps ErrRateLimited",
			err:       RateLimited(),
			target:    ErrRateLimited,
			wantMatch: true,
		},
		{
			name:      "Unavailable keeps both kind and cause",
			err:       Unavailable(CodeTokenExchangeFailed, "exchange failed", errors.New("boom")),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "wrapped Forbidden still matches",
			err:       fmt.Errorf("service/messaging: %w", Forbidden("Not authorized to view this thread")),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("thread", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("thread", "abc123"),
			wantMessage: "thread not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("content", "Message cannot be empty"),
			wantMessage: "Message cannot be empty",
		},
		{
			name:        "NotAuthenticated has a fixed message",
			err:         NotAuthenticated(),
			wantMessage: "Not authenticated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrForbidden, CodeTargetMessagesDisabled, "This builder is not accepting messages"))

	if got := CodeOf(err); got != CodeTargetMessagesDisabled {
		t.Errorf("CodeOf() = %q, want %q", got, CodeTargetMessagesDisabled)
	}
	if !IsCode(err, CodeTargetMessagesDisabled) {
		t.Error("IsCode() = false, want true")
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if IsCode(nil, CodeNotFound) {
		t.Error("IsCode(nil) = true, want false")
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("thread", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
