// Package apperror defines the error taxonomy shared by every layer.
//
// ERROR KINDS VS ERROR CODES:
// Each AppError wraps one sentinel "kind" (ErrNotFound, ErrValidation, ...) that
// the HTTP layer maps to a status code, plus a stable machine-readable Code
// (e.g. "TARGET_MESSAGES_DISABLED") that clients switch on to render a specific
// explanation. errors.Is(err, apperror.ErrForbidden) works through any number
// of fmt.Errorf("...: %w") wrappers because AppError implements Unwrap.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("dependency unavailable")
)

// Codes surfaced to clients in the "error" field of a response body.
const (
	CodeNotAuthenticated       = "NOT_AUTHENTICATED"
	CodeNotAuthorized          = "NOT_AUTHORIZED"
	CodeNotFound               = "NOT_FOUND"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeConflict               = "CONFLICT"
	CodeRateLimited            = "RATE_LIMITED"
	CodeDependencyUnavailable  = "DEPENDENCY_UNAVAILABLE"
	CodeInvalidState           = "INVALID_STATE"
	CodeTokenExchangeFailed    = "TOKEN_EXCHANGE_FAILED"
	CodeProfileFetchFailed     = "PROFILE_FETCH_FAILED"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeEmptySelection         = "EMPTY_SELECTION"
	CodeTooManySelected        = "TOO_MANY_SELECTED"
	CodeAlreadyImported        = "ALREADY_IMPORTED"
	CodeEmptyMessage           = "EMPTY_MESSAGE"
	CodeMessageTooLong         = "MESSAGE_TOO_LONG"
	CodeTargetMessagesDisabled = "TARGET_MESSAGES_DISABLED"
	CodeOnboardingRequired     = "ONBOARDING_REQUIRED"
	CodeLinkExpired            = "LINK_EXPIRED"
	CodeSkillExists            = "SKILL_EXISTS"

	// Returned by the like / start-thread transactions.
	CodeNotEligible       = "NOT_ELIGIBLE"
	CodeTargetNotFound    = "TARGET_NOT_FOUND"
	CodeTargetNotEligible = "TARGET_NOT_ELIGIBLE"
	CodeCannotLikeSelf    = "CANNOT_LIKE_SELF"
	CodeCannotMessageSelf = "CANNOT_MESSAGE_SELF"
)

type AppError struct {
	Err     error             // kind sentinel
	Code    string            // machine-readable code
	Message string            // human-readable error message
	Field   string            // optional: single field causing the error
	Fields  map[string]string // optional: field-level validation detail
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError of the given kind. Prefer the named constructors below;
// New exists for codes that only one call site produces.
func New(kind error, code, message string) *AppError {
	return &AppError{Err: kind, Code: code, Message: message}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidationFailed,
		Message: message,
		Field:   field,
	}
}

// InvalidFields reports several field errors at once, e.g. from a struct validator.
func InvalidFields(fields map[string]string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidationFailed,
		Message: "Validation failed",
		Fields:  fields,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Code:    CodeNotAuthorized,
		Message: message,
	}
}

func NotAuthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Code:    CodeNotAuthenticated,
		Message: "Not authenticated",
	}
}

func RateLimited() *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Code:    CodeRateLimited,
		Message: "Too many requests. Please try again later.",
	}
}

// Unavailable marks a failure of an external collaborator (database, identity
// provider, rate-limit store). cause is kept in the chain for logging.
func Unavailable(code, message string, cause error) error {
	appErr := &AppError{Err: ErrUnavailable, Code: code, Message: message}
	if cause == nil {
		return appErr
	}
	return fmt.Errorf("%w: %w", appErr, cause)
}

// CodeOf extracts the client-facing code from anywhere in err's chain.
// Returns "" when err carries no AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
