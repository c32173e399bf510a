// Package ratelimit provides sliding-window request limiting keyed by
// (action class, actor-or-IP).
//
// SLIDING WINDOW:
// Each key keeps a log of its allowed hits. A hit is allowed when fewer than
// Rule.Limit hits fall inside the trailing Rule.Window; refused hits are not
// logged. No Window-long span ever holds more than Limit allowed hits, even
// one that straddles what a fixed window would call a reset.
//
// Two implementations share the Limiter interface:
//   - Redis: a sorted set per key, shared across server instances (production).
//   - Memory: a process-local map for development and tests.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
)

// Rule names an action class and its budget.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Action classes.
var (
	// Auth covers OAuth starts and magic-link requests, keyed by client IP.
	Auth = Rule{Name: "auth", Limit: 5, Window: 15 * time.Minute}

	// Message covers direct thread starts, keyed by actor.
	Message = Rule{Name: "message", Limit: 5, Window: time.Minute}

	// Profile covers onboarding saves, basics edits and imports, keyed by actor.
	Profile = Rule{Name: "profile", Limit: 10, Window: time.Minute}
)

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter counts one hit against rule for key and reports whether it is allowed.
type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (Result, error)
}

// ExceededError is returned by Enforce when a rule's budget is spent. It
// unwraps to a RATE_LIMITED AppError; the handler reads Result for the
// X-RateLimit-* and Retry-After headers.
type ExceededError struct {
	Rule   Rule
	Result Result
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("ratelimit: %s budget exhausted, retry in %s", e.Rule.Name, e.Result.ResetAfter)
}

func (e *ExceededError) Unwrap() error {
	return apperror.RateLimited()
}

// Enforce counts one hit and returns *ExceededError when it is over budget.
//
// FAIL OPEN:
// If the store itself fails (Redis down) the request is allowed and the
// failure logged. A broken limiter must not lock every user out of sign-in.
func Enforce(ctx context.Context, l Limiter, rule Rule, key string, logger *slog.Logger) error {
	res, err := l.Allow(ctx, rule, key)
	if err != nil {
		logger.Warn("rate limiter unavailable, allowing request",
			slog.String("rule", rule.Name),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !res.Allowed {
		return &ExceededError{Rule: rule, Result: res}
	}
	return nil
}

// AsExceeded extracts an *ExceededError from err's chain.
func AsExceeded(err error) (*ExceededError, bool) {
	var exceeded *ExceededError
	ok := errors.As(err, &exceeded)
	return exceeded, ok
}

func storageKey(rule Rule, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rule.Name, key)
}

// result builds a Result from the hits now in the window. resetAfter is the
// time until the oldest of them slides out.
func result(rule Rule, allowed bool, used int64, resetAfter time.Duration) Result {
	remaining := rule.Limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    allowed,
		Limit:      rule.Limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}
