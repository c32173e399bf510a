// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Every operation takes the caller's auth.Session as an explicit argument.
// Services never look at cookies or request context to find out who is
// calling, which keeps them testable with plain function calls.
//
// ORDER OF CHECKS:
// Most operations follow the same sequence: authenticate, validate the input,
// apply the rate limit, then touch the store. A request that would fail
// validation never spends a rate-limit token and never opens a transaction.
//
// DEPENDENCY INJECTION:
// Services take the narrow repository interfaces they need, never *sqlite.DB.
// Tests pass the real store opened on ":memory:" or a hand-written fake.
package service

import (
	"context"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/model"
)

// Transient store keys and lifetime. The HTTP layer maps each key to its own
// short-lived cookie.
const (
	TransientStateKey = "oauth_state"
	TransientTokenKey = "provider_temp_token"
	TransientTTL      = 10 * time.Minute
)

// TransientStore holds short-lived values that belong to one browser, such
// as the OAuth state and the provider access token between link and import.
type TransientStore interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration) error
	Delete(key string) error
}

// IdentityProvider is the slice of the GitHub adapter the services use.
// *auth.GitHubProvider satisfies it.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	FetchUser(ctx context.Context, accessToken string) (*auth.GitHubUser, error)
	ListRepositories(ctx context.Context, accessToken string) ([]model.Repository, error)
}

var _ IdentityProvider = (*auth.GitHubProvider)(nil)

func requireSession(s auth.Session) error {
	if !s.Authenticated() {
		return apperror.NotAuthenticated()
	}
	return nil
}
