package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/ratelimit"
)

// oauthFlow is the state handling shared by "link GitHub to my account" and
// "sign in with GitHub". Both start the same way and both finish with a
// verified GitHub user plus its access token; they differ only in what they
// do with it.
//
// CSRF PROTECTION VIA STATE:
// begin stores a 256-bit random state in the browser's transient store and
// sends the same value to GitHub. complete refuses the callback unless the
// two match, and it does so before spending a network round trip on the code.
type oauthFlow struct {
	provider IdentityProvider
	limiter  ratelimit.Limiter
	logger   *slog.Logger
}

func (f *oauthFlow) begin(ctx context.Context, clientIP string, store TransientStore) (string, error) {
	if err := enforce(ctx, f.limiter, ratelimit.Auth, clientIP, f.logger); err != nil {
		return "", err
	}

	state, err := auth.NewState()
	if err != nil {
		return "", fmt.Errorf("service/oauth: %w", err)
	}
	if err := store.Set(TransientStateKey, state, TransientTTL); err != nil {
		return "", fmt.Errorf("service/oauth: storing state: %w", err)
	}
	return f.provider.AuthURL(state), nil
}

// verified is what a successful callback yields.
type verified struct {
	user  *auth.GitHubUser
	token string
}

func (f *oauthFlow) complete(ctx context.Context, store TransientStore, code, state string) (*verified, error) {
	expected, ok := store.Get(TransientStateKey)
	if !ok || expected == "" || state == "" ||
		subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		return nil, apperror.New(apperror.ErrValidation, apperror.CodeInvalidState, "Invalid OAuth state")
	}

	// Single use, whatever happens next.
	if err := store.Delete(TransientStateKey); err != nil {
		f.logger.Warn("oauth: clearing state failed", slog.String("error", err.Error()))
	}

	token, err := f.provider.Exchange(ctx, code)
	if err != nil {
		f.logger.Warn("oauth: code exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(apperror.CodeTokenExchangeFailed, "Failed to exchange code for token", err)
	}

	user, err := f.provider.FetchUser(ctx, token)
	if err != nil {
		f.logger.Warn("oauth: fetching GitHub user failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(apperror.CodeProfileFetchFailed, "Failed to fetch GitHub profile", err)
	}

	return &verified{user: user, token: token}, nil
}
