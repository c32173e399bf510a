package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/metrics"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/repository"
)

// AuthService signs people in.
//
// TWO WAYS IN:
//   - Magic link: RequestMagicLink emails a one-time URL, VerifyMagicLink
//     redeems it. The account is keyed by email and created on first use.
//   - GitHub: BeginSignIn / CompleteSignIn run the OAuth dance and resolve
//     the account by linked identity, then by email.
//
// Both end in an AuthResult carrying a signed session token; the handler
// turns it into the session cookie.
type AuthService struct {
	users      repository.UserRepository
	magicLinks repository.MagicLinkRepository
	tokens     *auth.TokenService
	hasher     *auth.SecretHasher
	mailer     Mailer
	limiter    ratelimit.Limiter
	flow       *oauthFlow
	linker     *identityLinker
	baseURL    string
	now        func() time.Time
	logger     *slog.Logger
}

// AuthServiceConfig lists AuthService's collaborators.
type AuthServiceConfig struct {
	Users      repository.UserRepository
	MagicLinks repository.MagicLinkRepository
	Identities repository.IdentityRepository
	Profiles   repository.ProfileRepository
	Tokens     *auth.TokenService
	Hasher     *auth.SecretHasher
	Provider   IdentityProvider
	Limiter    ratelimit.Limiter
	Mailer     Mailer
	BaseURL    string
	Logger     *slog.Logger
}

func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		users:      cfg.Users,
		magicLinks: cfg.MagicLinks,
		tokens:     cfg.Tokens,
		hasher:     cfg.Hasher,
		mailer:     cfg.Mailer,
		limiter:    cfg.Limiter,
		flow:       &oauthFlow{provider: cfg.Provider, limiter: cfg.Limiter, logger: cfg.Logger},
		linker:     &identityLinker{identities: cfg.Identities, profiles: cfg.Profiles, logger: cfg.Logger},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     cfg.Logger,
	}
}

const (
	// MagicLinkTTL is how long an emailed link stays valid.
	MagicLinkTTL = 15 * time.Minute

	// DefaultAfterSignIn is where a fresh session lands unless a safe "next"
	// path was supplied.
	DefaultAfterSignIn = "/find"

	magicLinkSecretBytes = 32
)

// AuthResult is a completed sign-in.
type AuthResult struct {
	User     *model.User `json:"user"`
	Token    string      `json:"-"`
	Redirect string      `json:"redirect"`
	Created  bool        `json:"created"`
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// RequestMagicLink issues a link for email and hands it to the mailer.
// It succeeds whether or not an account exists, so the endpoint can't be
// used to discover registered addresses.
func (s *AuthService) RequestMagicLink(ctx context.Context, clientIP, email, next string) error {
	req := magicLinkRequest{Email: normalizeEmail(email)}
	if err := validateInput(req, map[string]string{
		"email": "Please enter a valid email address",
	}); err != nil {
		return err
	}

	if err := enforce(ctx, s.limiter, ratelimit.Auth, clientIP, s.logger); err != nil {
		return err
	}

	secret, err := auth.RandomToken(magicLinkSecretBytes)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	link := &model.MagicLink{
		Email:      req.Email,
		SecretHash: hash,
		RedirectTo: auth.RedirectOr(next, DefaultAfterSignIn),
		ExpiresAt:  s.now().Add(MagicLinkTTL),
	}
	if err := s.magicLinks.CreateMagicLink(ctx, link); err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	q := url.Values{}
	q.Set("id", link.ID)
	q.Set("token", secret)
	msg := MagicLinkEmail{
		To:        link.Email,
		URL:       s.baseURL + "/auth/magic-link/verify?" + q.Encode(),
		ExpiresAt: link.ExpiresAt,
	}
	if err := s.mailer.SendMagicLink(ctx, msg); err != nil {
		return apperror.Unavailable(apperror.CodeDependencyUnavailable, "Could not send the sign-in email", err)
	}
	return nil
}

// VerifyMagicLink redeems a link. Unknown, expired, already used and
// wrong-secret links all fail the same way.
func (s *AuthService) VerifyMagicLink(ctx context.Context, id, secret string) (*AuthResult, error) {
	expired := apperror.New(apperror.ErrUnauthenticated, apperror.CodeLinkExpired,
		"This sign-in link is invalid or has expired")
	if id == "" || secret == "" {
		return nil, expired
	}

	link, err := s.magicLinks.GetMagicLink(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, expired
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	now := s.now()
	if link.ConsumedAt != nil || !now.Before(link.ExpiresAt) {
		return nil, expired
	}
	if err := s.hasher.Verify(link.SecretHash, secret); err != nil {
		s.logger.Warn("magic link secret mismatch", slog.String("linkID", id))
		return nil, expired
	}

	// Two tabs racing on the same link: exactly one consume wins.
	if err := s.magicLinks.ConsumeMagicLink(ctx, id, now); err != nil {
		return nil, err
	}

	user, created, err := s.users.FindOrCreateUserByEmail(ctx, link.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	result, err := s.issue(user, created, auth.RedirectOr(link.RedirectTo, DefaultAfterSignIn))
	if err != nil {
		return nil, err
	}
	metrics.SignedIn(metrics.SignInMagicLink)
	s.logger.Info("signed in by magic link",
		slog.String("userID", user.ID),
		slog.Bool("created", created),
	)
	return result, nil
}

// BeginSignIn starts "Sign in with GitHub".
func (s *AuthService) BeginSignIn(ctx context.Context, clientIP string, store TransientStore) (string, error) {
	return s.flow.begin(ctx, clientIP, store)
}

// CompleteSignIn finishes "Sign in with GitHub".
//
// ACCOUNT RESOLUTION:
//  1. a user who already linked this GitHub account
//  2. otherwise the user with the GitHub email
//  3. otherwise a new user; GitHub accounts with a private email get the
//     stable noreply address GitHub itself uses for commits
//
// The identity is then (re)linked, so signing in also refreshes the handle
// and avatar, and the access token is kept for the repository picker.
func (s *AuthService) CompleteSignIn(ctx context.Context, store TransientStore, code, state string) (*AuthResult, error) {
	v, err := s.flow.complete(ctx, store, code, state)
	if err != nil {
		return nil, err
	}

	user, created, err := s.resolveGitHubUser(ctx, v.user)
	if err != nil {
		return nil, err
	}

	if _, err := s.linker.link(ctx, user.ID, v.user); err != nil {
		return nil, err
	}
	if err := store.Set(TransientTokenKey, v.token, TransientTTL); err != nil {
		return nil, fmt.Errorf("service/auth: storing provider token: %w", err)
	}

	result, err := s.issue(user, created, DefaultAfterSignIn)
	if err != nil {
		return nil, err
	}
	metrics.SignedIn(metrics.SignInGitHub)
	s.logger.Info("signed in with GitHub",
		slog.String("userID", user.ID),
		slog.String("handle", v.user.Login),
		slog.Bool("created", created),
	)
	return result, nil
}

func (s *AuthService) resolveGitHubUser(ctx context.Context, gh *auth.GitHubUser) (*model.User, bool, error) {
	providerID := strconv.FormatInt(gh.ID, 10)

	identity, err := s.linker.identities.GetIdentityByProviderID(ctx, model.ProviderGitHub, providerID)
	switch {
	case err == nil:
		user, err := s.users.GetUserByID(ctx, identity.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("service/auth: %w", err)
		}
		return user, false, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fmt.Errorf("service/auth: %w", err)
	}

	email := normalizeEmail(gh.Email)
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, strings.ToLower(gh.Login))
	}
	user, created, err := s.users.FindOrCreateUserByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("service/auth: %w", err)
	}
	return user, created, nil
}

func (s *AuthService) issue(user *model.User, created bool, redirect string) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return &AuthResult{User: user, Token: token, Redirect: redirect, Created: created}, nil
}

// SessionTTL is the lifetime of issued session tokens.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
