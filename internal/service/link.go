package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/repository"
)

// ConnectGitHubRedirect is where the browser lands after a successful link,
// the repository picker.
const ConnectGitHubRedirect = "/dashboard/profile/connect-github"

// identityLinker writes a verified GitHub account against a user: the
// identity row, the profile fields GitHub knows about, and the eligibility
// flag that depends on both.
type identityLinker struct {
	identities repository.IdentityRepository
	profiles   repository.ProfileRepository
	logger     *slog.Logger
}

func (l *identityLinker) link(ctx context.Context, userID string, gh *auth.GitHubUser) (*model.ExternalIdentity, error) {
	identity := &model.ExternalIdentity{
		UserID:         userID,
		Provider:       model.ProviderGitHub,
		ProviderUserID: strconv.FormatInt(gh.ID, 10),
		Handle:         gh.Login,
		ProfileURL:     gh.HTMLURL,
		AvatarURL:      gh.AvatarURL,
	}
	if err := l.identities.UpsertIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("service/link: %w", err)
	}

	// The identity is what matters; a profile that didn't pick up the
	// avatar can be fixed by hand.
	sync := model.IdentitySync{
		AvatarURL: gh.AvatarURL,
		GitHubURL: gh.HTMLURL,
		FullName:  gh.Name,
		Bio:       gh.Bio,
		Location:  gh.Location,
	}
	if err := l.profiles.SyncIdentityProfile(ctx, userID, sync); err != nil {
		l.logger.Warn("link: profile sync failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	l.recompute(ctx, userID)
	return identity, nil
}

// recompute refreshes is_eligible and logs, rather than returns, a failure.
// Every caller has already committed the change that triggered it.
func (l *identityLinker) recompute(ctx context.Context, userID string) {
	recomputeEligibility(ctx, l.profiles, userID, l.logger)
}

func recomputeEligibility(ctx context.Context, profiles repository.ProfileRepository, userID string, logger *slog.Logger) {
	if _, err := profiles.RecomputeEligibility(ctx, userID); err != nil {
		logger.Error("eligibility recompute failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
}

// LinkService attaches a GitHub account to the signed-in user.
type LinkService struct {
	flow   *oauthFlow
	linker *identityLinker
	logger *slog.Logger
}

func NewLinkService(
	provider IdentityProvider,
	identities repository.IdentityRepository,
	profiles repository.ProfileRepository,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) *LinkService {
	return &LinkService{
		flow:   &oauthFlow{provider: provider, limiter: limiter, logger: logger},
		linker: &identityLinker{identities: identities, profiles: profiles, logger: logger},
		logger: logger,
	}
}

// LinkResult is returned by CompleteLink.
type LinkResult struct {
	Identity *model.ExternalIdentity `json:"identity"`
	Redirect string                  `json:"redirect"`
}

// BeginLink starts the OAuth dance and returns the GitHub authorize URL.
func (s *LinkService) BeginLink(ctx context.Context, clientIP string, store TransientStore) (string, error) {
	return s.flow.begin(ctx, clientIP, store)
}

// CompleteLink handles the OAuth callback.
//
// The session is checked after the provider calls so that a signed-out
// browser still burns the state and code; nothing is written for it.
// The access token is parked in the transient store for the repository
// picker, which reads it back within the next ten minutes.
func (s *LinkService) CompleteLink(ctx context.Context, session auth.Session, store TransientStore, code, state string) (*LinkResult, error) {
	v, err := s.flow.complete(ctx, store, code, state)
	if err != nil {
		return nil, err
	}
	if err := requireSession(session); err != nil {
		return nil, err
	}

	identity, err := s.linker.link(ctx, session.UserID, v.user)
	if err != nil {
		return nil, err
	}

	if err := store.Set(TransientTokenKey, v.token, TransientTTL); err != nil {
		return nil, fmt.Errorf("service/link: storing provider token: %w", err)
	}

	s.logger.Info("GitHub linked",
		slog.String("userID", session.UserID),
		slog.String("handle", identity.Handle),
	)
	return &LinkResult{Identity: identity, Redirect: ConnectGitHubRedirect}, nil
}

// ConnectionStatus is the GitHub card on the profile page.
type ConnectionStatus struct {
	Connected bool                    `json:"connected"`
	Identity  *model.ExternalIdentity `json:"identity,omitempty"`
}

func (s *LinkService) ConnectionStatus(ctx context.Context, session auth.Session) (*ConnectionStatus, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	identity, err := s.linker.identities.GetIdentity(ctx, session.UserID, model.ProviderGitHub)
	if errors.Is(err, apperror.ErrNotFound) {
		return &ConnectionStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/link: %w", err)
	}
	return &ConnectionStatus{Connected: true, Identity: identity}, nil
}

// Disconnect unlinks GitHub. Imported repositories stay in the portfolio,
// but without an identity the user is no longer eligible.
func (s *LinkService) Disconnect(ctx context.Context, session auth.Session) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if err := s.linker.identities.DeleteIdentity(ctx, session.UserID, model.ProviderGitHub); err != nil {
		return fmt.Errorf("service/link: %w", err)
	}
	s.linker.recompute(ctx, session.UserID)

	s.logger.Info("GitHub disconnected", slog.String("userID", session.UserID))
	return nil
}
