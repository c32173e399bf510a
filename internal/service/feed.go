package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/feed"
	"github.com/sakif/buildermatch/internal/gating"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/repository"
)

// Feed paging defaults.
const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 100
)

// FeedService assembles the discovery feed.
//
// PIPELINE:
//
//	store candidates → feed.Rank → feed.Page → feed.Rotate → viewer state
//
// Everything after the store call is pure, so the only inputs that change
// the result are the candidate set and the clock.
type FeedService struct {
	profiles     repository.ProfileRepository
	interactions repository.InteractionRepository
	now          func() time.Time
	logger       *slog.Logger
}

func NewFeedService(
	profiles repository.ProfileRepository,
	interactions repository.InteractionRepository,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		profiles:     profiles,
		interactions: interactions,
		now:          time.Now,
		logger:       logger,
	}
}

// GetFeed returns the viewer's current window of builders.
//
// Only builders with a complete builder profile may browse; the others get
// ONBOARDING_REQUIRED and the client sends them to the onboarding form.
func (s *FeedService) GetFeed(ctx context.Context, session auth.Session, limit, offset int) (*model.Feed, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}

	viewer, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/feed: %w", err)
	}
	if !gating.BuilderProfileComplete(builderFields(viewer)) {
		return nil, apperror.New(apperror.ErrForbidden, apperror.CodeOnboardingRequired,
			"Complete your builder profile to browse builders")
	}

	candidates, err := s.profiles.ListFeedCandidates(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/feed: %w", err)
	}

	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	limit = min(limit, MaxFeedLimit)

	now := s.now()
	bucket := feed.Bucket(now)
	ranked := feed.Rank(viewerCard(viewer), candidates)
	cards := feed.Rotate(feed.Page(ranked, limit, offset), session.UserID, bucket)

	actions, err := s.viewerActions(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		cards[i].ViewerAction = actions[cards[i].UserID]
	}

	return &model.Feed{
		Cards:                cards,
		Bucket:               bucket,
		RefreshAvailableInMs: feed.RefreshCooldown(now).Milliseconds(),
		ViewerEligible:       viewer.IsEligible,
	}, nil
}

// viewerActions maps target user id to the viewer's strongest action on
// them. A like outranks a save; passed users never reach the feed.
func (s *FeedService) viewerActions(ctx context.Context, viewerID string) (map[string]model.Action, error) {
	interactions, err := s.interactions.ListInteractions(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/feed: %w", err)
	}
	actions := make(map[string]model.Action, len(interactions))
	for _, in := range interactions {
		if !in.Target.IsUser() {
			continue
		}
		if actions[in.Target.ID] == model.ActionLike {
			continue
		}
		actions[in.Target.ID] = in.Action
	}
	return actions, nil
}

// viewerCard is the viewer's own profile in the shape ranking compares.
func viewerCard(p *model.Profile) model.FeedCard {
	return model.FeedCard{
		UserID:         p.UserID,
		Timezone:       p.Timezone,
		WorkModes:      p.WorkModes,
		IterationStyle: p.IterationStyle,
		StackFocus:     p.StackFocus,
	}
}
