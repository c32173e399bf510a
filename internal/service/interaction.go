package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/metrics"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/repository"
)

// Publisher pushes a new message to live subscribers of its thread.
// *realtime.Hub satisfies it.
type Publisher interface {
	Publish(msg model.Message)
}

// InteractionService handles likes, passes, saves and first messages.
//
// The matching rules themselves live in the store's LikeUser transaction;
// this layer authenticates, rate limits, counts and fans out.
type InteractionService struct {
	interactions repository.InteractionRepository
	threads      repository.ThreadRepository
	publisher    Publisher
	limiter      ratelimit.Limiter
	logger       *slog.Logger
}

func NewInteractionService(
	interactions repository.InteractionRepository,
	threads repository.ThreadRepository,
	publisher Publisher,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) *InteractionService {
	return &InteractionService{
		interactions: interactions,
		threads:      threads,
		publisher:    publisher,
		limiter:      limiter,
		logger:       logger,
	}
}

// Like records a like and reports whether it completed a match.
func (s *InteractionService) Like(ctx context.Context, session auth.Session, targetUserID string) (*model.LikeResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}

	result, err := s.interactions.LikeUser(ctx, session.UserID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("service/interaction: %w", err)
	}
	metrics.LikeRecorded(result.Matched, result.CreatedNewMatch)

	if result.CreatedNewMatch {
		s.logger.Info("match created",
			slog.String("matchID", result.MatchID),
			slog.String("threadID", result.ThreadID),
		)
	}
	return result, nil
}

// Pass hides a builder from the viewer's feed for good.
func (s *InteractionService) Pass(ctx context.Context, session auth.Session, targetUserID string) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if err := s.interactions.PassUser(ctx, session.UserID, targetUserID); err != nil {
		return fmt.Errorf("service/interaction: %w", err)
	}
	return nil
}

// Save bookmarks a builder or a project. Saving twice is not an error.
func (s *InteractionService) Save(ctx context.Context, session auth.Session, target model.Target) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return apperror.ValidationFailed("target", "Unknown save target")
	}
	err := s.interactions.SaveTarget(ctx, session.UserID, target)
	if err != nil && !errors.Is(err, apperror.ErrConflict) {
		return fmt.Errorf("service/interaction: %w", err)
	}
	return nil
}

func (s *InteractionService) Interactions(ctx context.Context, session auth.Session) ([]model.Interaction, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.interactions.ListInteractions(ctx, session.UserID)
}

func (s *InteractionService) Matches(ctx context.Context, session auth.Session) ([]model.MatchSummary, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.interactions.ListMatches(ctx, session.UserID)
}

// StartThreadDirect messages a builder without a match. The pair's existing
// thread is reused when there is one.
func (s *InteractionService) StartThreadDirect(ctx context.Context, session auth.Session, targetUserID, message string) (*model.StartThreadResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	content, err := normalizeMessage(message)
	if err != nil {
		return nil, err
	}
	if err := enforce(ctx, s.limiter, ratelimit.Message, session.UserID, s.logger); err != nil {
		return nil, err
	}

	result, err := s.threads.StartThread(ctx, session.UserID, targetUserID, content)
	if err != nil {
		return nil, fmt.Errorf("service/interaction: %w", err)
	}
	metrics.MessageSent(metrics.MessageDirectStart)
	s.publisher.Publish(*result.Message)

	if result.Created {
		s.logger.Info("thread started",
			slog.String("threadID", result.ThreadID),
			slog.String("userID", session.UserID),
		)
	}
	return result, nil
}

// normalizeMessage trims content and checks its length in characters.
func normalizeMessage(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.New(apperror.ErrValidation, apperror.CodeEmptyMessage, "Message cannot be empty")
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLength {
		return "", apperror.New(apperror.ErrValidation, apperror.CodeMessageTooLong, "Message too long (max 10,000 characters)")
	}
	return content, nil
}
