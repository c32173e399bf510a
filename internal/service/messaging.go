package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/metrics"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/repository"
)

// Subscriber opens a live feed of one thread's new messages.
// *realtime.Hub satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, threadID string) (<-chan model.Message, func())
}

// Broker is the realtime hub as the messaging service sees it.
type Broker interface {
	Publisher
	Subscriber
}

// MessagingService is the inbox and thread view.
//
// PARTICIPANT CHECK:
// Every thread operation first asks the store whether the caller is one of
// the thread's two participants. Outsiders get NOT_AUTHORIZED whether or not
// the thread exists, so thread ids can't be discovered by guessing.
type MessagingService struct {
	threads repository.ThreadRepository
	broker  Broker
	now     func() time.Time
	logger  *slog.Logger
}

func NewMessagingService(threads repository.ThreadRepository, broker Broker, logger *slog.Logger) *MessagingService {
	return &MessagingService{
		threads: threads,
		broker:  broker,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

func notParticipant() *apperror.AppError {
	return apperror.Forbidden("Not authorized to view this thread")
}

func (s *MessagingService) ListThreads(ctx context.Context, session auth.Session) ([]model.ThreadSummary, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.threads.ListThreads(ctx, session.UserID)
}

// GetThreadMessages returns the whole conversation, oldest first.
func (s *MessagingService) GetThreadMessages(ctx context.Context, session auth.Session, threadID string) (*model.ThreadView, error) {
	if err := s.authorize(ctx, session, threadID); err != nil {
		return nil, err
	}

	messages, err := s.threads.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("service/messaging: %w", err)
	}
	other, err := s.threads.OtherParticipant(ctx, threadID, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/messaging: %w", err)
	}
	return &model.ThreadView{ThreadID: threadID, Other: *other, Messages: messages}, nil
}

// SendMessage appends to a thread the caller takes part in and pushes the
// message to anyone watching it.
func (s *MessagingService) SendMessage(ctx context.Context, session auth.Session, threadID, content string) (*model.Message, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	content, err := normalizeMessage(content)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, threadID); err != nil {
		return nil, err
	}

	msg, err := s.threads.AppendMessage(ctx, threadID, session.UserID, content)
	if err != nil {
		return nil, fmt.Errorf("service/messaging: %w", err)
	}
	metrics.MessageSent(metrics.MessageReply)
	s.broker.Publish(*msg)
	return msg, nil
}

// MarkRead moves the caller's read marker to now.
func (s *MessagingService) MarkRead(ctx context.Context, session auth.Session, threadID string) error {
	if err := s.authorize(ctx, session, threadID); err != nil {
		return err
	}
	if err := s.threads.MarkRead(ctx, threadID, session.UserID, s.now()); err != nil {
		return fmt.Errorf("service/messaging: %w", err)
	}
	return nil
}

// Subscribe checks membership and then opens a live message feed. The
// returned cancel func must be called when the consumer goes away.
func (s *MessagingService) Subscribe(ctx context.Context, session auth.Session, threadID string) (<-chan model.Message, func(), error) {
	if err := s.authorize(ctx, session, threadID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.broker.Subscribe(ctx, threadID)
	metrics.SubscriberOpened()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			metrics.SubscriberClosed()
		})
	}, nil
}

func (s *MessagingService) authorize(ctx context.Context, session auth.Session, threadID string) error {
	if err := requireSession(session); err != nil {
		return err
	}
	ok, err := s.threads.IsParticipant(ctx, threadID, session.UserID)
	if err != nil {
		return fmt.Errorf("service/messaging: %w", err)
	}
	if !ok {
		return notParticipant()
	}
	return nil
}
