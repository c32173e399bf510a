package service

import (
	"context"
	"log/slog"
	"time"
)

// MagicLinkEmail is everything a mailer needs to deliver a sign-in link.
type MagicLinkEmail struct {
	To        string
	URL       string
	ExpiresAt time.Time
}

// Mailer delivers sign-in links. Production deployments plug in their
// transactional email provider here.
type Mailer interface {
	SendMagicLink(ctx context.Context, email MagicLinkEmail) error
}

// LogMailer writes the link to the log instead of sending it. It is the
// default in development, where the log is the inbox.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendMagicLink(_ context.Context, email MagicLinkEmail) error {
	m.Logger.Info("magic link issued",
		slog.String("to", email.To),
		slog.String("url", email.URL),
		slog.Time("expiresAt", email.ExpiresAt),
	)
	return nil
}
