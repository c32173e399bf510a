package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
)

// openThread starts a direct thread from a to b and returns its id.
func openThread(t *testing.T, env *testEnv, a, b auth.Session) string {
	t.Helper()
	res, err := env.interactionService().StartThreadDirect(context.Background(), a, b.UserID, "Hello")
	if err != nil {
		t.Fatalf("StartThreadDirect() error = %v", err)
	}
	return res.ThreadID
}

func TestSendMessage_ValidationBeforeMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a@example.com")
	b := env.user(t, "b@example.com")
	outsider := env.user(t, "c@example.com")
	threadID := openThread(t, env, a, b)
	svc := env.messagingService()

	_, err := svc.SendMessage(ctx, outsider, threadID, "   ")
	assertCode(t, err, apperror.CodeEmptyMessage)

	_, err = svc.SendMessage(ctx, outsider, threadID, strings.Repeat("x", 10001))
	assertCode(t, err, apperror.CodeMessageTooLong)

	_, err = svc.SendMessage(ctx, outsider, threadID, "let me in")
	assertCode(t, err, apperror.CodeNotAuthorized)

	_, err = svc.SendMessage(ctx, auth.Session{}, threadID, "hi")
	assertCode(t, err, apperror.CodeNotAuthenticated)
}

func TestSendMessage_UnreadCountsAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "a@example.com")
	b := env.user(t, "b@example.com")
	threadID := openThread(t, env, a, b)
	svc := env.messagingService()

	if _, err := svc.SendMessage(ctx, a, threadID, "Are you around?"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	inbox, err := svc.ListThreads(ctx, b)
	if err != nil || len(inbox) != 1 {
		t.Fatalf("ListThreads() = %+v, %v", inbox, err)
	}
	if inbox[0].UnreadCount != 2 {
		t.Errorf("B unread = %d, want 2", inbox[0].UnreadCount)
	}
	if inbox[0].Other.UserID != a.UserID {
		t.Errorf("Other = %s, want %s", inbox[0].Other.UserID, a.UserID)
	}
	if inbox[0].LastMessage == nil || inbox[0].LastMessage.Content != "Are you around?" {
		t.Errorf("LastMessage = %+v", inbox[0].LastMessage)
	}

	// The sender never has unread messages of their own.
	mine, _ := svc.ListThreads(ctx, a)
	if mine[0].UnreadCount != 0 {
		t.Errorf("A unread = %d, want 0", mine[0].UnreadCount)
	}

	svc.now = func() time.Time { return time.Now().UTC().Add(time.Second) }
	if err := svc.MarkRead(ctx, b, threadID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	inbox, _ = svc.ListThreads(ctx, b)
	if inbox[0].UnreadCount != 0 {
		t.Errorf("B unread after MarkRead = %d, want 0", inbox[0].UnreadCount)
	}

	outsider := env.user(t, "c@example.com")
	err = svc.MarkRead(ctx, outsider, threadID)
	assertCode(t, err, apperror.CodeNotAuthorized)
}

func TestSubscribe_ParticipantsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := env.user(t, "a@example.com")
	b := env.user(t, "b@example.com")
	outsider := env.user(t, "c@example.com")
	threadID := openThread(t, env, a, b)
	svc := env.messagingService()

	_, _, err := svc.Subscribe(ctx, outsider, threadID)
	assertCode(t, err, apperror.CodeNotAuthorized)

	stream, stop, err := svc.Subscribe(ctx, b, threadID)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer stop()

	sent, err := svc.SendMessage(ctx, a, threadID, "live")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	select {
	case msg := <-stream:
		if msg.ID != sent.ID || msg.Content != "live" {
			t.Errorf("received %+v, want %s", msg, sent.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the message")
	}

	stop()
	stop() // idempotent
	if n := env.hub.Subscribers(threadID); n != 0 {
		t.Errorf("Subscribers() = %d after stop, want 0", n)
	}
}
