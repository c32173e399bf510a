package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/model"
)

// pairKey identifies the single direct thread between two users,
// independent of who started it.
func pairKey(a, b string) string {
	low, high := model.OrderedPair(a, b)
	return low + ":" + high
}

// StartThread opens (or reuses) the direct thread between actor and target
// and posts content into it.
//
// Checks, in order: target exists (TARGET_NOT_FOUND), target is not the actor
// (CANNOT_MESSAGE_SELF), target accepts messages (TARGET_MESSAGES_DISABLED).
// A refused request writes nothing.
func (db *DB) StartThread(ctx context.Context, actorID, targetID, content string) (*model.StartThreadResult, error) {
	var result model.StartThreadResult

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var allowMessages bool
		err := tx.QueryRowContext(ctx,
			`SELECT allow_messages FROM profiles WHERE user_id = ?`, targetID,
		).Scan(&allowMessages)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New(apperror.ErrNotFound, apperror.CodeTargetNotFound, "User not found")
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading message preference for %s: %w", targetID, err)
		}
		if targetID == actorID {
			return apperror.New(apperror.ErrValidation, apperror.CodeCannotMessageSelf, "You cannot message yourself")
		}
		if !allowMessages {
			return apperror.New(apperror.ErrForbidden, apperror.CodeTargetMessagesDisabled,
				"This user is not accepting messages")
		}

		now := db.now()
		threadID, created, err := findOrCreatePairThread(ctx, tx, actorID, targetID, now)
		if err != nil {
			return err
		}
		sender := actorID
		msg, err := insertMessage(ctx, tx, threadID, &sender, content, now)
		if err != nil {
			return err
		}

		result = model.StartThreadResult{ThreadID: threadID, Created: created, Message: msg}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListThreads returns userID's threads, most recently active first.
//
// UNREAD COUNT:
// Messages newer than the viewer's last_read_at that the viewer did not send.
// A thread the viewer has never opened (last_read_at NULL) counts all of
// them. System messages count as unread.
func (db *DB) ListThreads(ctx context.Context, userID string) ([]model.ThreadSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.match_id, t.last_message_at,
			p.user_id, p.full_name, p.headline, p.avatar_url,
			(SELECT COUNT(*) FROM messages um
			 WHERE um.thread_id = t.id
			   AND (um.sender_user_id IS NULL OR um.sender_user_id <> me.user_id)
			   AND (me.last_read_at IS NULL OR um.created_at > me.last_read_at)),
			lm.id, lm.sender_user_id, lm.content, lm.created_at
		 FROM thread_participants me
		 JOIN threads t ON t.id = me.thread_id
		 JOIN thread_participants other ON other.thread_id = t.id AND other.user_id <> me.user_id
		 JOIN profiles p ON p.user_id = other.user_id
		 LEFT JOIN messages lm ON lm.id = (
			SELECT id FROM messages WHERE thread_id = t.id ORDER BY created_at DESC, id DESC LIMIT 1
		 )
		 WHERE me.user_id = ?
		 ORDER BY t.last_message_at DESC, t.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing threads for %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.ThreadSummary{}
	for rows.Next() {
		var (
			s         model.ThreadSummary
			matchID   sql.NullString
			lastID    sql.NullString
			lastFrom  sql.NullString
			lastBody  sql.NullString
			lastAtRaw sql.NullTime
		)
		if err := rows.Scan(&s.ThreadID, &matchID, &s.LastMessageAt,
			&s.Other.UserID, &s.Other.FullName, &s.Other.Headline, &s.Other.AvatarURL,
			&s.UnreadCount,
			&lastID, &lastFrom, &lastBody, &lastAtRaw,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning thread summary: %w", err)
		}
		if matchID.Valid {
			s.MatchID = &matchID.String
		}
		if lastID.Valid {
			s.LastMessage = &model.Message{
				ID:        lastID.String,
				ThreadID:  s.ThreadID,
				SenderID:  nullableString(lastFrom),
				Content:   lastBody.String,
				CreatedAt: lastAtRaw.Time,
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM thread_participants WHERE thread_id = ? AND user_id = ?`,
		threadID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking participant %s in %s: %w", userID, threadID, err)
	}
	return n > 0, nil
}

// ListMessages returns a thread's messages oldest first. ULIDs break ties
// between messages written in the same instant.
func (db *DB) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, thread_id, sender_user_id, content, created_at, edited_at, is_edited
		 FROM messages WHERE thread_id = ?
		 ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages for %s: %w", threadID, err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var (
			m        model.Message
			sender   sql.NullString
			editedAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &sender, &m.Content, &m.CreatedAt, &editedAt, &m.IsEdited); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message: %w", err)
		}
		m.SenderID = nullableString(sender)
		if editedAt.Valid {
			m.EditedAt = &editedAt.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// OtherParticipant returns the card of the participant who is not userID.
func (db *DB) OtherParticipant(ctx context.Context, threadID, userID string) (*model.UserCard, error) {
	var c model.UserCard
	err := db.conn.QueryRowContext(ctx,
		`SELECT p.user_id, p.full_name, p.headline, p.avatar_url
		 FROM thread_participants tp
		 JOIN profiles p ON p.user_id = tp.user_id
		 WHERE tp.thread_id = ? AND tp.user_id <> ?
		 LIMIT 1`,
		threadID, userID,
	).Scan(&c.UserID, &c.FullName, &c.Headline, &c.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("thread participant", threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading other participant in %s: %w", threadID, err)
	}
	return &c, nil
}

// AppendMessage inserts a message and bumps the thread's last_message_at in
// the same transaction.
func (db *DB) AppendMessage(ctx context.Context, threadID, senderID, content string) (*model.Message, error) {
	var msg *model.Message
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		msg, err = insertMessage(ctx, tx, threadID, &senderID, content, db.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead stamps last_read_at for userID in threadID.
func (db *DB) MarkRead(ctx context.Context, threadID, userID string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE thread_participants SET last_read_at = ? WHERE thread_id = ? AND user_id = ?`,
		at.UTC(), threadID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking %s read for %s: %w", threadID, userID, err)
	}
	return expectRow(res, "thread participant", threadID)
}

// findOrCreatePairThread returns the direct thread between a and b, creating
// it with both participants when missing.
func findOrCreatePairThread(ctx context.Context, tx *sql.Tx, a, b string, now time.Time) (string, bool, error) {
	key := pairKey(a, b)

	var threadID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM threads WHERE pair_key = ?`, key).Scan(&threadID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("sqlite: finding thread %s: %w", key, err)
	}

	created := false
	if threadID == "" {
		threadID = newID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO threads (id, pair_key, created_at, last_message_at) VALUES (?, ?, ?, ?)`,
			threadID, key, now, now,
		); err != nil {
			return "", false, fmt.Errorf("sqlite: creating thread %s: %w", key, err)
		}
		created = true
	}

	for _, userID := range []string{a, b} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_participants (thread_id, user_id, joined_at) VALUES (?, ?, ?)
			 ON CONFLICT (thread_id, user_id) DO NOTHING`,
			threadID, userID, now,
		); err != nil {
			return "", false, fmt.Errorf("sqlite: adding participant %s: %w", userID, err)
		}
	}
	return threadID, created, nil
}

// insertMessage appends a message. A nil sender marks a system message.
func insertMessage(ctx context.Context, tx *sql.Tx, threadID string, senderID *string, content string, now time.Time) (*model.Message, error) {
	msg := &model.Message{
		ID:        ulid.Make().String(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: now,
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, sender_user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.SenderID, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting message into %s: %w", threadID, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE threads SET last_message_at = ? WHERE id = ?`, now, threadID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bumping thread %s: %w", threadID, err)
	}
	if err := expectRow(res, "thread", threadID); err != nil {
		return nil, err
	}
	return msg, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
