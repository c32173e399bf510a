package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/model"
)

// MatchGreeting is the system message posted into a thread when a match is
// created.
const MatchGreeting = "You matched! Say hello and share what you want to build next."

// LikeUser records actor's like on target and creates the match when the like
// is mutual.
//
// THE LIKE STATE MACHINE (one BEGIN IMMEDIATE transaction):
//  1. actor must be eligible                 → NOT_ELIGIBLE
//  2. target must exist                      → TARGET_NOT_FOUND
//  3. target must not be the actor           → CANNOT_LIKE_SELF
//  4. target must be eligible                → TARGET_NOT_ELIGIBLE
//  5. insert the like (a repeat is a no-op)
//  6. if target already liked actor:
//     - insert the (low, high) match, a repeat is a no-op
//     - find or create the pair's thread and attach the match to it
//     - post the greeting, only when the match is new
//
// Because the transaction takes the write lock up front, two users liking
// each other at the same instant are serialised and exactly one match row
// is written.
func (db *DB) LikeUser(ctx context.Context, actorID, targetID string) (*model.LikeResult, error) {
	result := &model.LikeResult{}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		actorEligible, err := eligibility(ctx, tx, actorID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if !actorEligible {
			return apperror.New(apperror.ErrForbidden, apperror.CodeNotEligible,
				"Connect GitHub and add at least 2 portfolio items before liking builders")
		}

		targetEligible, err := eligibility(ctx, tx, targetID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New(apperror.ErrNotFound, apperror.CodeTargetNotFound, "User not found")
		}
		if err != nil {
			return err
		}
		if targetID == actorID {
			return apperror.New(apperror.ErrValidation, apperror.CodeCannotLikeSelf, "You cannot like yourself")
		}
		if !targetEligible {
			return apperror.New(apperror.ErrForbidden, apperror.CodeTargetNotEligible,
				"This builder can't receive likes yet")
		}

		now := db.now()
		if err := insertInteraction(ctx, tx, actorID, model.UserTarget(targetID), model.ActionLike, now); err != nil {
			return err
		}

		var reverse int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM interactions
			 WHERE actor_user_id = ? AND target_type = 'user' AND target_id = ? AND action = 'like'`,
			targetID, actorID,
		).Scan(&reverse)
		if err != nil {
			return fmt.Errorf("sqlite: checking reverse like: %w", err)
		}
		if reverse == 0 {
			return nil
		}

		low, high := model.OrderedPair(actorID, targetID)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO matches (id, user_low, user_high, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_low, user_high) DO NOTHING`,
			newID(), low, high, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting match: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: inserting match: %w", err)
		}

		var matchID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM matches WHERE user_low = ? AND user_high = ?`, low, high,
		).Scan(&matchID)
		if err != nil {
			return fmt.Errorf("sqlite: reading match id: %w", err)
		}

		threadID, _, err := findOrCreatePairThread(ctx, tx, low, high, now)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE threads SET match_id = ? WHERE id = ? AND match_id IS NULL`, matchID, threadID,
		); err != nil {
			return fmt.Errorf("sqlite: attaching match to thread: %w", err)
		}

		if inserted > 0 {
			if _, err := insertMessage(ctx, tx, threadID, nil, MatchGreeting, now); err != nil {
				return err
			}
		}

		result.Matched = true
		result.MatchID = matchID
		result.ThreadID = threadID
		result.CreatedNewMatch = inserted > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PassUser hides target from actor's feed for good. There is no undo.
func (db *DB) PassUser(ctx context.Context, actorID, targetID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := eligibility(ctx, tx, targetID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.New(apperror.ErrNotFound, apperror.CodeTargetNotFound, "User not found")
			}
			return err
		}
		if targetID == actorID {
			return apperror.ValidationFailed("targetUserId", "You cannot pass on yourself")
		}
		return insertInteraction(ctx, tx, actorID, model.UserTarget(targetID), model.ActionPass, db.now())
	})
}

// SaveTarget bookmarks a user or project. Saving twice is a success.
func (db *DB) SaveTarget(ctx context.Context, actorID string, target model.Target) error {
	if err := target.Validate(); err != nil {
		return apperror.ValidationFailed("target", err.Error())
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertInteraction(ctx, tx, actorID, target, model.ActionSave, db.now())
	})
}

func (db *DB) ListInteractions(ctx context.Context, actorID string) ([]model.Interaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, actor_user_id, target_type, target_id, action, created_at
		 FROM interactions WHERE actor_user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing interactions for %s: %w", actorID, err)
	}
	defer rows.Close()

	out := []model.Interaction{}
	for rows.Next() {
		var i model.Interaction
		if err := rows.Scan(&i.ID, &i.ActorID, &i.Target.Kind, &i.Target.ID, &i.Action, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// ListMatches returns userID's matches, newest first, each with the other
// user's card and the pair's thread.
func (db *DB) ListMatches(ctx context.Context, userID string) ([]model.MatchSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.created_at, t.id, p.user_id, p.full_name, p.headline, p.avatar_url
		 FROM matches m
		 JOIN profiles p ON p.user_id = CASE WHEN m.user_low = ? THEN m.user_high ELSE m.user_low END
		 LEFT JOIN threads t ON t.match_id = m.id
		 WHERE m.user_low = ? OR m.user_high = ?
		 ORDER BY m.created_at DESC, m.id DESC`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing matches for %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.MatchSummary{}
	for rows.Next() {
		var (
			m        model.MatchSummary
			threadID sql.NullString
		)
		if err := rows.Scan(&m.MatchID, &m.CreatedAt, &threadID,
			&m.Other.UserID, &m.Other.FullName, &m.Other.Headline, &m.Other.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning match: %w", err)
		}
		m.ThreadID = threadID.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// eligibility returns sql.ErrNoRows (unwrapped) when the user has no profile.
func eligibility(ctx context.Context, tx *sql.Tx, userID string) (bool, error) {
	var eligible bool
	err := tx.QueryRowContext(ctx,
		`SELECT is_eligible FROM profiles WHERE user_id = ?`, userID,
	).Scan(&eligible)
	if errors.Is(err, sql.ErrNoRows) {
		return false, sql.ErrNoRows
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: reading eligibility for %s: %w", userID, err)
	}
	return eligible, nil
}

func insertInteraction(ctx context.Context, tx *sql.Tx, actorID string, target model.Target, action model.Action, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO interactions (id, actor_user_id, target_type, target_id, action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (actor_user_id, target_type, target_id, action) DO NOTHING`,
		newID(), actorID, string(target.Kind), target.ID, string(action), now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s interaction: %w", action, err)
	}
	return nil
}
