package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/gating"
	"github.com/sakif/buildermatch/internal/model"
)

const profileColumns = `user_id, full_name, headline, bio, location, avatar_url,
	github_url, linkedin_url, twitter_url, website_url,
	timezone, availability_hours_per_week, work_modes, iteration_style,
	stack_focus, primary_tools, want_to_build_next,
	allow_messages, is_eligible, created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*model.Profile, error) {
	var (
		p                                   model.Profile
		workModes, stackFocus, primaryTools string
	)
	err := s.Scan(
		&p.UserID, &p.FullName, &p.Headline, &p.Bio, &p.Location, &p.AvatarURL,
		&p.GitHubURL, &p.LinkedInURL, &p.TwitterURL, &p.WebsiteURL,
		&p.Timezone, &p.AvailabilityHoursPerWeek, &workModes, &p.IterationStyle,
		&stackFocus, &primaryTools, &p.WantToBuildNext,
		&p.AllowMessages, &p.IsEligible, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.WorkModes, err = decodeList(workModes); err != nil {
		return nil, err
	}
	if p.StackFocus, err = decodeList(stackFocus); err != nil {
		return nil, err
	}
	if p.PrimaryTools, err = decodeList(primaryTools); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}
	return p, nil
}

// UpdateBasics overwrites the free-text profile fields.
func (db *DB) UpdateBasics(ctx context.Context, userID string, b model.ProfileBasics) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, headline = ?, bio = ?, location = ?, avatar_url = ?,
			github_url = ?, linkedin_url = ?, twitter_url = ?, website_url = ?, updated_at = ?
		 WHERE user_id = ?`,
		b.FullName, b.Headline, b.Bio, b.Location, b.AvatarURL,
		b.GitHubURL, b.LinkedInURL, b.TwitterURL, b.WebsiteURL, db.now(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile basics %s: %w", userID, err)
	}
	return expectRow(res, "profile", userID)
}

// SaveBuilderProfile writes the onboarding answers in a single UPDATE.
func (db *DB) SaveBuilderProfile(ctx context.Context, userID string, p model.BuilderProfile) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET timezone = ?, availability_hours_per_week = ?, work_modes = ?,
			iteration_style = ?, stack_focus = ?, primary_tools = ?, want_to_build_next = ?,
			allow_messages = ?, updated_at = ?
		 WHERE user_id = ?`,
		p.Timezone, p.AvailabilityHoursPerWeek, encodeList(p.WorkModes),
		p.IterationStyle, encodeList(p.StackFocus), encodeList(p.PrimaryTools), p.WantToBuildNext,
		boolToInt(p.AllowMessages), db.now(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving builder profile %s: %w", userID, err)
	}
	return expectRow(res, "profile", userID)
}

// SyncIdentityProfile copies provider data onto the profile. Avatar and
// GitHub URL always follow the provider; name, bio and location are only
// filled in when the provider has a value, so a user's own edits survive a
// provider account with blank fields.
func (db *DB) SyncIdentityProfile(ctx context.Context, userID string, s model.IdentitySync) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET
			avatar_url = ?,
			github_url = ?,
			full_name  = CASE WHEN ? <> '' THEN ? ELSE full_name END,
			bio        = CASE WHEN ? <> '' THEN ? ELSE bio END,
			location   = CASE WHEN ? <> '' THEN ? ELSE location END,
			updated_at = ?
		 WHERE user_id = ?`,
		s.AvatarURL, s.GitHubURL,
		s.FullName, s.FullName,
		s.Bio, s.Bio,
		s.Location, s.Location,
		db.now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: syncing profile %s: %w", userID, err)
	}
	return expectRow(res, "profile", userID)
}

// RecomputeEligibility reads the inputs and writes the flag in one
// transaction so a concurrent import can't leave a stale value behind.
func (db *DB) RecomputeEligibility(ctx context.Context, userID string) (bool, error) {
	var eligible bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var identities, items int
		err := tx.QueryRowContext(ctx,
			`SELECT
				(SELECT COUNT(*) FROM external_identities WHERE user_id = ? AND provider = ?),
				(SELECT COUNT(*) FROM portfolio_items WHERE user_id = ?)`,
			userID, model.ProviderGitHub, userID,
		).Scan(&identities, &items)
		if err != nil {
			return fmt.Errorf("sqlite: reading eligibility inputs for %s: %w", userID, err)
		}

		eligible = gating.ComputeEligibility(identities > 0, items)

		res, err := tx.ExecContext(ctx,
			`UPDATE profiles SET is_eligible = ?, updated_at = ? WHERE user_id = ?`,
			boolToInt(eligible), db.now(), userID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: writing eligibility for %s: %w", userID, err)
		}
		return expectRow(res, "profile", userID)
	})
	return eligible, err
}

// ListFeedCandidates returns every eligible profile the viewer has not passed
// on, with its portfolio size. Ordering is left to the feed package.
func (db *DB) ListFeedCandidates(ctx context.Context, viewerID string) ([]model.FeedCard, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.user_id, p.full_name, p.headline, p.bio, p.location, p.avatar_url,
			p.github_url, p.linkedin_url, p.timezone, p.work_modes, p.iteration_style,
			p.stack_focus, p.allow_messages, u.created_at,
			(SELECT COUNT(*) FROM portfolio_items pi WHERE pi.user_id = p.user_id)
		 FROM profiles p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.is_eligible = 1
		   AND NOT EXISTS (
			SELECT 1 FROM interactions i
			WHERE i.actor_user_id = ? AND i.target_type = 'user'
			  AND i.target_id = p.user_id AND i.action = 'pass'
		   )`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing feed candidates: %w", err)
	}
	defer rows.Close()

	cards := []model.FeedCard{}
	for rows.Next() {
		var (
			c                     model.FeedCard
			workModes, stackFocus string
		)
		if err := rows.Scan(
			&c.UserID, &c.FullName, &c.Headline, &c.Bio, &c.Location, &c.AvatarURL,
			&c.GitHubURL, &c.LinkedInURL, &c.Timezone, &workModes, &c.IterationStyle,
			&stackFocus, &c.AllowMessages, &c.JoinedAt, &c.PortfolioCount,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning feed candidate: %w", err)
		}
		if c.WorkModes, err = decodeList(workModes); err != nil {
			return nil, err
		}
		if c.StackFocus, err = decodeList(stackFocus); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// expectRow turns "0 rows affected" into NotFound.
func expectRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
