package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/model"
)

const identityColumns = `id, user_id, provider, provider_user_id, handle, profile_url, avatar_url, linked_at`

func scanIdentity(s scanner) (*model.ExternalIdentity, error) {
	var i model.ExternalIdentity
	err := s.Scan(&i.ID, &i.UserID, &i.Provider, &i.ProviderUserID,
		&i.Handle, &i.ProfileURL, &i.AvatarURL, &i.LinkedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// UpsertIdentity links a provider account to a user. Re-linking the same
// account refreshes handle, avatar, profile URL and linked_at. Linking an
// account that belongs to someone else fails with Conflict.
func (db *DB) UpsertIdentity(ctx context.Context, identity *model.ExternalIdentity) error {
	if identity.ID == "" {
		identity.ID = newID()
	}
	identity.LinkedAt = db.now()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM external_identities WHERE provider = ? AND provider_user_id = ?`,
			identity.Provider, identity.ProviderUserID,
		).Scan(&owner)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: checking identity owner: %w", err)
		}
		if owner != "" && owner != identity.UserID {
			return apperror.New(apperror.ErrConflict, apperror.CodeConflict,
				"This GitHub account is already linked to another user")
		}

		// ON CONFLICT(user_id, provider) keeps the original row id, so read
		// it back afterwards.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO external_identities
				(id, user_id, provider, provider_user_id, handle, profile_url, avatar_url, linked_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, provider) DO UPDATE SET
				provider_user_id = excluded.provider_user_id,
				handle           = excluded.handle,
				profile_url      = excluded.profile_url,
				avatar_url       = excluded.avatar_url,
				linked_at        = excluded.linked_at`,
			identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID,
			identity.Handle, identity.ProfileURL, identity.AvatarURL, identity.LinkedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.New(apperror.ErrConflict, apperror.CodeConflict,
					"This GitHub account is already linked to another user")
			}
			return fmt.Errorf("sqlite: upserting identity: %w", err)
		}

		return tx.QueryRowContext(ctx,
			`SELECT id FROM external_identities WHERE user_id = ? AND provider = ?`,
			identity.UserID, identity.Provider,
		).Scan(&identity.ID)
	})
}

func (db *DB) GetIdentity(ctx context.Context, userID, provider string) (*model.ExternalIdentity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM external_identities WHERE user_id = ? AND provider = ?`,
		userID, provider)
	i, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("identity", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting identity for %s: %w", userID, err)
	}
	return i, nil
}

func (db *DB) GetIdentityByProviderID(ctx context.Context, provider, providerUserID string) (*model.ExternalIdentity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM external_identities WHERE provider = ? AND provider_user_id = ?`,
		provider, providerUserID)
	i, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("identity", providerUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting identity %s/%s: %w", provider, providerUserID, err)
	}
	return i, nil
}

// DeleteIdentity unlinks the provider. Deleting a link that doesn't exist is
// not an error.
func (db *DB) DeleteIdentity(ctx context.Context, userID, provider string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM external_identities WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return fmt.Errorf("sqlite: deleting identity for %s: %w", userID, err)
	}
	return nil
}
