package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops satisfying any repository interface the build breaks here
// instead of at the wiring site.
var _ repository.Store = (*DB)(nil)

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, created_at, updated_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail looks a user up by normalised email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, created_at, updated_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// FindOrCreateUserByEmail creates the user and its profile row in one
// transaction, so no user is ever observed without a profile.
func (db *DB) FindOrCreateUserByEmail(ctx context.Context, email string) (*model.User, bool, error) {
	var (
		user    model.User
		created bool
	)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id, email, created_at, updated_at FROM users WHERE email = ?`, email,
		).Scan(&user.ID, &user.Email, &user.CreatedAt, &user.UpdatedAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: looking up user by email: %w", err)
		}

		now := db.now()
		user = model.User{ID: newID(), Email: email, CreatedAt: now, UpdatedAt: now}
		if err := insertUser(ctx, tx, &user); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

func insertUser(ctx context.Context, tx *sql.Tx, user *model.User) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, created_at, updated_at) VALUES (?, ?, ?)`,
		user.ID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile for %s: %w", user.ID, err)
	}
	return nil
}

// CreateMagicLink stores a pending sign-in link.
func (db *DB) CreateMagicLink(ctx context.Context, link *model.MagicLink) error {
	if link.ID == "" {
		link.ID = newID()
	}
	link.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO magic_links (id, email, secret_hash, redirect_to, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID, link.Email, link.SecretHash, link.RedirectTo, link.ExpiresAt.UTC(), link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting magic link: %w", err)
	}
	return nil
}

func (db *DB) GetMagicLink(ctx context.Context, id string) (*model.MagicLink, error) {
	var (
		link       model.MagicLink
		consumedAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, secret_hash, redirect_to, expires_at, consumed_at, created_at
		 FROM magic_links WHERE id = ?`, id,
	).Scan(&link.ID, &link.Email, &link.SecretHash, &link.RedirectTo,
		&link.ExpiresAt, &consumedAt, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("magic link", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting magic link %s: %w", id, err)
	}
	if consumedAt.Valid {
		link.ConsumedAt = &consumedAt.Time
	}
	return &link, nil
}

// ConsumeMagicLink is a compare-and-set on consumed_at.
func (db *DB) ConsumeMagicLink(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE magic_links SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: consuming magic link %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: consuming magic link %s: %w", id, err)
	}
	if n == 0 {
		return apperror.New(apperror.ErrUnauthenticated, apperror.CodeLinkExpired,
			"This sign-in link has already been used or has expired")
	}
	return nil
}
