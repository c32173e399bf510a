package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/model"
)

// ListPortfolio returns a user's items in display order.
func (db *DB) ListPortfolio(ctx context.Context, userID string) ([]model.PortfolioItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, title, description, url, item_type, external_id, metadata,
			project_type, tags, display_order, is_featured, created_at
		 FROM portfolio_items WHERE user_id = ?
		 ORDER BY display_order ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing portfolio for %s: %w", userID, err)
	}
	defer rows.Close()

	items := []model.PortfolioItem{}
	for rows.Next() {
		var (
			item       model.PortfolioItem
			externalID sql.NullString
			metadata   sql.NullString
			tags       string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Description, &item.URL,
			&item.ItemType, &externalID, &metadata, &item.ProjectType, &tags,
			&item.DisplayOrder, &item.IsFeatured, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning portfolio item: %w", err)
		}
		if item.Tags, err = decodeList(tags); err != nil {
			return nil, err
		}
		if externalID.Valid {
			item.ExternalID = &externalID.String
		}
		if metadata.Valid && metadata.String != "" {
			var m model.RepoMetadata
			if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
				return nil, fmt.Errorf("sqlite: decoding metadata for item %s: %w", item.ID, err)
			}
			item.Metadata = &m
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertPortfolioItems appends items after the user's existing ones. All or
// nothing: one duplicate rolls back the whole batch.
func (db *DB) InsertPortfolioItems(ctx context.Context, userID string, items []model.PortfolioItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(display_order) + 1, 0) FROM portfolio_items WHERE user_id = ?`, userID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("sqlite: reading display order: %w", err)
		}

		for i := range items {
			items[i].UserID = userID
			items[i].DisplayOrder = next + i
			if err := insertPortfolioItem(ctx, tx, &items[i], db.now()); err != nil {
				if isUniqueViolation(err) {
					return apperror.New(apperror.ErrConflict, apperror.CodeAlreadyImported,
						"One or more repositories have already been imported")
				}
				return err
			}
		}
		return nil
	})
}

// ReplaceManualItems swaps the user's manual items for items. Imported
// repositories are left alone. Each item keeps the DisplayOrder and
// IsFeatured it arrives with.
func (db *DB) ReplaceManualItems(ctx context.Context, userID string, items []model.PortfolioItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM portfolio_items WHERE user_id = ? AND item_type = ?`,
			userID, model.ItemTypeManual,
		); err != nil {
			return fmt.Errorf("sqlite: clearing manual items for %s: %w", userID, err)
		}

		for i := range items {
			items[i].UserID = userID
			items[i].ItemType = model.ItemTypeManual
			items[i].ExternalID = nil
			items[i].Metadata = nil
			if err := insertPortfolioItem(ctx, tx, &items[i], db.now()); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePortfolioItem only deletes items the user owns; anything else looks
// like a missing item.
func (db *DB) DeletePortfolioItem(ctx context.Context, userID, itemID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM portfolio_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting portfolio item %s: %w", itemID, err)
	}
	return expectRow(res, "portfolio item", itemID)
}

func insertPortfolioItem(ctx context.Context, tx *sql.Tx, item *model.PortfolioItem, now time.Time) error {
	if item.ID == "" {
		item.ID = newID()
	}
	item.CreatedAt = now

	var metadata sql.NullString
	if item.Metadata != nil {
		b, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: encoding metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO portfolio_items
			(id, user_id, title, description, url, item_type, external_id, metadata,
			 project_type, tags, display_order, is_featured, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Title, item.Description, item.URL, item.ItemType,
		item.ExternalID, metadata, item.ProjectType, encodeList(item.Tags),
		item.DisplayOrder, boolToInt(item.IsFeatured), item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("sqlite: inserting portfolio item %q: %w", item.Title, err)
	}
	return nil
}
