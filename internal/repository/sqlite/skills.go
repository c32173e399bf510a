package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/model"
)

// ListSkills returns the whole catalog grouped by category.
func (db *DB) ListSkills(ctx context.Context) ([]model.Skill, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, category, created_at FROM skills ORDER BY category ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing skills: %w", err)
	}
	defer rows.Close()

	skills := []model.Skill{}
	for rows.Next() {
		var s model.Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning skill: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// CreateSkill adds a catalog entry. A name already in the catalog (in any
// case) is a Conflict.
func (db *DB) CreateSkill(ctx context.Context, skill *model.Skill) error {
	skill.ID = newID()
	skill.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO skills (id, name, category, created_at) VALUES (?, ?, ?, ?)`,
		skill.ID, skill.Name, skill.Category, skill.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.New(apperror.ErrConflict, apperror.CodeSkillExists, "A skill with that name already exists")
		}
		return fmt.Errorf("sqlite: inserting skill %q: %w", skill.Name, err)
	}
	return nil
}

// ListUserSkills returns a user's skills in the same order as the catalog.
func (db *DB) ListUserSkills(ctx context.Context, userID string) ([]model.UserSkill, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.id, s.name, s.category, us.proficiency_level, us.years_of_experience
		 FROM user_skills us JOIN skills s ON s.id = us.skill_id
		 WHERE us.user_id = ?
		 ORDER BY s.category ASC, s.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing skills for %s: %w", userID, err)
	}
	defer rows.Close()

	skills := []model.UserSkill{}
	for rows.Next() {
		var (
			s     model.UserSkill
			years sql.NullInt64
		)
		if err := rows.Scan(&s.SkillID, &s.Name, &s.Category, &s.ProficiencyLevel, &years); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user skill: %w", err)
		}
		if years.Valid {
			y := int(years.Int64)
			s.YearsOfExperience = &y
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// ReplaceUserSkills swaps the user's whole skill set for skills in one
// transaction. A skill id missing from the catalog rolls everything back
// with a VALIDATION_FAILED error on "skills".
func (db *DB) ReplaceUserSkills(ctx context.Context, userID string, skills []model.UserSkill) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_skills WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("sqlite: clearing skills for %s: %w", userID, err)
		}

		now := db.now()
		for _, s := range skills {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_skills (user_id, skill_id, proficiency_level, years_of_experience, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				userID, s.SkillID, s.ProficiencyLevel, s.YearsOfExperience, now,
			)
			switch {
			case err == nil:
			case isForeignKeyViolation(err):
				return apperror.ValidationFailed("skills", "Unknown skill")
			case isUniqueViolation(err):
				return apperror.ValidationFailed("skills", "Each skill can only be listed once")
			default:
				return fmt.Errorf("sqlite: inserting skill %s for %s: %w", s.SkillID, userID, err)
			}
		}
		return nil
	})
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY constraint
// failure.
func isForeignKeyViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
