package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/sgr/pkg/models"
)

func (db *DB) CreateAbsence(ctx context.Context, a *models.Absence) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO absences (id, user_id, substitute_id, kind, starts_on, ends_on, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.SubstituteID, a.Kind, a.StartsOn, a.EndsOn, a.Active)
	if err != nil {
		return fmt.Errorf("failed to create absence: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ActiveAbsencesOn returns every active absence whose window covers the
// given date (YYYY-MM-DD, inclusive bounds).
func (db *DB) ActiveAbsencesOn(ctx context.Context, date string) ([]*models.Absence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, substitute_id, kind, starts_on, ends_on, active
		FROM absences
		WHERE active = 1 AND starts_on <= ? AND ends_on >= ?
		ORDER BY user_id, starts_on`, date, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var absences []*models.Absence
	for rows.Next() {
		var a models.Absence
		if err := rows.Scan(&a.ID, &a.UserID, &a.SubstituteID, &a.Kind, &a.StartsOn, &a.EndsOn, &a.Active); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		absences = append(absences, &a)
	}
	return absences, rows.Err()
}

// UserAbsenceOn returns the user's absence covering the given date, or nil.
// With overlapping windows the earliest-starting one wins.
func (db *DB) UserAbsenceOn(ctx context.Context, userID, date string) (*models.Absence, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, substitute_id, kind, starts_on, ends_on, active
		FROM absences
		WHERE user_id = ? AND active = 1 AND starts_on <= ? AND ends_on >= ?
		ORDER BY starts_on, id
		LIMIT 1`, userID, date, date)

	var a models.Absence
	err := row.Scan(&a.ID, &a.UserID, &a.SubstituteID, &a.Kind, &a.StartsOn, &a.EndsOn, &a.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get absence: %w", err)
	}
	return &a, nil
}
