package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/sgr/pkg/models"
)

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, role, active FROM users WHERE id = ?`, id)

	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, email, role, active FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
