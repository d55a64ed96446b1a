package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/sgr/pkg/models"
)

// InsertTaskEvent appends an audit record. ID and OccurredAt are filled
// in when empty.
func (db *DB) InsertTaskEvent(ctx context.Context, event *models.TaskEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO task_events (id, task_id, event_type, actor_id, old_state, new_state, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.TaskID, event.EventType, event.ActorID, event.OldState, event.NewState, event.Detail)
	if err != nil {
		return fmt.Errorf("failed to insert task event: %w", err)
	}
	return nil
}

// ListTaskEvents returns the audit trail for a task, oldest first.
func (db *DB) ListTaskEvents(ctx context.Context, taskID string) ([]*models.TaskEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, task_id, event_type, actor_id, old_state, new_state, detail, occurred_at
		FROM task_events
		WHERE task_id = ?
		ORDER BY occurred_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task events: %w", err)
	}
	defer rows.Close()

	var events []*models.TaskEvent
	for rows.Next() {
		var e models.TaskEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.TaskID, &e.EventType, &e.ActorID, &e.OldState, &e.NewState, &detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan task event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
