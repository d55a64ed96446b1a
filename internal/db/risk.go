package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/sgr/pkg/models"
)

func (db *DB) AddTaskDocument(ctx context.Context, taskID, docType string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO task_documents (id, task_id, doc_type) VALUES (?, ?, ?)`,
		uuid.New().String(), taskID, docType)
	if err != nil {
		return fmt.Errorf("failed to add task document: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) TaskHasDocument(ctx context.Context, taskID, docType string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_documents WHERE task_id = ? AND doc_type = ?`,
		taskID, docType).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check task document: %w", err)
	}
	return n > 0, nil
}

// PresentedTasks returns every task sitting in presentado, oldest
// presentation first.
func (db *DB) PresentedTasks(ctx context.Context) ([]*models.Task, error) {
	return db.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN taxpayers tp ON tp.id = t.taxpayer_id
		JOIN obligations o ON o.id = t.obligation_id
		WHERE t.state = ?
		ORDER BY t.presented_at, t.id`, models.StatePresentado)
}

func (db *DB) AtRiskTasks(ctx context.Context) ([]*models.Task, error) {
	return db.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN taxpayers tp ON tp.id = t.taxpayer_id
		JOIN obligations o ON o.id = t.obligation_id
		WHERE t.at_risk = 1
		ORDER BY t.official_due, t.id`)
}

func (db *DB) SetTaskAtRisk(ctx context.Context, taskID string, atRisk bool) error {
	flag := 0
	if atRisk {
		flag = 1
	}
	res, err := db.ExecContext(ctx, `UPDATE tasks SET at_risk = ? WHERE id = ?`, flag, taskID)
	if err != nil {
		return fmt.Errorf("failed to update at-risk flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}

	db.triggerChange(ctx)
	return nil
}

// SetTaskPresentedAt backdates a presentation timestamp. Exists for catch-up
// imports and tests; normal flow stamps presented_at in UpdateTaskState.
func (db *DB) SetTaskPresentedAt(ctx context.Context, taskID string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE tasks SET presented_at = ? WHERE id = ?`,
		at.UTC().Format("2006-01-02 15:04:05"), taskID)
	if err != nil {
		return fmt.Errorf("failed to set presented_at: %w", err)
	}
	return nil
}
