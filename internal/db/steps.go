package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/sgr/pkg/models"
)

// StepsExist reports whether any step has been instantiated for the task.
func (db *DB) StepsExist(ctx context.Context, taskID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_steps WHERE task_id = ?`, taskID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existing steps: %w", err)
	}
	return n > 0, nil
}

// CreateTaskSteps bulk-inserts the steps in one transaction. Missing IDs are
// generated.
func (db *DB) CreateTaskSteps(ctx context.Context, steps []*models.TaskStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range steps {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_steps (id, task_id, process_step_id, title, seq, weight_pct, tier, completed, assignee_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		`, s.ID, s.TaskID, s.ProcessStepID, s.Title, s.Seq, s.WeightPct, s.Tier, s.AssigneeID)
		if err != nil {
			return fmt.Errorf("failed to create step %q: %w", s.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) GetTaskStep(ctx context.Context, id string) (*models.TaskStep, error) {
	query := `
		SELECT id, task_id, process_step_id, title, seq, weight_pct, tier, completed, completed_at, assignee_id
		FROM task_steps
		WHERE id = ?
	`
	s := &models.TaskStep{}
	var completed int
	var tier sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.TaskID, &s.ProcessStepID, &s.Title, &s.Seq, &s.WeightPct, &tier,
		&completed, &s.CompletedAt, &s.AssigneeID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task step: %w", err)
	}
	if tier.Valid {
		t := models.Tier(tier.String)
		s.Tier = &t
	}
	s.Completed = completed == 1
	return s, nil
}

// ListTaskSteps returns a task's steps with their assignees, in step order.
func (db *DB) ListTaskSteps(ctx context.Context, taskID string) ([]models.StepView, error) {
	query := `
		SELECT s.id, s.task_id, s.process_step_id, s.title, s.seq, s.weight_pct, s.tier,
		       s.completed, s.completed_at, s.assignee_id,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM task_steps s
		LEFT JOIN users u ON u.id = s.assignee_id
		WHERE s.task_id = ?
		ORDER BY s.seq
	`
	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task steps: %w", err)
	}
	defer rows.Close()

	var views []models.StepView
	for rows.Next() {
		var v models.StepView
		var completed int
		var tier sql.NullString
		err := rows.Scan(
			&v.ID, &v.TaskID, &v.ProcessStepID, &v.Title, &v.Seq, &v.WeightPct, &tier,
			&completed, &v.CompletedAt, &v.AssigneeID,
			&v.AssigneeName, &v.AssigneeEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if tier.Valid {
			t := models.Tier(tier.String)
			v.Tier = &t
		}
		v.Completed = completed == 1
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return views, nil
}

// ActiveStepsFor returns steps assigned to the user whose parent task is
// still in an active state.
func (db *DB) ActiveStepsFor(ctx context.Context, userID string) ([]*models.TaskStep, error) {
	query := `
		SELECT s.id, s.task_id, s.process_step_id, s.title, s.seq, s.weight_pct, s.tier,
		       s.completed, s.completed_at, s.assignee_id
		FROM task_steps s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.assignee_id = ? AND t.state IN (` + activeStatePlaceholders() + `)
		ORDER BY s.task_id, s.seq
	`
	args := []any{userID}
	for _, st := range models.ActiveStates() {
		args = append(args, st)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.TaskStep
	for rows.Next() {
		s := &models.TaskStep{}
		var completed int
		var tier sql.NullString
		err := rows.Scan(
			&s.ID, &s.TaskID, &s.ProcessStepID, &s.Title, &s.Seq, &s.WeightPct, &tier,
			&completed, &s.CompletedAt, &s.AssigneeID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if tier.Valid {
			t := models.Tier(tier.String)
			s.Tier = &t
		}
		s.Completed = completed == 1
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return steps, nil
}

// UpdateStepAssignee moves responsibility for one step.
func (db *DB) UpdateStepAssignee(ctx context.Context, stepID, userID string) error {
	res, err := db.ExecContext(ctx, `UPDATE task_steps SET assignee_id = ? WHERE id = ?`, userID, stepID)
	if err != nil {
		return fmt.Errorf("failed to update step assignee: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task step not found: %s", stepID)
	}

	db.triggerChange(ctx)
	return nil
}

// CompleteStep marks a step done and stamps the completion time.
func (db *DB) CompleteStep(ctx context.Context, stepID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE task_steps
		SET completed = 1, completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND completed = 0
	`, stepID)
	if err != nil {
		return fmt.Errorf("failed to complete step: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task step not found or already completed: %s", stepID)
	}

	db.triggerChange(ctx)
	return nil
}

// TaskProgress returns the weighted completion percentage of a task, summing
// the weights of its completed steps.
func (db *DB) TaskProgress(ctx context.Context, taskID string) (int, error) {
	var pct int
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN completed = 1 THEN weight_pct ELSE 0 END), 0)
		FROM task_steps
		WHERE task_id = ?
	`, taskID).Scan(&pct)
	if err != nil {
		return 0, fmt.Errorf("failed to compute task progress: %w", err)
	}
	return pct, nil
}
