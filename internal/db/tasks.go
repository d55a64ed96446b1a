package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ldi/sgr/pkg/models"
)

const taskColumns = `
	t.id, t.client_id, t.taxpayer_id, t.obligation_id, t.fiscal_year, t.period,
	t.official_due, t.internal_due, t.state, t.risk, t.priority, t.at_risk,
	t.assignee_id, t.reviewer_id, t.presented_at, t.created_at, t.updated_at,
	tp.rfc, o.short_name
`

// CreateTaskIfAbsent inserts the task unless one already exists for the same
// (taxpayer, obligation, period) tuple. The uniqueness constraint resolves
// the race between concurrent generator runs; a conflict reports created =
// false, never an error.
func (db *DB) CreateTaskIfAbsent(ctx context.Context, t *models.Task) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO tasks (id, client_id, taxpayer_id, obligation_id, fiscal_year, period,
		                   official_due, internal_due, state, risk, priority, assignee_id, reviewer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (taxpayer_id, obligation_id, period) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(ctx, query,
		t.ID, t.ClientID, t.TaxpayerID, t.ObligationID, t.FiscalYear, t.Period,
		t.OfficialDue, t.InternalDue, t.State, t.Risk, t.Priority, t.AssigneeID, t.ReviewerID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create task: %w", err)
	}

	db.triggerChange(ctx)
	return true, nil
}

// TaskExists reports whether a task exists for the generation key.
func (db *DB) TaskExists(ctx context.Context, taxpayerID, obligationID, period string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE taxpayer_id = ? AND obligation_id = ? AND period = ?`,
		taxpayerID, obligationID, period,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return n > 0, nil
}

func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN taxpayers tp ON tp.id = t.taxpayer_id
		JOIN obligations o ON o.id = t.obligation_id
		WHERE t.id = ?
	`
	t := &models.Task{}
	var atRisk int
	err := db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.ClientID, &t.TaxpayerID, &t.ObligationID, &t.FiscalYear, &t.Period,
		&t.OfficialDue, &t.InternalDue, &t.State, &t.Risk, &t.Priority, &atRisk,
		&t.AssigneeID, &t.ReviewerID, &t.PresentedAt, &t.CreatedAt, &t.UpdatedAt,
		&t.TaxpayerRFC, &t.ObligationName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	t.AtRisk = atRisk == 1
	return t, nil
}

// TaskFilter narrows ListTasks. Zero values are ignored.
type TaskFilter struct {
	Period     string
	State      models.TaskState
	AssigneeID string
}

func (db *DB) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN taxpayers tp ON tp.id = t.taxpayer_id
		JOIN obligations o ON o.id = t.obligation_id
		WHERE 1=1
	`
	args := []any{}

	if filter.Period != "" {
		query += " AND t.period = ?"
		args = append(args, filter.Period)
	}
	if filter.State != "" {
		query += " AND t.state = ?"
		args = append(args, filter.State)
	}
	if filter.AssigneeID != "" {
		query += " AND t.assignee_id = ?"
		args = append(args, filter.AssigneeID)
	}

	query += " ORDER BY t.internal_due, tp.rfc"

	return db.queryTasks(ctx, query, args...)
}

// ActiveTasksFor returns the user's tasks in a non-terminal state.
func (db *DB) ActiveTasksFor(ctx context.Context, userID string) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN taxpayers tp ON tp.id = t.taxpayer_id
		JOIN obligations o ON o.id = t.obligation_id
		WHERE t.assignee_id = ? AND t.state IN (` + activeStatePlaceholders() + `)
		ORDER BY t.internal_due
	`
	args := []any{userID}
	for _, s := range models.ActiveStates() {
		args = append(args, s)
	}
	return db.queryTasks(ctx, query, args...)
}

func activeStatePlaceholders() string {
	return strings.TrimSuffix(strings.Repeat("?, ", len(models.ActiveStates())), ", ")
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{}
		var atRisk int
		err := rows.Scan(
			&t.ID, &t.ClientID, &t.TaxpayerID, &t.ObligationID, &t.FiscalYear, &t.Period,
			&t.OfficialDue, &t.InternalDue, &t.State, &t.Risk, &t.Priority, &atRisk,
			&t.AssigneeID, &t.ReviewerID, &t.PresentedAt, &t.CreatedAt, &t.UpdatedAt,
			&t.TaxpayerRFC, &t.ObligationName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.AtRisk = atRisk == 1
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tasks, nil
}

// UpdateTaskAssignee moves responsibility for one task.
func (db *DB) UpdateTaskAssignee(ctx context.Context, taskID, userID string) error {
	res, err := db.ExecContext(ctx, `UPDATE tasks SET assignee_id = ? WHERE id = ?`, userID, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task assignee: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}

	db.triggerChange(ctx)
	return nil
}

// UpdateTaskState transitions a task, validating the move and recording a
// cambio_estado event. Transitioning into presentado stamps presented_at.
func (db *DB) UpdateTaskState(ctx context.Context, id string, state models.TaskState, actorID *string) error {
	if !state.Valid() {
		return fmt.Errorf("unknown task state: %s", state)
	}

	current, err := db.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("task not found: %s", id)
	}

	if err := validateStateTransition(current.State, state); err != nil {
		return err
	}

	query := `UPDATE tasks SET state = ?`
	args := []any{state}
	if state == models.StatePresentado {
		query += `, presented_at = CURRENT_TIMESTAMP`
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update task state: %w", err)
	}

	old := current.State
	if err := db.InsertTaskEvent(ctx, &models.TaskEvent{
		TaskID:    id,
		EventType: models.EventCambioEstado,
		ActorID:   actorID,
		OldState:  &old,
		NewState:  &state,
	}); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func validateStateTransition(from, to models.TaskState) error {
	if from == to {
		return nil
	}

	allowed := map[models.TaskState][]models.TaskState{
		models.StatePendiente:          {models.StateEnCurso, models.StateBloqueadoCliente},
		models.StateEnCurso:            {models.StatePendiente, models.StatePendienteEvidencia, models.StateEnValidacion, models.StateBloqueadoCliente},
		models.StatePendienteEvidencia: {models.StateEnCurso, models.StateEnValidacion},
		models.StateEnValidacion:       {models.StateEnCurso, models.StatePresentado, models.StateRechazado},
		models.StateBloqueadoCliente:   {models.StatePendiente, models.StateEnCurso},
		models.StatePresentado:         {models.StatePagado, models.StateCerrado},
		models.StatePagado:             {models.StateCerrado},
	}

	for _, s := range allowed[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

// PeriodSummary aggregates a period's tasks by state and by team.
type PeriodSummary struct {
	Period  string         `json:"period"`
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
	ByTeam  map[string]int `json:"by_team"`
}

func (db *DB) SummarizePeriod(ctx context.Context, period string) (*PeriodSummary, error) {
	query := `
		SELECT t.state, COALESCE(te.name, 'Sin equipo')
		FROM tasks t
		JOIN taxpayers tp ON tp.id = t.taxpayer_id
		LEFT JOIN teams te ON te.id = tp.team_id
		WHERE t.period = ?
	`
	rows, err := db.QueryContext(ctx, query, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query period summary: %w", err)
	}
	defer rows.Close()

	summary := &PeriodSummary{
		Period:  period,
		ByState: make(map[string]int),
		ByTeam:  make(map[string]int),
	}
	for rows.Next() {
		var state, team string
		if err := rows.Scan(&state, &team); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.Total++
		summary.ByState[state]++
		summary.ByTeam[team]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return summary, nil
}
