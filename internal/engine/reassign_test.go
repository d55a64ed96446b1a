package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

// seedWorkload gives u-c an active task with a step plus a presented task
// that must never move.
func seedWorkload(t *testing.T, database *db.DB) {
	t.Helper()

	exec(t, database, `INSERT INTO tasks (id, client_id, taxpayer_id, obligation_id, fiscal_year, period, official_due, internal_due, state, assignee_id)
		VALUES ('t1', 'c1', 'tp1', 'ob-iva', 2025, '2025-07', '2025-08-17', '2025-08-14', 'en_curso', 'u-c')`)
	exec(t, database, `INSERT INTO tasks (id, client_id, taxpayer_id, obligation_id, fiscal_year, period, official_due, internal_due, state, assignee_id)
		VALUES ('t2', 'c1', 'tp1', 'ob-iva', 2025, '2025-06', '2025-07-17', '2025-07-14', 'presentado', 'u-c')`)
	exec(t, database, `INSERT INTO task_steps (id, task_id, process_step_id, title, seq, weight_pct, tier, assignee_id)
		VALUES ('st1', 't1', 'ps1', 'Recopilar información', 1, 40, 'C', 'u-c')`)
	exec(t, database, `INSERT INTO task_steps (id, task_id, process_step_id, title, seq, weight_pct, tier, assignee_id)
		VALUES ('st2', 't2', 'ps1', 'Recopilar información', 1, 40, 'C', 'u-c')`)
}

func TestReassignToSubstitute(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	seedWorkload(t, database)
	r := NewReassigner(database, testLogger())
	ctx := context.Background()

	result, err := r.Reassign(ctx, "u-c", "u-c-sub")
	if err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got errors: %v", result.Errors)
	}
	if result.Reassigned != 2 {
		t.Fatalf("Expected task and step moved, got %d", result.Reassigned)
	}

	task, err := database.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if task.AssigneeID == nil || *task.AssigneeID != "u-c-sub" {
		t.Errorf("Expected t1 on u-c-sub, got %v", task.AssigneeID)
	}

	// The presented task stays put.
	task, _ = database.GetTask(ctx, "t2")
	if task.AssigneeID == nil || *task.AssigneeID != "u-c" {
		t.Errorf("Expected t2 untouched, got %v", task.AssigneeID)
	}

	step, err := database.GetTaskStep(ctx, "st1")
	if err != nil {
		t.Fatalf("Failed to get step: %v", err)
	}
	if step.AssigneeID == nil || *step.AssigneeID != "u-c-sub" {
		t.Errorf("Expected st1 on u-c-sub, got %v", step.AssigneeID)
	}
	step, _ = database.GetTaskStep(ctx, "st2")
	if step.AssigneeID == nil || *step.AssigneeID != "u-c" {
		t.Errorf("Expected step on presented task untouched, got %v", step.AssigneeID)
	}

	events, err := database.ListTaskEvents(ctx, "t1")
	if err != nil {
		t.Fatalf("Failed to list events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != models.EventReasignacionAuto {
		t.Errorf("Expected one reasignacion event on t1, got %+v", events)
	}
	if events, _ := database.ListTaskEvents(ctx, "t2"); len(events) != 0 {
		t.Errorf("Expected no events on t2, got %d", len(events))
	}
}

func TestReassignInactiveSubstitute(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	seedWorkload(t, database)
	exec(t, database, `UPDATE users SET active = 0 WHERE id = 'u-c-sub'`)
	r := NewReassigner(database, testLogger())
	ctx := context.Background()

	result, err := r.Reassign(ctx, "u-c", "u-c-sub")
	if err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}
	if result.Success || result.Reassigned != 0 {
		t.Fatalf("Expected nothing moved, got %+v", result)
	}
	if !strings.Contains(result.Errors[0], "not found or inactive") {
		t.Errorf("Unexpected error %q", result.Errors[0])
	}

	task, _ := database.GetTask(ctx, "t1")
	if task.AssigneeID == nil || *task.AssigneeID != "u-c" {
		t.Errorf("Expected t1 untouched after failed resolution, got %v", task.AssigneeID)
	}
}

func TestReassignFallsBackToTeamLead(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	seedWorkload(t, database)
	r := NewReassigner(database, testLogger())
	ctx := context.Background()

	result, err := r.Reassign(ctx, "u-c", "")
	if err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}
	if !result.Success || result.Reassigned != 2 {
		t.Fatalf("Expected fallback to lead, got %+v", result)
	}

	task, _ := database.GetTask(ctx, "t1")
	if task.AssigneeID == nil || *task.AssigneeID != "u-lead" {
		t.Errorf("Expected t1 on team lead, got %v", task.AssigneeID)
	}
}

func TestReassignNoTargetAvailable(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	exec(t, database, `INSERT INTO users (id, name, email) VALUES ('u-loose', 'Sin Equipo', 'loose@example.com')`)
	r := NewReassigner(database, testLogger())

	result, err := r.Reassign(context.Background(), "u-loose", "")
	if err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}
	if result.Success {
		t.Fatal("Expected resolution failure")
	}
	if !strings.Contains(result.Errors[0], "no team lead found") {
		t.Errorf("Unexpected error %q", result.Errors[0])
	}
}

func TestProcessActiveAbsences(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	seedWorkload(t, database)
	exec(t, database, `INSERT INTO absences (id, user_id, substitute_id, starts_on, ends_on)
		VALUES ('ab1', 'u-c', 'u-c-sub', '2025-08-10', '2025-08-20')`)
	exec(t, database, `INSERT INTO absences (id, user_id, starts_on, ends_on)
		VALUES ('ab2', 'u-a', '2025-09-01', '2025-09-05')`)
	r := NewReassigner(database, testLogger())
	ctx := context.Background()

	result, err := r.ProcessActiveAbsences(ctx, "2025-08-15")
	if err != nil {
		t.Fatalf("Failed to sweep absences: %v", err)
	}
	if result.Processed != 1 || result.Reassigned != 2 {
		t.Fatalf("Expected one absence moving two records, got %+v", result)
	}

	// A second sweep finds no remaining work for the absent user.
	result, err = r.ProcessActiveAbsences(ctx, "2025-08-15")
	if err != nil {
		t.Fatalf("Failed to re-sweep: %v", err)
	}
	if result.Processed != 1 || result.Reassigned != 0 {
		t.Errorf("Expected idempotent sweep, got %+v", result)
	}
}
