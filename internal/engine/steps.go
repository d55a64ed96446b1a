package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

// Assigner instantiates process steps onto tasks and routes each step to a
// responsible team member by tier.
type Assigner struct {
	db  *db.DB
	log *slog.Logger
}

func NewAssigner(database *db.DB, logger *slog.Logger) *Assigner {
	return &Assigner{db: database, log: logger}
}

type StepInstantiationResult struct {
	Success      bool   `json:"success"`
	StepsCreated int    `json:"steps_created"`
	Note         string `json:"note,omitempty"`
	Err          string `json:"error,omitempty"`
}

// InstantiateSteps copies a process's active step templates onto a task.
// A task that already has any step is left alone: steps are created once
// and never regenerated.
func (a *Assigner) InstantiateSteps(ctx context.Context, taskID, processID string) (*StepInstantiationResult, error) {
	exists, err := a.db.StepsExist(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if exists {
		return &StepInstantiationResult{
			Success: true,
			Note:    fmt.Sprintf("task %s already has steps", taskID),
		}, nil
	}

	templates, err := a.db.ActiveProcessSteps(ctx, processID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return &StepInstantiationResult{
			Err: fmt.Sprintf("process %s has no active steps", processID),
		}, nil
	}

	steps := make([]*models.TaskStep, 0, len(templates))
	for _, t := range templates {
		steps = append(steps, &models.TaskStep{
			TaskID:        taskID,
			ProcessStepID: t.ID,
			Title:         t.Name,
			Seq:           t.Seq,
			WeightPct:     t.WeightPct,
			Tier:          t.Tier,
		})
	}

	if err := a.db.CreateTaskSteps(ctx, steps); err != nil {
		return nil, err
	}

	a.log.Debug("instantiated steps", "task", taskID, "process", processID, "count", len(steps))
	return &StepInstantiationResult{Success: true, StepsCreated: len(steps)}, nil
}

type AssignmentResult struct {
	Success        bool   `json:"success"`
	AssignedUserID string `json:"assigned_user_id,omitempty"`
	Err            string `json:"error,omitempty"`
}

// AssignStepResponsible routes a step to the team member holding the tier's
// role. The titular member wins over a substitute; with several candidates
// of the same standing the lowest user id wins, so repeated runs pick the
// same person.
func (a *Assigner) AssignStepResponsible(ctx context.Context, stepID, teamID string, tier models.Tier) (*AssignmentResult, error) {
	role, ok := tier.Role()
	if !ok {
		return &AssignmentResult{Err: fmt.Sprintf("unknown tier %q", tier)}, nil
	}

	members, err := a.db.TeamMembersByRole(ctx, teamID, role)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return &AssignmentResult{
			Err: fmt.Sprintf("no active %s member on team %s", role, teamID),
		}, nil
	}

	userID := members[0].UserID
	if err := a.db.UpdateStepAssignee(ctx, stepID, userID); err != nil {
		return nil, err
	}

	return &AssignmentResult{Success: true, AssignedUserID: userID}, nil
}

// ListTaskSteps returns a task's steps with assignee details, in order.
func (a *Assigner) ListTaskSteps(ctx context.Context, taskID string) ([]models.StepView, error) {
	return a.db.ListTaskSteps(ctx, taskID)
}
