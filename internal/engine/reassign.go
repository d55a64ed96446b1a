package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

// Reassigner moves an absent collaborator's active work to a substitute, or
// failing that to their team lead.
type Reassigner struct {
	db  *db.DB
	log *slog.Logger
}

func NewReassigner(database *db.DB, logger *slog.Logger) *Reassigner {
	return &Reassigner{db: database, log: logger}
}

// ReassignmentRecord describes one moved task or step.
type ReassignmentRecord struct {
	Kind     string `json:"kind"` // "task" or "step"
	ID       string `json:"id"`
	Previous string `json:"previous"`
	NewOwner string `json:"new_owner"`
}

// ReassignmentResult aggregates one reassignment run. Success means no
// per-record errors; a partial run shows Reassigned > 0 alongside Errors.
type ReassignmentResult struct {
	Success    bool                 `json:"success"`
	Reassigned int                  `json:"reassigned"`
	Errors     []string             `json:"errors,omitempty"`
	Details    []ReassignmentRecord `json:"details,omitempty"`
}

// Reassign moves every active task, and every step on an active task,
// from absentUserID to substituteID. An empty substitute falls back to the
// lead of a team the absent user belongs to. Target resolution fails before
// any record is touched; after that each record is updated independently.
func (r *Reassigner) Reassign(ctx context.Context, absentUserID, substituteID string) (*ReassignmentResult, error) {
	result := &ReassignmentResult{}

	target, errMsg, err := r.resolveTarget(ctx, absentUserID, substituteID)
	if err != nil {
		return nil, err
	}
	if errMsg != "" {
		result.Errors = append(result.Errors, errMsg)
		return result, nil
	}

	tasks, err := r.db.ActiveTasksFor(ctx, absentUserID)
	if err != nil {
		return nil, err
	}
	steps, err := r.db.ActiveStepsFor(ctx, absentUserID)
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		if err := r.db.UpdateTaskAssignee(ctx, t.ID, target); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
			continue
		}
		if err := r.db.InsertTaskEvent(ctx, &models.TaskEvent{
			TaskID:    t.ID,
			EventType: models.EventReasignacionAuto,
			Detail:    fmt.Sprintf(`{"from":%q,"to":%q}`, absentUserID, target),
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
		}
		result.Reassigned++
		result.Details = append(result.Details, ReassignmentRecord{
			Kind: "task", ID: t.ID, Previous: absentUserID, NewOwner: target,
		})
	}

	for _, s := range steps {
		if err := r.db.UpdateStepAssignee(ctx, s.ID, target); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("step %s: %v", s.ID, err))
			continue
		}
		result.Reassigned++
		result.Details = append(result.Details, ReassignmentRecord{
			Kind: "step", ID: s.ID, Previous: absentUserID, NewOwner: target,
		})
	}

	result.Success = len(result.Errors) == 0
	r.log.Info("reassignment finished",
		"from", absentUserID, "to", target, "moved", result.Reassigned, "errors", len(result.Errors))
	return result, nil
}

// resolveTarget picks the user receiving the work. The second return is an
// expected-failure message; the third a storage fault.
func (r *Reassigner) resolveTarget(ctx context.Context, absentUserID, substituteID string) (string, string, error) {
	if substituteID != "" {
		u, err := r.db.GetUser(ctx, substituteID)
		if err != nil {
			return "", "", err
		}
		if u == nil || !u.Active {
			return "", fmt.Sprintf("substitute %s not found or inactive", substituteID), nil
		}
		return u.ID, "", nil
	}

	memberships, err := r.db.MembershipsOf(ctx, absentUserID)
	if err != nil {
		return "", "", err
	}
	for _, m := range memberships {
		lead, err := r.db.TeamLead(ctx, m.TeamID)
		if err != nil {
			return "", "", err
		}
		if lead != nil && lead.UserID != absentUserID {
			return lead.UserID, "", nil
		}
	}
	return "", fmt.Sprintf("no substitute given and no team lead found for %s", absentUserID), nil
}

// AbsenceSweepResult aggregates one absence sweep run.
type AbsenceSweepResult struct {
	Processed  int      `json:"processed"`
	Reassigned int      `json:"reassigned"`
	Errors     []string `json:"errors,omitempty"`
}

// ProcessActiveAbsences runs a reassignment for every absence covering the
// given date (YYYY-MM-DD). Safe to run repeatedly: once moved, the absent
// user has no active work left.
func (r *Reassigner) ProcessActiveAbsences(ctx context.Context, today string) (*AbsenceSweepResult, error) {
	absences, err := r.db.ActiveAbsencesOn(ctx, today)
	if err != nil {
		return nil, err
	}

	result := &AbsenceSweepResult{}
	for _, a := range absences {
		substitute := ""
		if a.SubstituteID != nil {
			substitute = *a.SubstituteID
		}

		res, err := r.Reassign(ctx, a.UserID, substitute)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("absence %s: %v", a.ID, err))
			continue
		}
		result.Processed++
		result.Reassigned += res.Reassigned
		for _, msg := range res.Errors {
			result.Errors = append(result.Errors, fmt.Sprintf("absence %s: %s", a.ID, msg))
		}
	}
	return result, nil
}
