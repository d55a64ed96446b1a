package models

import "time"

// Tier is the collaborator seniority class routing step responsibility.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Role returns the team role that fulfills a tier. The mapping is a closed
// set; an unknown tier returns false.
func (t Tier) Role() (TeamRole, bool) {
	switch t {
	case TierA:
		return RoleAuxiliarA, true
	case TierB:
		return RoleAuxiliarB, true
	case TierC:
		return RoleAuxiliarC, true
	}
	return "", false
}

// TaskStep is one instantiated unit of a task's process, carrying a
// completion weight. Steps are created once per task and never regenerated.
type TaskStep struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	ProcessStepID string     `json:"process_step_id"`
	Title         string     `json:"title"`
	Seq           int        `json:"seq"`
	WeightPct     int        `json:"weight_pct"`
	Tier          *Tier      `json:"tier"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	AssigneeID    *string    `json:"assignee_id"`
}

// StepView joins a task step with its assignee for display.
type StepView struct {
	TaskStep
	AssigneeName  string `json:"assignee_name,omitempty"`
	AssigneeEmail string `json:"assignee_email,omitempty"`
}
