package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

// DocTypePaymentReceipt is the document whose absence after presentation
// puts a task at risk.
const DocTypePaymentReceipt = "COMPROBANTE_PAGO"

// RiskDetector flags presented tasks still waiting on their payment
// receipt past the configured window, and clears the flag once the receipt
// shows up.
type RiskDetector struct {
	db   *db.DB
	log  *slog.Logger
	opts Options
}

func NewRiskDetector(database *db.DB, logger *slog.Logger, opts Options) *RiskDetector {
	return &RiskDetector{db: database, log: logger, opts: opts}
}

type RiskSweepResult struct {
	Flagged int      `json:"flagged"`
	Cleared int      `json:"cleared"`
	Errors  []string `json:"errors,omitempty"`
}

// DetectRisk sweeps the presented tasks once. Per-task failures are
// collected and the sweep keeps going.
func (d *RiskDetector) DetectRisk(ctx context.Context, now time.Time) (*RiskSweepResult, error) {
	tasks, err := d.db.PresentedTasks(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.AddDate(0, 0, -d.opts.RiskWindowDays)
	result := &RiskSweepResult{}

	for _, t := range tasks {
		hasReceipt, err := d.db.TaskHasDocument(ctx, t.ID, DocTypePaymentReceipt)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
			continue
		}

		switch {
		case !hasReceipt && !t.AtRisk && t.PresentedAt != nil && t.PresentedAt.Before(cutoff):
			if err := d.setFlag(ctx, t.ID, true); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
				continue
			}
			result.Flagged++
		case hasReceipt && t.AtRisk:
			if err := d.setFlag(ctx, t.ID, false); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
				continue
			}
			result.Cleared++
		}
	}

	d.log.Info("risk sweep finished",
		"flagged", result.Flagged, "cleared", result.Cleared, "errors", len(result.Errors))
	return result, nil
}

// AtRiskDetail lists the currently flagged tasks.
func (d *RiskDetector) AtRiskDetail(ctx context.Context) ([]*models.Task, error) {
	return d.db.AtRiskTasks(ctx)
}

// MarkAtRisk sets or clears the flag on one task by hand.
func (d *RiskDetector) MarkAtRisk(ctx context.Context, taskID string, atRisk bool) error {
	return d.setFlag(ctx, taskID, atRisk)
}

func (d *RiskDetector) setFlag(ctx context.Context, taskID string, atRisk bool) error {
	if err := d.db.SetTaskAtRisk(ctx, taskID, atRisk); err != nil {
		return err
	}
	return d.db.InsertTaskEvent(ctx, &models.TaskEvent{
		TaskID:    taskID,
		EventType: models.EventDeteccionRiesgo,
		Detail:    fmt.Sprintf(`{"at_risk":%t}`, atRisk),
	})
}
