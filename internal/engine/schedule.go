package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ldi/sgr/internal/db"
)

// Trigger decides whether a scheduled generation run should fire and runs
// it. The decision reads the auto_generate config record; claiming the
// period happens with a compare-and-swap on the version read, so two
// concurrent triggers produce exactly one recorded run.
type Trigger struct {
	db  *db.DB
	log *slog.Logger
	gen *Generator
}

func NewTrigger(database *db.DB, logger *slog.Logger, gen *Generator) *Trigger {
	return &Trigger{db: database, log: logger, gen: gen}
}

type ScheduleResult struct {
	Ran        bool              `json:"ran"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Period     string            `json:"period,omitempty"`
	Generation *GenerationResult `json:"generation,omitempty"`
}

// RunScheduled fires generation for the current period when enabled, the
// day of month has been reached, and the period has not been generated yet.
// A lost compare-and-swap means another trigger claimed the same period
// first; that run reports as skipped since its work was a duplicate, which
// is harmless because generation is idempotent per period.
func (t *Trigger) RunScheduled(ctx context.Context, now time.Time) (*ScheduleResult, error) {
	cfg, version, err := t.db.GetAutoGenerateConfig(ctx)
	if err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		return &ScheduleResult{SkipReason: "auto-generation disabled"}, nil
	}
	triggerDay := cfg.DayOfMonth
	if last := daysIn(now.Year(), int(now.Month())); triggerDay > last {
		triggerDay = last
	}
	if now.Day() < triggerDay {
		return &ScheduleResult{SkipReason: "trigger day not reached"}, nil
	}

	period := now.Format("2006-01")
	if cfg.LastPeriod == period {
		return &ScheduleResult{SkipReason: "period already generated", Period: period}, nil
	}

	gen, err := t.gen.Generate(ctx, period, "")
	if err != nil {
		return nil, err
	}

	cfg.LastPeriod = period
	if err := t.db.SaveAutoGenerateConfig(ctx, cfg, version); err != nil {
		if errors.Is(err, db.ErrConfigConflict) {
			t.log.Info("scheduled run lost the claim race", "period", period)
			return &ScheduleResult{SkipReason: "another trigger claimed the period", Period: period}, nil
		}
		return nil, err
	}

	return &ScheduleResult{Ran: true, Period: period, Generation: gen}, nil
}
