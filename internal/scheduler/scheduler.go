// Package scheduler runs the periodic sweeps: scheduled task generation,
// the absence sweep and the risk sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ldi/sgr/internal/engine"
)

// Scheduler polls on an interval and fires each sweep once per tick. Every
// sweep is idempotent, so an interval shorter than a day only costs reads.
type Scheduler struct {
	trigger    *engine.Trigger
	reassigner *engine.Reassigner
	risk       *engine.RiskDetector
	log        *slog.Logger
	interval   time.Duration
	now        func() time.Time
}

func New(trigger *engine.Trigger, reassigner *engine.Reassigner, risk *engine.RiskDetector, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		trigger:    trigger,
		reassigner: reassigner,
		risk:       risk,
		log:        logger,
		interval:   interval,
		now:        time.Now,
	}
}

// Run ticks until the context is cancelled. The first tick fires
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one round of all sweeps. Failures are logged, never fatal; the
// next tick retries.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	if res, err := s.trigger.RunScheduled(ctx, now); err != nil {
		s.log.Error("scheduled generation failed", "error", err)
	} else if res.Ran {
		s.log.Info("scheduled generation ran",
			"period", res.Period, "created", res.Generation.TasksCreated)
	}

	if res, err := s.reassigner.ProcessActiveAbsences(ctx, now.Format("2006-01-02")); err != nil {
		s.log.Error("absence sweep failed", "error", err)
	} else if res.Processed > 0 {
		s.log.Info("absence sweep ran", "absences", res.Processed, "reassigned", res.Reassigned)
	}

	if _, err := s.risk.DetectRisk(ctx, now); err != nil {
		s.log.Error("risk sweep failed", "error", err)
	}
}
