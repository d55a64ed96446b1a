package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

// Generator creates the period's tasks from the obligation catalog. Runs are
// idempotent per period: existing (taxpayer, obligation, period) tuples are
// skipped without error.
type Generator struct {
	db       *db.DB
	log      *slog.Logger
	opts     Options
	assigner *Assigner
}

func NewGenerator(database *db.DB, logger *slog.Logger, opts Options) *Generator {
	return &Generator{
		db:       database,
		log:      logger,
		opts:     opts,
		assigner: NewAssigner(database, logger),
	}
}

// GenerationResult aggregates one generator run. Per-item failures land in
// Errors tagged with taxpayer RFC and obligation; the run keeps going.
// Success means the error list is empty; TasksCreated counts actual inserts
// either way.
type GenerationResult struct {
	Success      bool     `json:"success"`
	TasksCreated int      `json:"tasks_created"`
	Errors       []string `json:"errors,omitempty"`
}

// Generate creates tasks for a fiscal period, for one taxpayer or all
// active ones. Obligations flow in through the taxpayer's regimes in
// vigency, filtered down to those covered by the client's contracted
// services, then by periodicity: monthly always, annual only in its rule's
// month, eventual and per-operation never.
func (g *Generator) Generate(ctx context.Context, period, taxpayerID string) (*GenerationResult, error) {
	result := &GenerationResult{}

	year, month, err := ParsePeriod(period)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	taxpayers, err := g.db.ListActiveTaxpayers(ctx, taxpayerID)
	if err != nil {
		return nil, err
	}
	if taxpayerID != "" && len(taxpayers) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("taxpayer %s not found or inactive", taxpayerID))
		return result, nil
	}

	for _, tp := range taxpayers {
		g.generateFor(ctx, tp, period, year, month, result)
	}

	result.Success = len(result.Errors) == 0
	g.log.Info("generation finished",
		"period", period, "created", result.TasksCreated, "errors", len(result.Errors))
	return result, nil
}

func (g *Generator) generateFor(ctx context.Context, tp *models.Taxpayer, period string, year, month int, result *GenerationResult) {
	fail := func(obligationID, msg string) {
		result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %s", tp.RFC, obligationID, msg))
	}

	regimes, err := g.db.RegimesInForce(ctx, tp.ID, period)
	if err != nil {
		fail("-", err.Error())
		return
	}
	covered, err := g.db.CoveredObligations(ctx, tp.ClientID)
	if err != nil {
		fail("-", err.Error())
		return
	}

	seen := make(map[string]bool)
	for _, regime := range regimes {
		obligations, err := g.db.RegimeObligations(ctx, regime)
		if err != nil {
			fail("-", fmt.Sprintf("regime %s: %v", regime, err))
			continue
		}

		for _, o := range obligations {
			if seen[o.ID] || !covered[o.ID] || !o.Periodicity.AutoGenerates() {
				continue
			}
			seen[o.ID] = true

			rule, err := g.db.CalendarRule(ctx, o.ID)
			if err != nil {
				fail(o.ID, err.Error())
				continue
			}
			if o.Periodicity == models.PeriodicityAnual {
				if rule == nil || rule.DueMonth == nil {
					// Annual obligation without a month on file never
					// auto-generates.
					g.log.Warn("annual obligation lacks calendar rule", "obligation", o.ID)
					continue
				}
				if *rule.DueMonth != month {
					continue
				}
			}

			official, internal := dueDates(year, month, rule, g.opts)
			task := &models.Task{
				ClientID:     tp.ClientID,
				TaxpayerID:   tp.ID,
				ObligationID: o.ID,
				FiscalYear:   year,
				Period:       period,
				OfficialDue:  official,
				InternalDue:  internal,
				State:        models.StatePendiente,
				Risk:         models.RiskMedio,
				Priority:     o.DefaultPriority(),
			}

			created, err := g.db.CreateTaskIfAbsent(ctx, task)
			if err != nil {
				fail(o.ID, err.Error())
				continue
			}
			if !created {
				continue
			}
			result.TasksCreated++

			if err := g.db.InsertTaskEvent(ctx, &models.TaskEvent{
				TaskID:    task.ID,
				EventType: models.EventGeneracion,
				Detail:    fmt.Sprintf(`{"period":%q,"official_due":%q}`, period, official),
			}); err != nil {
				fail(o.ID, err.Error())
			}

			g.instantiateFor(ctx, tp, task, o.ID, fail)
		}
	}
}

// instantiateFor creates the new task's steps from its linked process and
// assigns responsibles. The task stands regardless of what fails here.
func (g *Generator) instantiateFor(ctx context.Context, tp *models.Taxpayer, task *models.Task, obligationID string, fail func(string, string)) {
	processes, err := g.db.ProcessesFor(ctx, obligationID)
	if err != nil {
		fail(obligationID, err.Error())
		return
	}
	switch {
	case len(processes) == 0:
		return
	case len(processes) > 1:
		fail(obligationID, fmt.Sprintf("%d processes linked, want at most one", len(processes)))
		return
	}

	inst, err := g.assigner.InstantiateSteps(ctx, task.ID, processes[0])
	if err != nil {
		fail(obligationID, err.Error())
		return
	}
	if inst.Err != "" {
		fail(obligationID, inst.Err)
		return
	}

	steps, err := g.db.ListTaskSteps(ctx, task.ID)
	if err != nil {
		fail(obligationID, err.Error())
		return
	}
	for _, s := range steps {
		if s.Tier == nil {
			continue
		}
		if tp.TeamID == nil {
			fail(obligationID, fmt.Sprintf("step %q needs tier %s but taxpayer has no team", s.Title, *s.Tier))
			continue
		}
		res, err := g.assigner.AssignStepResponsible(ctx, s.ID, *tp.TeamID, *s.Tier)
		if err != nil {
			fail(obligationID, err.Error())
			continue
		}
		if res.Err != "" {
			fail(obligationID, fmt.Sprintf("step %q: %s", s.Title, res.Err))
		}
	}
}

// Summary reports period totals grouped by state and team.
func (g *Generator) Summary(ctx context.Context, period string) (*db.PeriodSummary, error) {
	if _, _, err := ParsePeriod(period); err != nil {
		return nil, err
	}
	return g.db.SummarizePeriod(ctx, period)
}
