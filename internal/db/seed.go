package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ldi/sgr/pkg/models"
)

// Seed is the on-disk catalog document: everything the generator and
// assigner need before the first run. Link entries reference rows by id.
type Seed struct {
	Clients             []*models.Client         `json:"clients,omitempty"`
	Taxpayers           []*models.Taxpayer       `json:"taxpayers,omitempty"`
	TaxpayerRegimes     []*models.TaxpayerRegime `json:"taxpayer_regimes,omitempty"`
	Services            []*SeedService           `json:"services,omitempty"`
	ClientServices      []*SeedLink              `json:"client_services,omitempty"`
	Obligations         []*models.Obligation     `json:"obligations,omitempty"`
	ServiceObligations  []*SeedLink              `json:"service_obligations,omitempty"`
	RegimeObligations   []*SeedLink              `json:"regime_obligations,omitempty"`
	CalendarRules       []*models.CalendarRule   `json:"calendar_rules,omitempty"`
	Processes           []*models.Process        `json:"processes,omitempty"`
	ProcessSteps        []*models.ProcessStep    `json:"process_steps,omitempty"`
	ObligationProcesses []*SeedLink              `json:"obligation_processes,omitempty"`
	Users               []*models.User           `json:"users,omitempty"`
	Teams               []*models.Team           `json:"teams,omitempty"`
	TeamMembers         []*models.TeamMember     `json:"team_members,omitempty"`
	Absences            []*models.Absence        `json:"absences,omitempty"`
}

type SeedService struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SeedLink joins two catalog rows. Which table each side refers to
// depends on the field the link appears under.
type SeedLink struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// ImportSeed loads a seed document into the database in one transaction.
// Rows already present are left untouched, so re-importing an evolved
// seed file only adds what is new.
func (db *DB) ImportSeed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ins := func(query string, rows [][]any) error {
		for _, args := range rows {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	}

	clientRows := make([][]any, 0, len(seed.Clients))
	for _, c := range seed.Clients {
		fillID(&c.ID)
		clientRows = append(clientRows, []any{c.ID, c.Name, orDefault(c.Status, "ACTIVO")})
	}
	if err := ins(`INSERT INTO clients (id, name, status) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`, clientRows); err != nil {
		return fmt.Errorf("failed to seed clients: %w", err)
	}

	teamRows := make([][]any, 0, len(seed.Teams))
	for _, t := range seed.Teams {
		fillID(&t.ID)
		teamRows = append(teamRows, []any{t.ID, t.Name})
	}
	if err := ins(`INSERT INTO teams (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, teamRows); err != nil {
		return fmt.Errorf("failed to seed teams: %w", err)
	}

	userRows := make([][]any, 0, len(seed.Users))
	for _, u := range seed.Users {
		fillID(&u.ID)
		userRows = append(userRows, []any{u.ID, u.Name, u.Email, orDefault(string(u.Role), string(models.RoleColaborador)), u.Active})
	}
	if err := ins(`INSERT INTO users (id, name, email, role, active) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, userRows); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	memberRows := make([][]any, 0, len(seed.TeamMembers))
	for _, m := range seed.TeamMembers {
		memberRows = append(memberRows, []any{m.TeamID, m.UserID, m.TeamRole, m.IsSubstitute, m.SubstituteFor, m.Active})
	}
	if err := ins(`INSERT INTO team_members (team_id, user_id, team_role, is_substitute, substitute_for, active)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (team_id, user_id, team_role) DO NOTHING`, memberRows); err != nil {
		return fmt.Errorf("failed to seed team members: %w", err)
	}

	taxpayerRows := make([][]any, 0, len(seed.Taxpayers))
	for _, t := range seed.Taxpayers {
		fillID(&t.ID)
		taxpayerRows = append(taxpayerRows, []any{t.ID, t.ClientID, t.RFC, t.Name, t.Kind, t.TeamID, t.Active})
	}
	if err := ins(`INSERT INTO taxpayers (id, client_id, rfc, name, kind, team_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, taxpayerRows); err != nil {
		return fmt.Errorf("failed to seed taxpayers: %w", err)
	}

	regimeRows := make([][]any, 0, len(seed.TaxpayerRegimes))
	for _, r := range seed.TaxpayerRegimes {
		regimeRows = append(regimeRows, []any{r.TaxpayerID, r.Regime, r.ValidFrom, r.ValidTo})
	}
	if err := ins(`INSERT INTO taxpayer_regimes (taxpayer_id, regime, valid_from, valid_to)
		VALUES (?, ?, ?, ?) ON CONFLICT (taxpayer_id, regime) DO NOTHING`, regimeRows); err != nil {
		return fmt.Errorf("failed to seed taxpayer regimes: %w", err)
	}

	serviceRows := make([][]any, 0, len(seed.Services))
	for _, s := range seed.Services {
		fillID(&s.ID)
		serviceRows = append(serviceRows, []any{s.ID, s.Name})
	}
	if err := ins(`INSERT INTO services (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, serviceRows); err != nil {
		return fmt.Errorf("failed to seed services: %w", err)
	}

	if err := ins(`INSERT INTO client_services (client_id, service_id) VALUES (?, ?)
		ON CONFLICT (client_id, service_id) DO NOTHING`, linkRows(seed.ClientServices)); err != nil {
		return fmt.Errorf("failed to seed client services: %w", err)
	}

	obligationRows := make([][]any, 0, len(seed.Obligations))
	for _, o := range seed.Obligations {
		fillID(&o.ID)
		obligationRows = append(obligationRows, []any{o.ID, o.Name, o.ShortName, o.Periodicity, orDefault(o.Level, "FEDERAL"), o.Critical})
	}
	if err := ins(`INSERT INTO obligations (id, name, short_name, periodicity, level, critical)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, obligationRows); err != nil {
		return fmt.Errorf("failed to seed obligations: %w", err)
	}

	if err := ins(`INSERT INTO service_obligations (service_id, obligation_id) VALUES (?, ?)
		ON CONFLICT (service_id, obligation_id) DO NOTHING`, linkRows(seed.ServiceObligations)); err != nil {
		return fmt.Errorf("failed to seed service obligations: %w", err)
	}

	if err := ins(`INSERT INTO regime_obligations (regime, obligation_id) VALUES (?, ?)
		ON CONFLICT (regime, obligation_id) DO NOTHING`, linkRows(seed.RegimeObligations)); err != nil {
		return fmt.Errorf("failed to seed regime obligations: %w", err)
	}

	ruleRows := make([][]any, 0, len(seed.CalendarRules))
	for _, r := range seed.CalendarRules {
		fillID(&r.ID)
		ruleRows = append(ruleRows, []any{r.ID, r.ObligationID, r.DueMonth, r.DueDay})
	}
	if err := ins(`INSERT INTO calendar_rules (id, obligation_id, due_month, due_day)
		VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, ruleRows); err != nil {
		return fmt.Errorf("failed to seed calendar rules: %w", err)
	}

	processRows := make([][]any, 0, len(seed.Processes))
	for _, p := range seed.Processes {
		fillID(&p.ID)
		processRows = append(processRows, []any{p.ID, p.Name, orDefault(p.Category, "RECURRENTE"), p.Active})
	}
	if err := ins(`INSERT INTO processes (id, name, category, active)
		VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, processRows); err != nil {
		return fmt.Errorf("failed to seed processes: %w", err)
	}

	stepRows := make([][]any, 0, len(seed.ProcessSteps))
	for _, s := range seed.ProcessSteps {
		fillID(&s.ID)
		stepRows = append(stepRows, []any{s.ID, s.ProcessID, s.Name, s.Seq, s.WeightPct, s.Tier, s.ConcurrencyGroup, s.EvidenceRequired, s.Active})
	}
	if err := ins(`INSERT INTO process_steps (id, process_id, name, seq, weight_pct, tier, concurrency_group, evidence_required, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, stepRows); err != nil {
		return fmt.Errorf("failed to seed process steps: %w", err)
	}

	if err := ins(`INSERT INTO obligation_processes (obligation_id, process_id) VALUES (?, ?)
		ON CONFLICT (obligation_id, process_id) DO NOTHING`, linkRows(seed.ObligationProcesses)); err != nil {
		return fmt.Errorf("failed to seed obligation processes: %w", err)
	}

	absenceRows := make([][]any, 0, len(seed.Absences))
	for _, a := range seed.Absences {
		fillID(&a.ID)
		absenceRows = append(absenceRows, []any{a.ID, a.UserID, a.SubstituteID, orDefault(a.Kind, "VACACIONES"), a.StartsOn, a.EndsOn, a.Active})
	}
	if err := ins(`INSERT INTO absences (id, user_id, substitute_id, kind, starts_on, ends_on, active)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, absenceRows); err != nil {
		return fmt.Errorf("failed to seed absences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ExportSnapshot writes the current tasks and steps as a JSONL file,
// atomically via a temporary file in the target directory.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	enc := json.NewEncoder(tempFile)

	tasks, err := db.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := enc.Encode(snapshotLine{Kind: "task", Task: t}); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}

		steps, err := db.ListTaskSteps(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, s := range steps {
			s := s
			if err := enc.Encode(snapshotLine{Kind: "step", Step: &s}); err != nil {
				return fmt.Errorf("failed to write snapshot line: %w", err)
			}
		}

		events, err := db.ListTaskEvents(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := enc.Encode(snapshotLine{Kind: "event", Event: e}); err != nil {
				return fmt.Errorf("failed to write snapshot line: %w", err)
			}
		}
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // keep the defer from removing the finished file

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// EnableAutoSnapshot exports a snapshot after every successful write.
// Export failures are swallowed; the write itself already succeeded.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		_ = db.ExportSnapshot(ctx, path)
	})
}

type snapshotLine struct {
	Kind  string            `json:"kind"`
	Task  *models.Task      `json:"task,omitempty"`
	Step  *models.StepView  `json:"step,omitempty"`
	Event *models.TaskEvent `json:"event,omitempty"`
}

func linkRows(links []*SeedLink) [][]any {
	rows := make([][]any, 0, len(links))
	for _, l := range links {
		rows = append(rows, []any{l.Left, l.Right})
	}
	return rows
}

func fillID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
