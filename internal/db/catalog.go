package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/sgr/pkg/models"
)

// ListActiveTaxpayers returns active taxpayers, or the single one requested.
func (db *DB) ListActiveTaxpayers(ctx context.Context, taxpayerID string) ([]*models.Taxpayer, error) {
	query := `
		SELECT id, client_id, rfc, name, kind, team_id, active
		FROM taxpayers
		WHERE active = 1
	`
	args := []any{}
	if taxpayerID != "" {
		query += " AND id = ?"
		args = append(args, taxpayerID)
	}
	query += " ORDER BY rfc"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxpayers: %w", err)
	}
	defer rows.Close()

	var taxpayers []*models.Taxpayer
	for rows.Next() {
		tp := &models.Taxpayer{}
		var active int
		if err := rows.Scan(&tp.ID, &tp.ClientID, &tp.RFC, &tp.Name, &tp.Kind, &tp.TeamID, &active); err != nil {
			return nil, fmt.Errorf("failed to scan taxpayer: %w", err)
		}
		tp.Active = active == 1
		taxpayers = append(taxpayers, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return taxpayers, nil
}

func (db *DB) GetTaxpayer(ctx context.Context, id string) (*models.Taxpayer, error) {
	query := `
		SELECT id, client_id, rfc, name, kind, team_id, active
		FROM taxpayers
		WHERE id = ?
	`
	tp := &models.Taxpayer{}
	var active int
	err := db.QueryRowContext(ctx, query, id).Scan(
		&tp.ID, &tp.ClientID, &tp.RFC, &tp.Name, &tp.Kind, &tp.TeamID, &active,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get taxpayer: %w", err)
	}
	tp.Active = active == 1
	return tp, nil
}

// RegimesInForce returns the taxpayer's regimes whose vigency window covers
// the given fiscal period (YYYY-MM). Open-ended bounds always match.
func (db *DB) RegimesInForce(ctx context.Context, taxpayerID, period string) ([]string, error) {
	query := `
		SELECT regime
		FROM taxpayer_regimes
		WHERE taxpayer_id = ?
		  AND (valid_from IS NULL OR substr(valid_from, 1, 7) <= ?)
		  AND (valid_to IS NULL OR substr(valid_to, 1, 7) >= ?)
		ORDER BY regime
	`
	rows, err := db.QueryContext(ctx, query, taxpayerID, period, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query regimes: %w", err)
	}
	defer rows.Close()

	var regimes []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan regime: %w", err)
		}
		regimes = append(regimes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return regimes, nil
}

// CoveredObligations returns the obligation ids reachable through the
// client's contracted services. Only covered obligations generate tasks.
func (db *DB) CoveredObligations(ctx context.Context, clientID string) (map[string]bool, error) {
	query := `
		SELECT DISTINCT so.obligation_id
		FROM client_services cs
		JOIN service_obligations so ON so.service_id = cs.service_id
		WHERE cs.client_id = ?
	`
	rows, err := db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query covered obligations: %w", err)
	}
	defer rows.Close()

	covered := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan obligation id: %w", err)
		}
		covered[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return covered, nil
}

// RegimeObligations returns the obligations a regime brings in.
func (db *DB) RegimeObligations(ctx context.Context, regime string) ([]*models.Obligation, error) {
	query := `
		SELECT o.id, o.name, o.short_name, o.periodicity, o.level, o.critical
		FROM regime_obligations ro
		JOIN obligations o ON o.id = ro.obligation_id
		WHERE ro.regime = ?
		ORDER BY o.id
	`
	rows, err := db.QueryContext(ctx, query, regime)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime obligations: %w", err)
	}
	defer rows.Close()

	var obligations []*models.Obligation
	for rows.Next() {
		o := &models.Obligation{}
		var critical int
		if err := rows.Scan(&o.ID, &o.Name, &o.ShortName, &o.Periodicity, &o.Level, &critical); err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		o.Critical = critical == 1
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return obligations, nil
}

// CalendarRule returns the obligation's calendar rule, or nil when the
// default deadline applies.
func (db *DB) CalendarRule(ctx context.Context, obligationID string) (*models.CalendarRule, error) {
	query := `
		SELECT id, obligation_id, due_month, due_day
		FROM calendar_rules
		WHERE obligation_id = ?
		ORDER BY id
		LIMIT 1
	`
	r := &models.CalendarRule{}
	err := db.QueryRowContext(ctx, query, obligationID).Scan(&r.ID, &r.ObligationID, &r.DueMonth, &r.DueDay)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar rule: %w", err)
	}
	return r, nil
}

// ProcessesFor returns the ids of active processes linked to an obligation.
func (db *DB) ProcessesFor(ctx context.Context, obligationID string) ([]string, error) {
	query := `
		SELECT p.id
		FROM obligation_processes op
		JOIN processes p ON p.id = op.process_id
		WHERE op.obligation_id = ? AND p.active = 1
		ORDER BY p.id
	`
	rows, err := db.QueryContext(ctx, query, obligationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligation processes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan process id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// ActiveProcessSteps returns a process's active step templates in order.
func (db *DB) ActiveProcessSteps(ctx context.Context, processID string) ([]*models.ProcessStep, error) {
	query := `
		SELECT id, process_id, name, seq, weight_pct, tier, concurrency_group, evidence_required, active
		FROM process_steps
		WHERE process_id = ? AND active = 1
		ORDER BY seq
	`
	rows, err := db.QueryContext(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to query process steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.ProcessStep
	for rows.Next() {
		s := &models.ProcessStep{}
		var evidenceRequired, active int
		var tier sql.NullString
		if err := rows.Scan(&s.ID, &s.ProcessID, &s.Name, &s.Seq, &s.WeightPct, &tier,
			&s.ConcurrencyGroup, &evidenceRequired, &active); err != nil {
			return nil, fmt.Errorf("failed to scan process step: %w", err)
		}
		if tier.Valid {
			t := models.Tier(tier.String)
			s.Tier = &t
		}
		s.EvidenceRequired = evidenceRequired == 1
		s.Active = active == 1
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return steps, nil
}
