package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/sgr/pkg/models"
)

const memberColumns = `tm.team_id, tm.user_id, tm.team_role, tm.is_substitute, tm.substitute_for, tm.active`

// TeamMembersByRole returns the active members holding a role on a team,
// joined against active users. Titulars sort before substitutes; within
// each group the order is by user id so repeated calls resolve the same
// member.
func (db *DB) TeamMembersByRole(ctx context.Context, teamID string, role models.TeamRole) ([]*models.TeamMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = ? AND tm.team_role = ? AND tm.active = 1 AND u.active = 1
		ORDER BY tm.is_substitute, tm.user_id`, teamID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// TeamLead returns the team's titular lead. A membership marked as
// substitute does not count; returns nil when the team has no active
// titular lead.
func (db *DB) TeamLead(ctx context.Context, teamID string) (*models.TeamMember, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = ? AND tm.team_role = ? AND tm.is_substitute = 0
			AND tm.active = 1 AND u.active = 1
		ORDER BY tm.user_id
		LIMIT 1`, teamID, models.RoleLider)

	var m models.TeamMember
	err := row.Scan(&m.TeamID, &m.UserID, &m.TeamRole, &m.IsSubstitute, &m.SubstituteFor, &m.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team lead: %w", err)
	}
	return &m, nil
}

// MembershipsOf returns every active membership a user holds, across teams.
func (db *DB) MembershipsOf(ctx context.Context, userID string) ([]*models.TeamMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM team_members tm
		WHERE tm.user_id = ? AND tm.active = 1
		ORDER BY tm.team_id, tm.team_role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

func scanMembers(rows *sql.Rows) ([]*models.TeamMember, error) {
	var members []*models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.TeamRole, &m.IsSubstitute, &m.SubstituteFor, &m.Active); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}
