package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ldi/sgr/internal/db"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	return database
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exec(t *testing.T, database *db.DB, query string, args ...any) {
	t.Helper()
	if _, err := database.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to exec %q: %v", query, err)
	}
}

// seedCatalog builds a working catalog: one client with a contracted
// accounting service, one taxpayer in regime RSC staffed by team1, a
// monthly IVA obligation (covered, with a process), an annual obligation
// due in March, and a monthly payroll obligation outside the contracted
// services.
func seedCatalog(t *testing.T, database *db.DB) {
	t.Helper()

	exec(t, database, `INSERT INTO clients (id, name) VALUES ('c1', 'Grupo Alfa')`)
	exec(t, database, `INSERT INTO teams (id, name) VALUES ('team1', 'Equipo Norte')`)
	exec(t, database, `INSERT INTO taxpayers (id, client_id, rfc, name, kind, team_id) VALUES ('tp1', 'c1', 'AAA010101AAA', 'Alfa SA', 'PM', 'team1')`)
	exec(t, database, `INSERT INTO taxpayer_regimes (taxpayer_id, regime) VALUES ('tp1', 'RSC')`)

	exec(t, database, `INSERT INTO services (id, name) VALUES ('s1', 'Contabilidad')`)
	exec(t, database, `INSERT INTO client_services (client_id, service_id) VALUES ('c1', 's1')`)

	exec(t, database, `INSERT INTO obligations (id, name, short_name, periodicity, critical) VALUES ('ob-iva', 'Declaración mensual de IVA', 'IVA', 'MENSUAL', 1)`)
	exec(t, database, `INSERT INTO obligations (id, name, short_name, periodicity) VALUES ('ob-anual', 'Declaración anual', 'ANUAL', 'ANUAL')`)
	exec(t, database, `INSERT INTO obligations (id, name, short_name, periodicity) VALUES ('ob-nomina', 'Nómina', 'NOM', 'MENSUAL')`)
	exec(t, database, `INSERT INTO obligations (id, name, short_name, periodicity) VALUES ('ob-eventual', 'Aviso eventual', 'AVISO', 'EVENTUAL')`)

	exec(t, database, `INSERT INTO service_obligations (service_id, obligation_id) VALUES ('s1', 'ob-iva')`)
	exec(t, database, `INSERT INTO service_obligations (service_id, obligation_id) VALUES ('s1', 'ob-anual')`)
	exec(t, database, `INSERT INTO service_obligations (service_id, obligation_id) VALUES ('s1', 'ob-eventual')`)

	exec(t, database, `INSERT INTO regime_obligations (regime, obligation_id) VALUES ('RSC', 'ob-iva')`)
	exec(t, database, `INSERT INTO regime_obligations (regime, obligation_id) VALUES ('RSC', 'ob-anual')`)
	exec(t, database, `INSERT INTO regime_obligations (regime, obligation_id) VALUES ('RSC', 'ob-nomina')`)
	exec(t, database, `INSERT INTO regime_obligations (regime, obligation_id) VALUES ('RSC', 'ob-eventual')`)

	exec(t, database, `INSERT INTO calendar_rules (id, obligation_id, due_day) VALUES ('cr-iva', 'ob-iva', 17)`)
	exec(t, database, `INSERT INTO calendar_rules (id, obligation_id, due_month, due_day) VALUES ('cr-anual', 'ob-anual', 3, 31)`)

	exec(t, database, `INSERT INTO processes (id, name) VALUES ('p1', 'Cierre de IVA')`)
	exec(t, database, `INSERT INTO process_steps (id, process_id, name, seq, weight_pct, tier) VALUES ('ps1', 'p1', 'Recopilar información', 1, 40, 'C')`)
	exec(t, database, `INSERT INTO process_steps (id, process_id, name, seq, weight_pct, tier) VALUES ('ps2', 'p1', 'Calcular impuesto', 2, 60, 'A')`)
	exec(t, database, `INSERT INTO obligation_processes (obligation_id, process_id) VALUES ('ob-iva', 'p1')`)
}

// seedStaffing fills team1 with a lead, a tier-A titular and a tier-C
// titular plus substitute.
func seedStaffing(t *testing.T, database *db.DB) {
	t.Helper()

	exec(t, database, `INSERT INTO users (id, name, email) VALUES ('u-lead', 'Diego', 'diego@example.com')`)
	exec(t, database, `INSERT INTO users (id, name, email) VALUES ('u-a', 'Ana', 'ana@example.com')`)
	exec(t, database, `INSERT INTO users (id, name, email) VALUES ('u-c', 'Carla', 'carla@example.com')`)
	exec(t, database, `INSERT INTO users (id, name, email) VALUES ('u-c-sub', 'Hugo', 'hugo@example.com')`)

	exec(t, database, `INSERT INTO team_members (team_id, user_id, team_role) VALUES ('team1', 'u-lead', 'LIDER')`)
	exec(t, database, `INSERT INTO team_members (team_id, user_id, team_role) VALUES ('team1', 'u-a', 'AUXILIAR_A')`)
	exec(t, database, `INSERT INTO team_members (team_id, user_id, team_role) VALUES ('team1', 'u-c', 'AUXILIAR_C')`)
	exec(t, database, `INSERT INTO team_members (team_id, user_id, team_role, is_substitute, substitute_for) VALUES ('team1', 'u-c-sub', 'AUXILIAR_C', 1, 'u-c')`)
}
