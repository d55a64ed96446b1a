package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/internal/engine"
	"github.com/ldi/sgr/pkg/models"
)

func testServer(t *testing.T) (*httptest.Server, *db.DB) {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(database, logger, engine.DefaultOptions())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, database
}

func seedAPIFixture(t *testing.T, database *db.DB) {
	t.Helper()
	ctx := context.Background()
	for _, q := range []string{
		`INSERT INTO clients (id, name) VALUES ('c1', 'Grupo Alfa')`,
		`INSERT INTO teams (id, name) VALUES ('team1', 'Equipo Norte')`,
		`INSERT INTO taxpayers (id, client_id, rfc, name, kind, team_id) VALUES ('tp1', 'c1', 'AAA010101AAA', 'Alfa SA', 'PM', 'team1')`,
		`INSERT INTO taxpayer_regimes (taxpayer_id, regime) VALUES ('tp1', 'RSC')`,
		`INSERT INTO services (id, name) VALUES ('s1', 'Contabilidad')`,
		`INSERT INTO client_services (client_id, service_id) VALUES ('c1', 's1')`,
		`INSERT INTO obligations (id, name, short_name, periodicity) VALUES ('ob1', 'IVA mensual', 'IVA', 'MENSUAL')`,
		`INSERT INTO service_obligations (service_id, obligation_id) VALUES ('s1', 'ob1')`,
		`INSERT INTO regime_obligations (regime, obligation_id) VALUES ('RSC', 'ob1')`,
		`INSERT INTO users (id, name, email) VALUES ('u1', 'Ana', 'ana@example.com')`,
		`INSERT INTO team_members (team_id, user_id, team_role) VALUES ('team1', 'u1', 'AUXILIAR_A')`,
	} {
		if _, err := database.ExecContext(ctx, q); err != nil {
			t.Fatalf("Failed to seed: %v", err)
		}
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to POST %s: %v", url, err)
	}
	return resp
}

func TestGenerateAndListTasks(t *testing.T) {
	ts, database := testServer(t)
	seedAPIFixture(t, database)

	resp := postJSON(t, ts.URL+"/api/generate", map[string]string{"period": "2025-07"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var gen engine.GenerationResult
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !gen.Success || gen.TasksCreated != 1 {
		t.Fatalf("Expected one task created, got %+v", gen)
	}

	listResp, err := http.Get(ts.URL + "/api/tasks?period=2025-07")
	if err != nil {
		t.Fatalf("Failed to GET tasks: %v", err)
	}
	defer listResp.Body.Close()
	var tasks []*models.Task
	if err := json.NewDecoder(listResp.Body).Decode(&tasks); err != nil {
		t.Fatalf("Failed to decode tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Period != "2025-07" {
		t.Fatalf("Expected one task for 2025-07, got %+v", tasks)
	}

	stepsResp, err := http.Get(ts.URL + "/api/tasks/steps?task=" + tasks[0].ID)
	if err != nil {
		t.Fatalf("Failed to GET steps: %v", err)
	}
	defer stepsResp.Body.Close()
	if stepsResp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for steps, got %d", stepsResp.StatusCode)
	}
}

func TestSummaryRejectsBadPeriod(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/api/summary?period=2025-7")
	if err != nil {
		t.Fatalf("Failed to GET summary: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSummaryCountsByState(t *testing.T) {
	ts, database := testServer(t)
	seedAPIFixture(t, database)

	resp := postJSON(t, ts.URL+"/api/generate", map[string]string{"period": "2025-07"})
	resp.Body.Close()

	sumResp, err := http.Get(ts.URL + "/api/summary?period=2025-07")
	if err != nil {
		t.Fatalf("Failed to GET summary: %v", err)
	}
	defer sumResp.Body.Close()
	var summary db.PeriodSummary
	if err := json.NewDecoder(sumResp.Body).Decode(&summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.Total != 1 || summary.ByState["pendiente"] != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestTaskStepsRequiresTask(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/api/tasks/steps")
	if err != nil {
		t.Fatalf("Failed to GET steps: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestGenerateRequiresPost(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/api/generate")
	if err != nil {
		t.Fatalf("Failed to GET generate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestReassignRequiresAbsentUser(t *testing.T) {
	ts, _ := testServer(t)

	resp := postJSON(t, ts.URL+"/api/reassign", map[string]string{"substitute_id": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}
