package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

func seedPresented(t *testing.T, database *db.DB, id, period string, presentedAt time.Time) {
	t.Helper()
	exec(t, database, `INSERT INTO tasks (id, client_id, taxpayer_id, obligation_id, fiscal_year, period, official_due, internal_due, state)
		VALUES (?, 'c1', 'tp1', 'ob-iva', 2025, ?, '2025-08-17', '2025-08-14', 'presentado')`, id, period)
	if err := database.SetTaskPresentedAt(context.Background(), id, presentedAt); err != nil {
		t.Fatalf("Failed to backdate presentation: %v", err)
	}
}

func TestDetectRiskFlagsStalePresentation(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
	seedPresented(t, database, "t-old", "2025-06", now.AddDate(0, 0, -5))
	seedPresented(t, database, "t-new", "2025-07", now.AddDate(0, 0, -1))
	d := NewRiskDetector(database, testLogger(), DefaultOptions())
	ctx := context.Background()

	result, err := d.DetectRisk(ctx, now)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if result.Flagged != 1 || result.Cleared != 0 || len(result.Errors) != 0 {
		t.Fatalf("Expected exactly t-old flagged, got %+v", result)
	}

	atRisk, err := d.AtRiskDetail(ctx)
	if err != nil {
		t.Fatalf("Failed to list at risk: %v", err)
	}
	if len(atRisk) != 1 || atRisk[0].ID != "t-old" {
		t.Fatalf("Expected t-old at risk, got %+v", atRisk)
	}

	events, _ := database.ListTaskEvents(ctx, "t-old")
	if len(events) != 1 || events[0].EventType != models.EventDeteccionRiesgo {
		t.Errorf("Expected risk event on t-old, got %+v", events)
	}

	// A rerun does not flag twice.
	result, err = d.DetectRisk(ctx, now)
	if err != nil {
		t.Fatalf("Failed to re-sweep: %v", err)
	}
	if result.Flagged != 0 {
		t.Errorf("Expected idempotent sweep, got %+v", result)
	}
}

func TestDetectRiskReceiptSuppressesAndClears(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
	seedPresented(t, database, "t-old", "2025-06", now.AddDate(0, 0, -5))
	d := NewRiskDetector(database, testLogger(), DefaultOptions())
	ctx := context.Background()

	if _, err := d.DetectRisk(ctx, now); err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}

	if err := database.AddTaskDocument(ctx, "t-old", DocTypePaymentReceipt); err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	result, err := d.DetectRisk(ctx, now)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if result.Cleared != 1 || result.Flagged != 0 {
		t.Fatalf("Expected flag cleared after receipt, got %+v", result)
	}

	atRisk, _ := d.AtRiskDetail(ctx)
	if len(atRisk) != 0 {
		t.Errorf("Expected nothing at risk, got %d", len(atRisk))
	}
}

func TestDetectRiskIgnoresTaskWithReceipt(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
	seedPresented(t, database, "t-old", "2025-06", now.AddDate(0, 0, -5))
	ctx := context.Background()
	if err := database.AddTaskDocument(ctx, "t-old", DocTypePaymentReceipt); err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	d := NewRiskDetector(database, testLogger(), DefaultOptions())

	result, err := d.DetectRisk(ctx, now)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if result.Flagged != 0 || result.Cleared != 0 {
		t.Errorf("Expected quiet sweep, got %+v", result)
	}
}
