package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/pkg/models"
)

func newTrigger(t *testing.T, database *db.DB) *Trigger {
	t.Helper()
	return NewTrigger(database, testLogger(), NewGenerator(database, testLogger(), DefaultOptions()))
}

func TestRunScheduledDisabledByDefault(t *testing.T) {
	database := testDB(t)
	trigger := newTrigger(t, database)

	result, err := trigger.RunScheduled(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Failed to run trigger: %v", err)
	}
	if result.Ran || result.SkipReason != "auto-generation disabled" {
		t.Errorf("Expected disabled skip, got %+v", result)
	}
}

func TestRunScheduledWaitsForTriggerDay(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	cfg := &models.AutoGenerateConfig{Enabled: true, DayOfMonth: 5}
	if err := database.SaveAutoGenerateConfig(ctx, cfg, 0); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	trigger := newTrigger(t, database)

	result, err := trigger.RunScheduled(ctx, time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Failed to run trigger: %v", err)
	}
	if result.Ran || result.SkipReason != "trigger day not reached" {
		t.Errorf("Expected day skip, got %+v", result)
	}
}

func TestRunScheduledGeneratesAndRecordsPeriod(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	ctx := context.Background()
	cfg := &models.AutoGenerateConfig{Enabled: true, DayOfMonth: 1}
	if err := database.SaveAutoGenerateConfig(ctx, cfg, 0); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	trigger := newTrigger(t, database)
	now := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)

	result, err := trigger.RunScheduled(ctx, now)
	if err != nil {
		t.Fatalf("Failed to run trigger: %v", err)
	}
	if !result.Ran || result.Period != "2025-07" {
		t.Fatalf("Expected run for 2025-07, got %+v", result)
	}
	if result.Generation == nil || result.Generation.TasksCreated != 1 {
		t.Fatalf("Expected one generated task, got %+v", result.Generation)
	}

	saved, _, err := database.GetAutoGenerateConfig(ctx)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if saved.LastPeriod != "2025-07" {
		t.Errorf("Expected last period recorded, got %q", saved.LastPeriod)
	}

	// Same period again skips.
	result, err = trigger.RunScheduled(ctx, now)
	if err != nil {
		t.Fatalf("Failed to re-run trigger: %v", err)
	}
	if result.Ran || result.SkipReason != "period already generated" {
		t.Errorf("Expected period skip, got %+v", result)
	}
}

func TestRunScheduledClampsTriggerDayToShortMonth(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	ctx := context.Background()
	cfg := &models.AutoGenerateConfig{Enabled: true, DayOfMonth: 31}
	if err := database.SaveAutoGenerateConfig(ctx, cfg, 0); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	trigger := newTrigger(t, database)

	// Day 31 never exists in February; the last day of the month fires.
	result, err := trigger.RunScheduled(ctx, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Failed to run trigger: %v", err)
	}
	if !result.Ran || result.Period != "2025-02" {
		t.Errorf("Expected run for 2025-02, got %+v", result)
	}

	result, err = trigger.RunScheduled(ctx, time.Date(2025, 4, 29, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Failed to run trigger: %v", err)
	}
	if result.Ran || result.SkipReason != "trigger day not reached" {
		t.Errorf("Expected day skip before April 30, got %+v", result)
	}
}

func TestRunScheduledNextMonthFires(t *testing.T) {
	database := testDB(t)
	seedCatalog(t, database)
	seedStaffing(t, database)
	ctx := context.Background()
	cfg := &models.AutoGenerateConfig{Enabled: true, DayOfMonth: 1, LastPeriod: "2025-07"}
	if err := database.SaveAutoGenerateConfig(ctx, cfg, 0); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	trigger := newTrigger(t, database)

	result, err := trigger.RunScheduled(ctx, time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Failed to run trigger: %v", err)
	}
	if !result.Ran || result.Period != "2025-08" {
		t.Errorf("Expected run for 2025-08, got %+v", result)
	}
}
