package repository

import (
	"context"
	"testing"
	"time"

	"rainsync/internal/models"
)

func TestRunRepository_CreateAndGetLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &models.SyncRun{
			StartedAt:     base.Add(time.Duration(i) * time.Hour),
			FinishedAt:    base.Add(time.Duration(i)*time.Hour + time.Minute),
			SensorsTotal:  26,
			SensorsOK:     25,
			SensorsFailed: 1,
			RowsUpserted:  100 + i,
		}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("create run %d: %v", i, err)
		}
		if run.ID == "" {
			t.Fatal("run ID not generated")
		}
	}

	runs, err := repo.GetLatest(ctx, 2)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RowsUpserted != 102 {
		t.Errorf("newest run first: got rows=%d, want 102", runs[0].RowsUpserted)
	}
	if runs[0].SensorsOK+runs[0].SensorsFailed != runs[0].SensorsTotal {
		t.Errorf("ok+failed != total: %d+%d != %d",
			runs[0].SensorsOK, runs[0].SensorsFailed, runs[0].SensorsTotal)
	}
}

func TestRunRepository_DeleteOld(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	old := &models.SyncRun{
		StartedAt:  time.Now().UTC().Add(-60 * 24 * time.Hour),
		FinishedAt: time.Now().UTC().Add(-60 * 24 * time.Hour),
	}
	recent := &models.SyncRun{
		StartedAt:  time.Now().UTC().Add(-time.Hour),
		FinishedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if err := repo.Create(ctx, recent); err != nil {
		t.Fatalf("create recent: %v", err)
	}

	if err := repo.DeleteOld(ctx, time.Now().UTC().Add(-30*24*time.Hour)); err != nil {
		t.Fatalf("delete old: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after pruning, want 1", count)
	}
}
