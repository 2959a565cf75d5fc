package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with the run log schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRunRepository(db)
	if err := repo.CreateSchema(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

func testSummary(id string, mode models.RunMode, finished time.Time) *models.RunSummary {
	return &models.RunSummary{
		RunID:      id,
		Mode:       mode,
		RangeLabel: "2025-01-01..2025-01-08",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Counts:     models.RunCounts{Total: 5, Uploaded: 3, Skipped: 2},
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateSchema is idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		if err := repo.CreateSchema(ctx); err != nil {
			t.Fatalf("second CreateSchema failed: %v", err)
		}
	})

	t.Run("Save and List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		base := time.Date(2025, 2, 1, 2, 0, 0, 0, time.UTC)

		if err := repo.Save(ctx, testSummary("run-a", models.ModeBackup, base)); err != nil {
			t.Fatalf("failed to save run-a: %v", err)
		}
		if err := repo.Save(ctx, testSummary("run-b", models.ModeTakeout, base.Add(time.Hour))); err != nil {
			t.Fatalf("failed to save run-b: %v", err)
		}

		records, err := repo.List(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}

		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].RunID != "run-b" {
			t.Errorf("expected newest run first, got %s", records[0].RunID)
		}
		if records[0].Mode != "takeout" {
			t.Errorf("expected mode takeout, got %s", records[0].Mode)
		}
		if records[1].Counts.Uploaded != 3 {
			t.Errorf("expected uploaded 3, got %d", records[1].Counts.Uploaded)
		}
	})

	t.Run("List respects limit", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		base := time.Date(2025, 2, 1, 2, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			s := testSummary(shared.GenerateID(), models.ModeBackup, base.Add(time.Duration(i)*time.Hour))
			if err := repo.Save(ctx, s); err != nil {
				t.Fatalf("failed to save run %d: %v", i, err)
			}
		}

		records, err := repo.List(ctx, 3)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records, got %d", len(records))
		}
	})
}
