package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/favark/favark/internal/models"
)

func sampleSummary() *models.RunSummary {
	started := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	return &models.RunSummary{
		RunID:      "run-123",
		Mode:       models.ModeBackup,
		RangeLabel: "2025-02-22..2025-03-01",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Counts:     models.RunCounts{Total: 10, Uploaded: 7, Skipped: 2, Failed: 1},
		Failures: []models.Failure{
			{ID: "item1", Reason: "upload_failed", Error: "status 500"},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToMarkdown", func(t *testing.T) {
		output := string(ExportToMarkdown(sampleSummary()))

		if !strings.Contains(output, "## favark backup run (2025-03-01)") {
			t.Errorf("markdown missing heading, got: %s", output)
		}
		if !strings.Contains(output, "- Uploaded: 7") {
			t.Errorf("markdown missing uploaded count")
		}
		if !strings.Contains(output, "- Failed: 1") {
			t.Errorf("markdown missing failed count")
		}
		if !strings.Contains(output, "upload_failed") {
			t.Errorf("markdown missing failure sample")
		}
		if strings.Contains(output, "Archives seen") {
			t.Errorf("backup summary should not include takeout counts")
		}
	})

	t.Run("ExportToMarkdown takeout counts", func(t *testing.T) {
		summary := sampleSummary()
		summary.Mode = models.ModeTakeout
		summary.Counts.ArchivesSeen = 4
		summary.Counts.ArchivesProcessed = 2
		summary.Counts.FavoritesFound = 9

		output := string(ExportToMarkdown(summary))

		if !strings.Contains(output, "- Archives seen: 4") {
			t.Errorf("takeout summary missing archives seen")
		}
		if !strings.Contains(output, "- Favorites found: 9") {
			t.Errorf("takeout summary missing favorites found")
		}
	})

	t.Run("ExportToMarkdown caps failure sample", func(t *testing.T) {
		summary := sampleSummary()
		summary.Failures = nil
		for i := 0; i < maxFailureSample+5; i++ {
			summary.Failures = append(summary.Failures, models.Failure{ID: "x", Reason: "upload_failed"})
		}
		summary.Counts.Failed = len(summary.Failures)

		output := string(ExportToMarkdown(summary))

		if !strings.Contains(output, "... and 5 more") {
			t.Errorf("expected truncation marker, got: %s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		summary := sampleSummary()
		summary.DryRun = true

		output := string(ExportToText(summary))

		if !strings.Contains(output, "Run: run-123 (backup)") {
			t.Errorf("text missing run line, got: %s", output)
		}
		if !strings.Contains(output, "Dry run: no transfers performed") {
			t.Errorf("text missing dry run line")
		}
		if !strings.Contains(output, "Uploaded: 7") {
			t.Errorf("text missing uploaded count")
		}
		if !strings.Contains(output, "1. {") {
			t.Errorf("text missing numbered failure line")
		}
	})

	t.Run("ExportFailuresCSV", func(t *testing.T) {
		data, err := ExportFailuresCSV(sampleSummary())
		if err != nil {
			t.Fatalf("ExportFailuresCSV failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Run ID,Item,Reason,Error") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "run-123,item1,upload_failed,status 500") {
			t.Errorf("CSV missing failure row, got: %s", output)
		}
	})
}

func TestFormatRunRow(t *testing.T) {
	rec := models.RunRecord{
		RunID:      "run-1",
		Mode:       "takeout",
		RangeLabel: "max_zips=5",
		DryRun:     true,
		FinishedAt: time.Date(2025, 3, 1, 2, 1, 0, 0, time.UTC),
		Counts:     models.RunCounts{Uploaded: 3, Skipped: 1, Failed: 0},
	}

	row := FormatRunRow(rec)

	for _, want := range []string{"2025-03-01 02:01", "takeout (dry run)", "max_zips=5", "uploaded=3", "failed=0"} {
		if !strings.Contains(row, want) {
			t.Errorf("row missing %q, got: %s", want, row)
		}
	}
}
