// package repositories provides the local run log: one SQLite table recording
// the outcome of every favark run.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/favark/favark/internal/models"
)

// RunRepository persists run summaries to the local SQLite run log.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a run log repository over the given connection.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateSchema creates the runs table if it does not exist. Safe to call on
// every startup.
func (r *RunRepository) CreateSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			range_label TEXT NOT NULL DEFAULT '',
			dry_run INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			uploaded INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			archives_seen INTEGER NOT NULL DEFAULT 0,
			archives_processed INTEGER NOT NULL DEFAULT 0,
			favorites_found INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

// Save appends one finished run to the log.
func (r *RunRepository) Save(ctx context.Context, summary *models.RunSummary) error {
	query := `
		INSERT INTO runs (run_id, mode, range_label, dry_run, started_at, finished_at,
			total, uploaded, skipped, failed, archives_seen, archives_processed, favorites_found)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		summary.RunID,
		string(summary.Mode),
		summary.RangeLabel,
		summary.DryRun,
		summary.StartedAt.UTC(),
		summary.FinishedAt.UTC(),
		summary.Counts.Total,
		summary.Counts.Uploaded,
		summary.Counts.Skipped,
		summary.Counts.Failed,
		summary.Counts.ArchivesSeen,
		summary.Counts.ArchivesProcessed,
		summary.Counts.FavoritesFound,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, mode, range_label, dry_run, started_at, finished_at,
			total, uploaded, skipped, failed, archives_seen, archives_processed, favorites_found
		FROM runs
		ORDER BY finished_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []models.RunRecord
	for rows.Next() {
		var rec models.RunRecord
		var started, finished time.Time
		err := rows.Scan(
			&rec.RunID,
			&rec.Mode,
			&rec.RangeLabel,
			&rec.DryRun,
			&started,
			&finished,
			&rec.Counts.Total,
			&rec.Counts.Uploaded,
			&rec.Counts.Skipped,
			&rec.Counts.Failed,
			&rec.Counts.ArchivesSeen,
			&rec.Counts.ArchivesProcessed,
			&rec.Counts.FavoritesFound,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = started
		rec.FinishedAt = finished
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return records, nil
}
