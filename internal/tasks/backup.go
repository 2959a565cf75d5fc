package tasks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
	"github.com/favark/favark/internal/services"
	"github.com/favark/favark/internal/shared"
	"github.com/favark/favark/internal/takeout"
)

// BackupQuery describes one live-sync run.
type BackupQuery struct {
	Start        time.Time
	End          time.Time
	Label        string // human-readable range label for summaries
	RootFolderID string
	DryRun       bool
}

const (
	imageDownloadTimeout = 60 * time.Second
	videoDownloadTimeout = 300 * time.Second
)

// Backup archives every favorite in the query window. Items are processed in
// arrival order, one at a time; any error inside one item's pipeline becomes
// a failure record and the run continues. A source pagination error aborts
// the run (run-level) after the summary collected so far is finalized.
func (e *Engine) Backup(ctx context.Context, q BackupQuery) (*models.RunSummary, error) {
	summary := e.newSummary(models.ModeBackup, q.Label, q.DryRun)
	defer func() { summary.FinishedAt = e.now() }()

	tmpDir, err := os.MkdirTemp("", "favark_backup_")
	if err != nil {
		return summary, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	e.logger.Info("starting backup run", "range", q.Label, "dry_run", q.DryRun)

	for item, err := range e.source.SearchFavorites(ctx, q.Start, q.End) {
		if err != nil {
			return summary, fmt.Errorf("favorites search aborted: %w", err)
		}

		summary.Counts.Total++

		if !item.Valid() {
			fail(summary, models.Failure{ID: item.ID, Reason: "missing_required_fields"})
			continue
		}

		status, err := e.backupOne(ctx, item, q, tmpDir)
		if err != nil {
			e.logger.Warn("item failed", "id", item.ID, "err", err)
			fail(summary, models.Failure{ID: item.ID, Error: err.Error()})
			continue
		}

		switch status {
		case statusUploaded:
			summary.Counts.Uploaded++
		case statusSkipped:
			summary.Counts.Skipped++
		}
	}

	e.logger.Info("backup run finished",
		"total", summary.Counts.Total,
		"uploaded", summary.Counts.Uploaded,
		"skipped", summary.Counts.Skipped,
		"failed", summary.Counts.Failed)

	return summary, nil
}

type itemStatus int

const (
	statusUploaded itemStatus = iota
	statusSkipped
)

// backupOne runs the full pipeline for one media item: date bucket, dedup
// pre-check, download, upload.
func (e *Engine) backupOne(ctx context.Context, item models.MediaItem, q BackupQuery, tmpDir string) (itemStatus, error) {
	dateLabel, err := shared.DateLabel(item.CreationTime, e.loc)
	if err != nil {
		return 0, err
	}

	folderID, err := e.store.EnsureDateFolder(ctx, q.RootFolderID, dateLabel)
	if err != nil {
		return 0, err
	}

	exists, err := e.store.ExistsByIdentity(ctx, services.MediaItemKey(item.ID))
	if err != nil {
		return 0, err
	}
	if exists || q.DryRun {
		return statusSkipped, nil
	}

	downloadURL := item.BaseURL + "=d"
	timeout := imageDownloadTimeout
	downloadPolicy := retry.DefaultPolicy()
	uploadPolicy := retry.DefaultPolicy()
	if item.IsVideo() {
		downloadURL = item.BaseURL + "=dv"
		timeout = videoDownloadTimeout
		downloadPolicy = retry.VideoDownloadPolicy()
		uploadPolicy = retry.VideoUploadPolicy()
	}

	filename := item.Filename
	if filename == "" {
		filename = item.ID
	}
	filename = takeout.SafeFilename(filename)

	tmp, err := os.CreateTemp(tmpDir, "gphoto_*_"+filename)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := e.fetch.Fetch(ctx, downloadURL, tmpPath, timeout, downloadPolicy); err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}

	mime := item.MimeType
	if strings.TrimSpace(mime) == "" {
		mime = "application/octet-stream"
	}

	req := services.UploadRequest{
		LocalPath: tmpPath,
		Filename:  filename,
		MimeType:  mime,
		ParentID:  folderID,
		AppProperties: map[string]string{
			"mediaItemId":  item.ID,
			"creationTime": item.CreationTime,
			"mimeType":     mime,
		},
		Description: map[string]any{
			"mediaItem": map[string]any{
				"id":           item.ID,
				"filename":     item.Filename,
				"productUrl":   item.ProductURL,
				"baseUrl":      item.BaseURL,
				"creationTime": item.CreationTime,
				"mimeType":     mime,
			},
		},
		Policy: uploadPolicy,
	}

	if item.IsVideo() {
		if _, err := e.store.UploadResumable(ctx, req, e.chunkSize); err != nil {
			return 0, fmt.Errorf("upload failed: %w", err)
		}
	} else {
		if _, err := e.store.UploadSimple(ctx, req); err != nil {
			return 0, fmt.Errorf("upload failed: %w", err)
		}
	}

	return statusUploaded, nil
}
