package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
	"github.com/favark/favark/internal/services"
	"github.com/favark/favark/internal/shared"
	"github.com/favark/favark/internal/takeout"
)

// TakeoutOpts describes one archive-sync run.
type TakeoutOpts struct {
	SourceFolderID string // staging folder holding Takeout zips
	RootFolderID   string // archive root for date buckets
	MaxArchives    int    // cap per run, default 5
	DryRun         bool
}

const (
	processedProp   = "takeoutProcessed"
	processedAtProp = "takeoutProcessedAt"
)

// ProcessTakeout ingests pending Takeout zips from the staging folder:
// download, extract favorites, dedup by content hash, upload. Failing to
// enumerate the staging folder is a run-level error; everything below that is
// isolated per archive and per entry. After an archive is processed its
// "processed" marker is written best-effort; if that write fails the archive
// is simply reconsidered next run, which content-hash dedup makes a no-op.
func (e *Engine) ProcessTakeout(ctx context.Context, opts TakeoutOpts) (*models.RunSummary, error) {
	if opts.MaxArchives <= 0 {
		opts.MaxArchives = 5
	}

	summary := e.newSummary(models.ModeTakeout, fmt.Sprintf("max_zips=%d", opts.MaxArchives), opts.DryRun)
	defer func() { summary.FinishedAt = e.now() }()

	children, err := e.store.ListChildren(ctx, opts.SourceFolderID)
	if err != nil {
		return summary, fmt.Errorf("failed to enumerate takeout staging folder: %w", err)
	}

	var zips []models.RemoteFile
	for _, f := range children {
		if f.MimeType == "application/zip" || strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			zips = append(zips, f)
		}
	}
	summary.Counts.ArchivesSeen = len(zips)

	var pending []models.RemoteFile
	for _, f := range zips {
		if f.AppProperties[processedProp] != "true" {
			pending = append(pending, f)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].ModifiedTime != pending[j].ModifiedTime {
			return pending[i].ModifiedTime < pending[j].ModifiedTime
		}
		return pending[i].Name < pending[j].Name
	})
	if len(pending) > opts.MaxArchives {
		pending = pending[:opts.MaxArchives]
	}

	e.logger.Info("starting takeout run",
		"seen", summary.Counts.ArchivesSeen, "pending", len(pending), "dry_run", opts.DryRun)

	tmpDir, err := os.MkdirTemp("", "favark_takeout_")
	if err != nil {
		return summary, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, archive := range pending {
		summary.Counts.ArchivesProcessed++
		e.processArchive(ctx, archive, opts, tmpDir, summary)
	}

	summary.Counts.Total = summary.Counts.FavoritesFound

	e.logger.Info("takeout run finished",
		"archives", summary.Counts.ArchivesProcessed,
		"favorites", summary.Counts.FavoritesFound,
		"uploaded", summary.Counts.Uploaded,
		"skipped", summary.Counts.Skipped,
		"failed", summary.Counts.Failed)

	return summary, nil
}

// processArchive downloads and ingests a single archive, isolating its
// failures from the rest of the run.
func (e *Engine) processArchive(ctx context.Context, archive models.RemoteFile, opts TakeoutOpts, tmpDir string, summary *models.RunSummary) {
	zipPath := filepath.Join(tmpDir, takeout.SafeFilename(archive.Name))
	defer os.Remove(zipPath)

	// Archives are not resumable; a failed download restarts from scratch.
	policy := retry.Policy{MaxRetries: 6, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	if err := e.store.DownloadTo(ctx, archive.ID, zipPath, policy); err != nil {
		e.logger.Warn("archive download failed", "name", archive.Name, "err", err)
		fail(summary, models.Failure{ID: archive.Name, Reason: "archive_download_failed", Error: err.Error()})
		return
	}

	favorites, err := e.extractor.Process(ctx, zipPath, func(entry takeout.Entry, entryErr error) error {
		if entryErr != nil {
			reason := "entry_invalid"
			switch {
			case errors.Is(entryErr, shared.ErrMediaNotFound):
				reason = "media_not_found"
			case errors.Is(entryErr, shared.ErrNoTakenTime):
				reason = "taken_time_not_found"
			}
			fail(summary, models.Failure{ID: entry.MetaPath, Reason: reason, Error: entryErr.Error()})
			return nil
		}

		status, err := e.takeoutOne(ctx, entry, archive, opts, tmpDir)
		if err != nil {
			e.logger.Warn("entry failed", "media", entry.MediaPath, "err", err)
			fail(summary, models.Failure{ID: entry.MediaPath, Reason: "upload_failed", Error: err.Error()})
			return nil
		}

		switch status {
		case statusUploaded:
			summary.Counts.Uploaded++
		case statusSkipped:
			summary.Counts.Skipped++
		}
		return nil
	})
	summary.Counts.FavoritesFound += favorites
	if err != nil {
		fail(summary, models.Failure{ID: archive.Name, Reason: "archive_processing_failed", Error: err.Error()})
		return
	}

	// Mark the zip processed so daily polling stays idempotent. Best-effort:
	// the next run re-reads the archive if this write is lost. Dry runs leave
	// the marker untouched.
	if opts.DryRun {
		return
	}
	props := make(map[string]string, len(archive.AppProperties)+2)
	for k, v := range archive.AppProperties {
		props[k] = v
	}
	props[processedProp] = "true"
	props[processedAtProp] = e.now().In(e.loc).Format(time.RFC3339)
	if err := e.store.UpdateAppProperties(ctx, archive.ID, props); err != nil {
		e.logger.Warn("failed to mark archive processed", "name", archive.Name, "err", err)
	}
}

// takeoutOne materializes one favorite entry, dedups it by content hash, and
// uploads it with provenance metadata.
func (e *Engine) takeoutOne(ctx context.Context, entry takeout.Entry, archive models.RemoteFile, opts TakeoutOpts, tmpDir string) (itemStatus, error) {
	tmpPath, digest, err := takeout.Materialize(entry, tmpDir)
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmpPath)

	exists, err := e.store.ExistsByIdentity(ctx, services.ContentHashKey(digest))
	if err != nil {
		return 0, err
	}
	if exists || opts.DryRun {
		return statusSkipped, nil
	}

	dateLabel := entry.Taken.In(e.loc).Format("2006-01-02")
	folderID, err := e.store.EnsureDateFolder(ctx, opts.RootFolderID, dateLabel)
	if err != nil {
		return 0, err
	}

	uploadPolicy := retry.DefaultPolicy()
	if entry.IsVideo() {
		uploadPolicy = retry.VideoUploadPolicy()
	}

	req := services.UploadRequest{
		LocalPath: tmpPath,
		Filename:  entry.Filename,
		MimeType:  entry.MimeType,
		ParentID:  folderID,
		AppProperties: map[string]string{
			"source":    "google_takeout",
			"sha256":    digest,
			"takenDate": dateLabel,
		},
		Description: map[string]any{
			"source": "google_takeout",
			"takeout": map[string]any{
				"zip":      archive.Name,
				"path":     entry.MediaPath,
				"metaPath": entry.MetaPath,
			},
			"meta":      entry.Meta,
			"sha256":    digest,
			"takenDate": dateLabel,
		},
		Policy: uploadPolicy,
	}

	if entry.IsVideo() {
		if _, err := e.store.UploadResumable(ctx, req, e.chunkSize); err != nil {
			return 0, err
		}
	} else {
		if _, err := e.store.UploadSimple(ctx, req); err != nil {
			return 0, err
		}
	}

	return statusUploaded, nil
}
