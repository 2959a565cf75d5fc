package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/services"
	tu "github.com/favark/favark/internal/testing"
)

func testQuery(dryRun bool) BackupQuery {
	return BackupQuery{
		Start:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Label:        "2025-01..2025-01",
		RootFolderID: "root",
		DryRun:       dryRun,
	}
}

func image(id string) models.MediaItem {
	return models.MediaItem{
		ID:           id,
		Filename:     id + ".jpg",
		MimeType:     "image/jpeg",
		BaseURL:      "https://lh3.example/" + id,
		CreationTime: "2025-01-05T10:00:00Z",
	}
}

func video(id string) models.MediaItem {
	m := image(id)
	m.Filename = id + ".mp4"
	m.MimeType = "video/mp4"
	return m
}

func newBackupEngine(store *tu.MockStore, source *tu.MockSource, fetcher *tu.MockFetcher) *Engine {
	if fetcher == nil {
		fetcher = &tu.MockFetcher{Body: []byte("bytes")}
	}
	return NewEngine(EngineOpts{
		Source:  source,
		Store:   store,
		Fetcher: fetcher,
		Now:     func() time.Time { return time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC) },
	})
}

func TestBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads new items and records counts", func(t *testing.T) {
		store := &tu.MockStore{}
		engine := newBackupEngine(store, &tu.MockSource{Items: []models.MediaItem{image("a"), video("b")}}, nil)

		summary, err := engine.Backup(ctx, testQuery(false))
		if err != nil {
			t.Fatalf("Backup failed: %v", err)
		}

		if summary.Counts.Total != 2 || summary.Counts.Uploaded != 2 || summary.Counts.Failed != 0 {
			t.Errorf("unexpected counts: %+v", summary.Counts)
		}
		if len(store.Uploads) != 2 {
			t.Fatalf("expected 2 uploads, got %d", len(store.Uploads))
		}
		if store.Uploads[0].Resumable {
			t.Error("image must use the simple upload path")
		}
		if !store.Uploads[1].Resumable {
			t.Error("video must use the resumable upload path")
		}
		if store.Uploads[0].Req.AppProperties["mediaItemId"] != "a" {
			t.Errorf("missing identity key: %+v", store.Uploads[0].Req.AppProperties)
		}
	})

	t.Run("video downloads use the =dv suffix", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Body: []byte("bytes")}
		engine := newBackupEngine(&tu.MockStore{}, &tu.MockSource{Items: []models.MediaItem{image("a"), video("b")}}, fetcher)

		if _, err := engine.Backup(ctx, testQuery(false)); err != nil {
			t.Fatal(err)
		}

		urls := fetcher.Fetched()
		if len(urls) != 2 {
			t.Fatalf("expected 2 downloads, got %d", len(urls))
		}
		if !strings.HasSuffix(urls[0], "=d") || strings.HasSuffix(urls[0], "=dv") {
			t.Errorf("image download URL wrong: %s", urls[0])
		}
		if !strings.HasSuffix(urls[1], "=dv") {
			t.Errorf("video download URL wrong: %s", urls[1])
		}
	})

	t.Run("existing items are skipped", func(t *testing.T) {
		store := &tu.MockStore{Existing: map[services.IdentityKey]bool{
			services.MediaItemKey("a"): true,
		}}
		engine := newBackupEngine(store, &tu.MockSource{Items: []models.MediaItem{image("a"), image("b")}}, nil)

		summary, err := engine.Backup(ctx, testQuery(false))
		if err != nil {
			t.Fatal(err)
		}

		if summary.Counts.Skipped != 1 || summary.Counts.Uploaded != 1 {
			t.Errorf("unexpected counts: %+v", summary.Counts)
		}
		if len(store.Uploads) != 1 || store.Uploads[0].Req.AppProperties["mediaItemId"] != "b" {
			t.Errorf("wrong item uploaded: %+v", store.Uploads)
		}
	})

	t.Run("second run re-uploads nothing", func(t *testing.T) {
		store := &tu.MockStore{}
		items := []models.MediaItem{image("a"), video("b")}

		engine := newBackupEngine(store, &tu.MockSource{Items: items}, nil)
		if _, err := engine.Backup(ctx, testQuery(false)); err != nil {
			t.Fatal(err)
		}

		// Fresh engine over the same store state, as a new process would see it.
		engine = newBackupEngine(store, &tu.MockSource{Items: items}, nil)
		summary, err := engine.Backup(ctx, testQuery(false))
		if err != nil {
			t.Fatal(err)
		}

		if summary.Counts.Uploaded != 0 || summary.Counts.Skipped != 2 {
			t.Errorf("second run must skip everything: %+v", summary.Counts)
		}
		if len(store.Uploads) != 2 {
			t.Errorf("expected uploads only from the first run, got %d", len(store.Uploads))
		}
	})

	t.Run("dry run performs lookups but never transfers", func(t *testing.T) {
		store := &tu.MockStore{}
		fetcher := &tu.MockFetcher{Body: []byte("bytes")}
		engine := newBackupEngine(store, &tu.MockSource{Items: []models.MediaItem{image("a")}}, fetcher)

		summary, err := engine.Backup(ctx, testQuery(true))
		if err != nil {
			t.Fatal(err)
		}

		if summary.Counts.Skipped != 1 || summary.Counts.Uploaded != 0 {
			t.Errorf("unexpected counts: %+v", summary.Counts)
		}
		if len(store.Uploads) != 0 || len(fetcher.Fetched()) != 0 {
			t.Error("dry run must not transfer bytes")
		}
		if len(store.FolderCalls) != 1 || len(store.ExistsCalls) != 1 {
			t.Errorf("dry run must still perform lookups: folders=%d exists=%d",
				len(store.FolderCalls), len(store.ExistsCalls))
		}
	})

	t.Run("invalid items fail without remote calls", func(t *testing.T) {
		store := &tu.MockStore{}
		bad := models.MediaItem{ID: "no-base-url", CreationTime: "2025-01-05T10:00:00Z"}
		engine := newBackupEngine(store, &tu.MockSource{Items: []models.MediaItem{bad, image("ok")}}, nil)

		summary, err := engine.Backup(ctx, testQuery(false))
		if err != nil {
			t.Fatal(err)
		}

		if summary.Counts.Failed != 1 || summary.Counts.Uploaded != 1 {
			t.Errorf("unexpected counts: %+v", summary.Counts)
		}
		if summary.Failures[0].Reason != "missing_required_fields" {
			t.Errorf("unexpected failure: %+v", summary.Failures[0])
		}
		if len(store.FolderCalls) != 1 {
			t.Errorf("invalid item must not reach the store, folder calls: %v", store.FolderCalls)
		}
	})

	t.Run("per-item failure isolation", func(t *testing.T) {
		store := &tu.MockStore{UploadErr: errors.New("quota exceeded")}
		engine := newBackupEngine(store, &tu.MockSource{Items: []models.MediaItem{image("a"), image("b")}}, nil)

		summary, err := engine.Backup(ctx, testQuery(false))
		if err != nil {
			t.Fatal(err)
		}

		if summary.Counts.Failed != 2 || summary.Counts.Total != 2 {
			t.Errorf("unexpected counts: %+v", summary.Counts)
		}
		for _, f := range summary.Failures {
			if !strings.Contains(f.Error, "quota exceeded") {
				t.Errorf("failure missing cause: %+v", f)
			}
		}
	})

	t.Run("source errors abort the run", func(t *testing.T) {
		store := &tu.MockStore{}
		source := &tu.MockSource{Items: []models.MediaItem{image("a")}, Err: errors.New("token expired")}
		engine := newBackupEngine(store, source, nil)

		summary, err := engine.Backup(ctx, testQuery(false))
		if err == nil || !strings.Contains(err.Error(), "token expired") {
			t.Fatalf("expected run-level error, got %v", err)
		}
		// Work done before the abort is preserved in the summary.
		if summary.Counts.Uploaded != 1 {
			t.Errorf("expected 1 upload before abort, got %+v", summary.Counts)
		}
	})
}
