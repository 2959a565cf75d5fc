// package services implements clients for the remote capabilities favark
// consumes: the Google Photos favorites search (media source) and the Google
// Drive archive store.
package services

import (
	"context"
	"iter"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
)

// Source is the live media-source capability: a lazy, finite, single-pass
// sequence of favorite-flagged candidates. Re-invoking starts a fresh search;
// there is no restart-from-token API.
type Source interface {
	// SearchFavorites yields favorites captured in [start, end] (inclusive,
	// calendar dates). A yielded error aborts the sequence.
	SearchFavorites(ctx context.Context, start, end time.Time) iter.Seq2[models.MediaItem, error]
}

// IdentityKey is the dedup identity of an uploaded artifact. The property
// name namespaces the key space: live items and content hashes never collide.
type IdentityKey struct {
	Property string
	Value    string
}

// MediaItemKey keys a live-sync artifact by its Photos media item ID.
func MediaItemKey(id string) IdentityKey {
	return IdentityKey{Property: "mediaItemId", Value: id}
}

// ContentHashKey keys an offline-sourced artifact by its SHA-256 content hash.
func ContentHashKey(hexDigest string) IdentityKey {
	return IdentityKey{Property: "sha256", Value: hexDigest}
}

// UploadRequest describes one file upload into the archive store.
type UploadRequest struct {
	LocalPath     string
	Filename      string
	MimeType      string
	ParentID      string
	AppProperties map[string]string // includes the identity key; immutable after upload
	Description   any               // marshalled to compact JSON on the remote file
	Policy        retry.Policy
}

// Store is the archive-destination capability. One instance owns its
// process-local folder and existence caches; instances are constructed fresh
// per run and never shared across runs or processes.
type Store interface {
	// EnsureDateFolder returns the folder ID of the date bucket under rootID,
	// creating it when absent. Memoized per (rootID, dateLabel).
	EnsureDateFolder(ctx context.Context, rootID, dateLabel string) (string, error)

	// ExistsByIdentity reports whether a non-trashed artifact carries the
	// identity key. Memoized per key.
	ExistsByIdentity(ctx context.Context, key IdentityKey) (bool, error)

	// UploadSimple performs a one-shot create and returns the new file ID.
	UploadSimple(ctx context.Context, req UploadRequest) (string, error)

	// UploadResumable performs a chunked, session-resumable create and
	// returns the new file ID. Transient chunk errors resume at the
	// server-committed offset, never from zero.
	UploadResumable(ctx context.Context, req UploadRequest, chunkSize int64) (string, error)

	// DownloadTo streams a remote file to dest. Transient failures restart
	// the whole download; downloads are not resumable.
	DownloadTo(ctx context.Context, fileID, dest string, policy retry.Policy) error

	// ListChildren pages through every non-trashed child of folderID.
	ListChildren(ctx context.Context, folderID string) ([]models.RemoteFile, error)

	// UpdateAppProperties is a best-effort, single-attempt metadata update.
	// Callers must tolerate failure; it is used only for non-critical
	// idempotency markers.
	UpdateAppProperties(ctx context.Context, fileID string, props map[string]string) error
}
