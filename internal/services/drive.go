// Google Drive implementation of [Store].
//
// Metadata operations go through the official Drive v3 client; resumable
// uploads speak the upload endpoint directly (see upload.go) because the SDK
// hides chunk-level control.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
	"github.com/favark/favark/internal/shared"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const folderMimeType = "application/vnd.google-apps.folder"

type folderKey struct {
	rootID string
	label  string
}

// DriveStore implements [Store] against Google Drive. The folder-id and
// existence caches are owned exclusively by one instance per run; every run
// starts cold and nothing is invalidated by concurrent external mutation
// (single-instance, non-overlapping scheduled execution is assumed).
type DriveStore struct {
	svc        *drive.Service
	httpClient *http.Client
	uploadURL  string
	limiter    *rate.Limiter
	logger     *log.Logger
	policy     retry.Policy

	folderCache map[folderKey]string
	existsCache map[IdentityKey]bool
}

// DriveOpts contains construction options for [DriveStore].
type DriveOpts struct {
	Service    *drive.Service
	HTTPClient *http.Client // authenticated; used for resumable upload sessions
	UploadURL  string       // defaults to the public upload endpoint; overridden in tests
	Logger     *log.Logger
	RateLimit  float64 // requests per second, default 10
	Burst      int     // default 10
	Policy     *retry.Policy
}

// NewDriveStore creates a Drive-backed archive store with fresh caches.
func NewDriveStore(opts DriveOpts) *DriveStore {
	if opts.UploadURL == "" {
		opts.UploadURL = "https://www.googleapis.com/upload/drive/v3/files"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	policy := retry.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	return &DriveStore{
		svc:         opts.Service,
		httpClient:  opts.HTTPClient,
		uploadURL:   opts.UploadURL,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		logger:      opts.Logger,
		policy:      policy,
		folderCache: make(map[folderKey]string),
		existsCache: make(map[IdentityKey]bool),
	}
}

// escapeQuery escapes single quotes in values embedded in Drive query strings.
func escapeQuery(v string) string {
	return strings.ReplaceAll(v, `'`, `\'`)
}

// EnsureDateFolder returns the ID of the date-bucket folder with the exact
// name dateLabel under rootID, creating it when no match exists. The first
// query result wins; Drive's ordering for duplicate names is undefined.
func (s *DriveStore) EnsureDateFolder(ctx context.Context, rootID, dateLabel string) (string, error) {
	key := folderKey{rootID: rootID, label: dateLabel}
	if id, ok := s.folderCache[key]; ok {
		return id, nil
	}

	q := fmt.Sprintf("mimeType='%s' and '%s' in parents and name='%s' and trashed=false",
		folderMimeType, escapeQuery(rootID), escapeQuery(dateLabel))

	list, err := retry.Do(ctx, func() (*drive.FileList, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.svc.Files.List().Q(q).Spaces("drive").Fields("files(id,name)").PageSize(1).Context(ctx).Do()
	}, IsTransient, s.policy)
	if err != nil {
		return "", fmt.Errorf("failed to query date folder %s: %w", dateLabel, err)
	}

	var folderID string
	if len(list.Files) > 0 {
		folderID = list.Files[0].Id
	} else {
		created, err := retry.Do(ctx, func() (*drive.File, error) {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			meta := &drive.File{
				Name:     dateLabel,
				MimeType: folderMimeType,
				Parents:  []string{rootID},
			}
			return s.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
		}, IsTransient, s.policy)
		if err != nil {
			return "", fmt.Errorf("failed to create date folder %s: %w", dateLabel, err)
		}
		folderID = created.Id
		s.logger.Debug("created date folder", "label", dateLabel, "id", folderID)
	}

	s.folderCache[key] = folderID
	return folderID, nil
}

// ExistsByIdentity reports whether any non-trashed file carries the identity
// property. Results are memoized for the lifetime of this store.
func (s *DriveStore) ExistsByIdentity(ctx context.Context, key IdentityKey) (bool, error) {
	if exists, ok := s.existsCache[key]; ok {
		return exists, nil
	}

	q := fmt.Sprintf("trashed=false and appProperties has { key='%s' and value='%s' }",
		escapeQuery(key.Property), escapeQuery(key.Value))

	list, err := retry.Do(ctx, func() (*drive.FileList, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.svc.Files.List().Q(q).Spaces("drive").Fields("files(id)").PageSize(1).Context(ctx).Do()
	}, IsTransient, s.policy)
	if err != nil {
		return false, fmt.Errorf("failed to query identity %s=%s: %w", key.Property, key.Value, err)
	}

	exists := len(list.Files) > 0
	s.existsCache[key] = exists
	return exists, nil
}

// compactDescription marshals the descriptive payload embedded on uploads.
func compactDescription(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// UploadSimple performs a one-shot files.create with media. The local file is
// reopened per attempt so retries never send a drained reader.
func (s *DriveStore) UploadSimple(ctx context.Context, req UploadRequest) (string, error) {
	meta := &drive.File{
		Name:          req.Filename,
		Parents:       []string{req.ParentID},
		AppProperties: req.AppProperties,
		Description:   compactDescription(req.Description),
	}

	created, err := retry.Do(ctx, func() (*drive.File, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		f, err := os.Open(req.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", req.LocalPath, err)
		}
		defer f.Close()
		return s.svc.Files.Create(meta).Media(f, googleapi.ContentType(req.MimeType)).Fields("id").Context(ctx).Do()
	}, IsTransient, req.Policy)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", req.Filename, err)
	}

	s.rememberUpload(req)
	return created.Id, nil
}

// rememberUpload primes the existence cache with the identity key just
// written, so the same run never re-queries it.
func (s *DriveStore) rememberUpload(req UploadRequest) {
	for prop, value := range req.AppProperties {
		key := IdentityKey{Property: prop, Value: value}
		if prop == MediaItemKey("").Property || prop == ContentHashKey("").Property {
			s.existsCache[key] = true
		}
	}
}

// DownloadTo streams fileID into dest. Each retry restarts the transfer from
// the beginning; the destination is truncated per attempt.
func (s *DriveStore) DownloadTo(ctx context.Context, fileID, dest string, policy retry.Policy) error {
	op := func() (struct{}, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return struct{}{}, err
		}
		resp, err := s.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		return struct{}{}, writeStream(dest, resp.Body)
	}

	if _, err := retry.Do(ctx, op, IsTransient, policy); err != nil {
		return fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	return nil
}

// ListChildren pages through every non-trashed child of folderID until the
// continuation token is exhausted. Runs see small listings, so the result is
// fully materialized.
func (s *DriveStore) ListChildren(ctx context.Context, folderID string) ([]models.RemoteFile, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))

	var out []models.RemoteFile
	pageToken := ""
	for {
		list, err := retry.Do(ctx, func() (*drive.FileList, error) {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			call := s.svc.Files.List().Q(q).Spaces("drive").
				Fields("nextPageToken, files(id,name,mimeType,modifiedTime,appProperties)").
				PageSize(100).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Do()
		}, IsTransient, s.policy)
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", folderID, err)
		}

		for _, f := range list.Files {
			out = append(out, models.RemoteFile{
				ID:            f.Id,
				Name:          f.Name,
				MimeType:      f.MimeType,
				ModifiedTime:  f.ModifiedTime,
				AppProperties: f.AppProperties,
			})
		}

		if list.NextPageToken == "" {
			return out, nil
		}
		pageToken = list.NextPageToken
	}
}

// UpdateAppProperties performs a single-attempt, best-effort metadata patch.
// It is used only for non-critical idempotency markers; callers tolerate
// failure.
func (s *DriveStore) UpdateAppProperties(ctx context.Context, fileID string, props map[string]string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.svc.Files.Update(fileID, &drive.File{AppProperties: props}).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update properties of %s: %w", fileID, err)
	}
	return nil
}
