// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"iter"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
	"github.com/favark/favark/internal/services"
)

// MockSource is a test double for [services.Source]. It yields the configured
// items and then, optionally, a terminal error.
type MockSource struct {
	Items []models.MediaItem
	Err   error
}

func (m *MockSource) SearchFavorites(ctx context.Context, start, end time.Time) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		for _, item := range m.Items {
			if !yield(item, nil) {
				return
			}
		}
		if m.Err != nil {
			yield(models.MediaItem{}, m.Err)
		}
	}
}

// UploadCall records one upload request the mock store received.
type UploadCall struct {
	Req       services.UploadRequest
	Resumable bool
}

// MockStore is a test double for [services.Store]. Zero value behaves as an
// empty archive that accepts everything; knobs inject failures and
// pre-existing state.
type MockStore struct {
	mu sync.Mutex

	// Existing holds identity keys that already exist in the archive.
	Existing map[services.IdentityKey]bool
	// Children is returned from ListChildren.
	Children []models.RemoteFile

	FolderErr error
	ExistsErr error
	UploadErr error
	ListErr   error

	// DownloadFunc, when set, is called instead of writing an empty file.
	DownloadFunc func(fileID, dest string) error

	FolderCalls   []string // dateLabel per EnsureDateFolder call
	ExistsCalls   []services.IdentityKey
	Uploads       []UploadCall
	UpdatedProps  map[string]map[string]string
	DownloadCalls []string
}

func (m *MockStore) EnsureDateFolder(ctx context.Context, rootID, dateLabel string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FolderCalls = append(m.FolderCalls, dateLabel)
	if m.FolderErr != nil {
		return "", m.FolderErr
	}
	return "folder-" + dateLabel, nil
}

func (m *MockStore) ExistsByIdentity(ctx context.Context, key services.IdentityKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExistsCalls = append(m.ExistsCalls, key)
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.Existing[key], nil
}

func (m *MockStore) UploadSimple(ctx context.Context, req services.UploadRequest) (string, error) {
	return m.record(req, false)
}

func (m *MockStore) UploadResumable(ctx context.Context, req services.UploadRequest, chunkSize int64) (string, error) {
	return m.record(req, true)
}

func (m *MockStore) record(req services.UploadRequest, resumable bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.Uploads = append(m.Uploads, UploadCall{Req: req, Resumable: resumable})
	if m.Existing == nil {
		m.Existing = map[services.IdentityKey]bool{}
	}
	for _, prop := range []string{"mediaItemId", "sha256"} {
		if v, ok := req.AppProperties[prop]; ok {
			m.Existing[services.IdentityKey{Property: prop, Value: v}] = true
		}
	}
	return "file-" + req.Filename, nil
}

func (m *MockStore) DownloadTo(ctx context.Context, fileID, dest string, policy retry.Policy) error {
	m.mu.Lock()
	m.DownloadCalls = append(m.DownloadCalls, fileID)
	fn := m.DownloadFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(fileID, dest)
	}
	return os.WriteFile(dest, nil, 0o644)
}

func (m *MockStore) ListChildren(ctx context.Context, folderID string) ([]models.RemoteFile, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Children, nil
}

func (m *MockStore) UpdateAppProperties(ctx context.Context, fileID string, props map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdatedProps == nil {
		m.UpdatedProps = map[string]map[string]string{}
	}
	m.UpdatedProps[fileID] = props
	return nil
}

// MockFetcher is a test double for the media byte fetcher. It writes Body to
// dest unless Err is set.
type MockFetcher struct {
	Body []byte
	Err  error

	mu   sync.Mutex
	URLs []string
}

func (f *MockFetcher) Fetch(ctx context.Context, url, dest string, timeout time.Duration, policy retry.Policy) error {
	f.mu.Lock()
	f.URLs = append(f.URLs, url)
	f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	return os.WriteFile(dest, f.Body, 0o644)
}

// Fetched returns the URLs fetched so far.
func (f *MockFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.URLs...)
}

// MockSink is a test double for notify.Sink.
type MockSink struct {
	Err       error
	Summaries []*models.RunSummary
}

func (s *MockSink) Report(ctx context.Context, summary *models.RunSummary) error {
	s.Summaries = append(s.Summaries, summary)
	return s.Err
}

// MockTrigger is a test double for notify.Trigger.
type MockTrigger struct {
	Ready bool
	Err   error
}

func (t *MockTrigger) Check(ctx context.Context) (bool, error) {
	return t.Ready, t.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
