package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resumableFixture fakes a Drive resumable upload session: it accumulates
// committed bytes and can fail chosen chunk PUTs with a transient status.
type resumableFixture struct {
	t *testing.T

	size      int64
	committed bytes.Buffer
	failPuts  map[int]bool // fail the Nth data PUT (1-based) with 503
	putCount  int
	statusProbes int // status probes ("bytes */size") seen
	offsets   []int64
}

func (f *resumableFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			if r.URL.Query().Get("uploadType") != "resumable" {
				f.t.Errorf("expected resumable session open, got %s", r.URL.RawQuery)
			}
			w.Header().Set("Location", "http://"+r.Host+"/session-1")
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodPut && strings.HasPrefix(r.Header.Get("Content-Range"), "bytes */"):
			f.statusProbes++
			f.answer(w)

		case r.Method == http.MethodPut:
			f.putCount++
			var start, end, total int64
			if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total); err != nil {
				f.t.Fatalf("bad Content-Range %q: %v", r.Header.Get("Content-Range"), err)
			}
			f.offsets = append(f.offsets, start)

			if f.failPuts[f.putCount] {
				http.Error(w, "transient", http.StatusServiceUnavailable)
				return
			}
			if start != int64(f.committed.Len()) {
				f.t.Fatalf("chunk started at %d, session committed %d", start, f.committed.Len())
			}
			if _, err := io.Copy(&f.committed, r.Body); err != nil {
				f.t.Fatal(err)
			}
			f.answer(w)

		default:
			f.t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
		}
	})
}

// answer reports the session state: 308 with a Range header while incomplete,
// 200 with the file ID once every byte has been retained.
func (f *resumableFixture) answer(w http.ResponseWriter) {
	n := int64(f.committed.Len())
	if n >= f.size {
		json.NewEncoder(w).Encode(map[string]any{"id": "video-1"})
		return
	}
	if n > 0 {
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", n-1))
	}
	w.WriteHeader(308)
}

func TestUploadResumable(t *testing.T) {
	newStore := func(t *testing.T, f *resumableFixture) *DriveStore {
		srv := httptest.NewServer(f.handler())
		t.Cleanup(srv.Close)
		return NewDriveStore(DriveOpts{
			HTTPClient: srv.Client(),
			UploadURL:  srv.URL + "/upload",
			RateLimit:  1000,
			Burst:      1000,
			Policy:     &fastPolicy,
		})
	}

	writeFile := func(t *testing.T, content []byte) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "video.mp4")
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	const chunk = 16

	t.Run("uploads all chunks in order", func(t *testing.T) {
		content := bytes.Repeat([]byte("abcd"), 20) // 80 bytes, 5 chunks
		f := &resumableFixture{t: t, size: int64(len(content))}
		store := newStore(t, f)

		id, err := store.UploadResumable(context.Background(), UploadRequest{
			LocalPath: writeFile(t, content),
			Filename:  "video.mp4",
			MimeType:  "video/mp4",
			ParentID:  "folder",
			Policy:    fastPolicy,
		}, chunk)
		if err != nil {
			t.Fatalf("UploadResumable failed: %v", err)
		}
		if id != "video-1" {
			t.Errorf("unexpected file id %s", id)
		}
		if !bytes.Equal(f.committed.Bytes(), content) {
			t.Error("committed bytes differ from source")
		}
		if f.putCount != 5 {
			t.Errorf("expected 5 chunk puts, got %d", f.putCount)
		}
	})

	t.Run("resumes at the committed offset after a transient chunk failure", func(t *testing.T) {
		content := bytes.Repeat([]byte("wxyz"), 20) // 80 bytes, 5 chunks
		f := &resumableFixture{t: t, size: int64(len(content)), failPuts: map[int]bool{3: true}}
		store := newStore(t, f)

		id, err := store.UploadResumable(context.Background(), UploadRequest{
			LocalPath: writeFile(t, content),
			Filename:  "video.mp4",
			MimeType:  "video/mp4",
			ParentID:  "folder",
			Policy:    fastPolicy,
		}, chunk)
		if err != nil {
			t.Fatalf("UploadResumable failed: %v", err)
		}
		if id != "video-1" {
			t.Errorf("unexpected file id %s", id)
		}
		if !bytes.Equal(f.committed.Bytes(), content) {
			t.Error("committed bytes differ from source")
		}

		// The third put failed after two chunks (32 bytes) were committed;
		// the retry must re-sync and resume at 32, never at 0.
		if f.statusProbes != 1 {
			t.Errorf("expected 1 status probe, got %d", f.statusProbes)
		}
		resumed := f.offsets[3] // put #4 is the retried chunk
		if resumed != 2*chunk {
			t.Errorf("expected resume at %d, got %d", 2*chunk, resumed)
		}
	})

	t.Run("exhausted chunk budget surfaces the last error", func(t *testing.T) {
		content := bytes.Repeat([]byte("ab"), chunk) // 2 chunks
		f := &resumableFixture{t: t, size: int64(len(content)),
			failPuts: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}}
		store := newStore(t, f)

		_, err := store.UploadResumable(context.Background(), UploadRequest{
			LocalPath: writeFile(t, content),
			Filename:  "video.mp4",
			MimeType:  "video/mp4",
			ParentID:  "folder",
			Policy:    fastPolicy,
		}, chunk)
		if err == nil {
			t.Fatal("expected failure after budget exhaustion")
		}
		if !strings.Contains(err.Error(), "resumable upload did not complete") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
