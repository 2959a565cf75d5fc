package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDownloadURL(t *testing.T) {
	t.Run("retries transient failures from scratch", func(t *testing.T) {
		attempts := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				// A drained partial body followed by an error.
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("media-bytes"))
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "nested", "item.jpg")
		err := DownloadURL(context.Background(), srv.Client(), srv.URL, dest, time.Minute, fastPolicy)
		if err != nil {
			t.Fatalf("DownloadURL failed: %v", err)
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "media-bytes" {
			t.Errorf("unexpected content %q", data)
		}
		if attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		attempts := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "item.jpg")
		err := DownloadURL(context.Background(), srv.Client(), srv.URL, dest, time.Minute, fastPolicy)

		var aerr *apiError
		if !errors.As(err, &aerr) || aerr.Status != http.StatusNotFound {
			t.Fatalf("expected 404 apiError, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})
}
