package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/favark/favark/internal/retry"
)

// DownloadURL streams url to dest, retrying the whole transfer on transient
// failure. Used for Photos media bytes (baseUrl + format suffix); Drive file
// downloads go through [Store.DownloadTo].
func DownloadURL(ctx context.Context, client *http.Client, url, dest string, timeout time.Duration, policy retry.Policy) error {
	if client == nil {
		client = http.DefaultClient
	}

	op := func() (struct{}, error) {
		reqCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return struct{}{}, newAPIError("media download", resp.StatusCode, body)
		}

		return struct{}{}, writeStream(dest, resp.Body)
	}

	_, err := retry.Do(ctx, op, IsTransient, policy)
	return err
}

// writeStream copies r into a freshly truncated file at dest, creating parent
// directories as needed.
func writeStream(dest string, r io.Reader) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return f.Close()
}
