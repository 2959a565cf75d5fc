package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/favark/favark/internal/retry"
	"github.com/favark/favark/internal/shared"
	"google.golang.org/api/drive/v3"
)

// chunkKind tags the outcome of one resumable chunk continuation. The chunk
// loop is driven by these tagged results rather than error propagation across
// chunk boundaries.
type chunkKind int

const (
	chunkAdvance chunkKind = iota // server acked bytes up to Offset
	chunkDone                     // final ack; FileID is set
)

type chunkResult struct {
	kind   chunkKind
	offset int64  // next byte to send (chunkAdvance)
	fileID string // created file (chunkDone)
}

// UploadResumable uploads through a Drive resumable session: one POST opens
// the session, then sequential PUT chunks advance it. A transient chunk error
// re-syncs the committed offset from the session and retries at that offset,
// the transfer never restarts from zero. Exhausting the retry budget for any
// single chunk surfaces the last transient error.
func (s *DriveStore) UploadResumable(ctx context.Context, req UploadRequest, chunkSize int64) (string, error) {
	if chunkSize <= 0 {
		chunkSize = 10 << 20
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", req.LocalPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", req.LocalPath, err)
	}
	size := info.Size()
	if size == 0 {
		// A resumable session needs at least one content byte.
		return s.UploadSimple(ctx, req)
	}

	session, err := retry.Do(ctx, func() (string, error) {
		return s.openSession(ctx, req, size)
	}, IsTransient, req.Policy)
	if err != nil {
		return "", fmt.Errorf("failed to open upload session for %s: %w", req.Filename, err)
	}

	var offset int64
	needSync := false
	for offset < size {
		res, err := retry.Do(ctx, func() (chunkResult, error) {
			if needSync {
				committed, fileID, err := s.committedOffset(ctx, session, size)
				if err != nil {
					return chunkResult{}, err
				}
				if fileID != "" {
					return chunkResult{kind: chunkDone, fileID: fileID}, nil
				}
				offset = committed
				needSync = false
			}

			res, err := s.putChunk(ctx, session, f, offset, chunkSize, size)
			if err != nil {
				needSync = true
				return chunkResult{}, err
			}
			return res, nil
		}, IsTransient, req.Policy)
		if err != nil {
			return "", fmt.Errorf("%w: %s at offset %d: %v", shared.ErrUploadIncomplete, req.Filename, offset, err)
		}

		switch res.kind {
		case chunkDone:
			s.rememberUpload(req)
			return res.fileID, nil
		case chunkAdvance:
			offset = res.offset
		}
	}

	return "", fmt.Errorf("%w: %s session ended without final ack", shared.ErrUploadIncomplete, req.Filename)
}

// openSession starts a resumable session and returns its URI.
func (s *DriveStore) openSession(ctx context.Context, req UploadRequest, size int64) (string, error) {
	meta := &drive.File{
		Name:          req.Filename,
		Parents:       []string{req.ParentID},
		AppProperties: req.AppProperties,
		Description:   compactDescription(req.Description),
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal upload metadata: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL+"?uploadType=resumable&fields=id", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	httpReq.Header.Set("X-Upload-Content-Type", req.MimeType)
	httpReq.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", newAPIError("open upload session", resp.StatusCode, body)
	}

	session := resp.Header.Get("Location")
	if session == "" {
		return "", fmt.Errorf("upload session response carried no Location header")
	}
	return session, nil
}

// putChunk sends one chunk starting at offset and interprets the session
// response: 308 acknowledges progress, 200/201 completes the upload.
func (s *DriveStore) putChunk(ctx context.Context, session string, f io.ReaderAt, offset, chunkSize, size int64) (chunkResult, error) {
	length := chunkSize
	if remaining := size - offset; remaining < length {
		length = remaining
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, session, io.NewSectionReader(f, offset, length))
	if err != nil {
		return chunkResult{}, fmt.Errorf("failed to create chunk request: %w", err)
	}
	httpReq.ContentLength = length
	httpReq.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, size))

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return chunkResult{}, err
	}
	defer resp.Body.Close()

	return s.readSessionResponse(resp, offset+length)
}

// committedOffset asks the session how many bytes it has retained. It returns
// the next offset to send, or the file ID when the session already completed.
func (s *DriveStore) committedOffset(ctx context.Context, session string, size int64) (int64, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, session, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create status request: %w", err)
	}
	httpReq.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	res, err := s.readSessionResponse(resp, 0)
	if err != nil {
		return 0, "", err
	}
	if res.kind == chunkDone {
		return 0, res.fileID, nil
	}
	return res.offset, "", nil
}

// readSessionResponse decodes a resumable-session response. fallback is the
// offset to assume when a 308 carries no Range header.
func (s *DriveStore) readSessionResponse(resp *http.Response, fallback int64) (chunkResult, error) {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var created struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return chunkResult{}, fmt.Errorf("malformed upload completion response: %w", err)
		}
		return chunkResult{kind: chunkDone, fileID: created.ID}, nil

	case resp.StatusCode == 308: // Resume Incomplete
		offset := parseRangeEnd(resp.Header.Get("Range"))
		if offset < 0 {
			offset = fallback
		}
		return chunkResult{kind: chunkAdvance, offset: offset}, nil

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return chunkResult{}, newAPIError("upload chunk", resp.StatusCode, body)
	}
}

// parseRangeEnd extracts the next send offset from a session Range header of
// the form "bytes=0-N". It returns -1 when the header is absent or malformed,
// and 0 when the session has retained nothing.
func parseRangeEnd(header string) int64 {
	if header == "" {
		return -1
	}
	_, after, ok := strings.Cut(header, "-")
	if !ok {
		return -1
	}
	end, err := strconv.ParseInt(after, 10, 64)
	if err != nil {
		return -1
	}
	return end + 1
}
