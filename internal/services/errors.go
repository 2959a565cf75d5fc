package services

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"

	"google.golang.org/api/googleapi"
)

// apiError is a non-2xx response from a raw HTTP call (Photos search, media
// download, resumable upload session). The body is truncated for summaries.
type apiError struct {
	Op     string
	Status int
	Body   string
}

func (e *apiError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d | body=%s", e.Op, e.Status, e.Body)
}

const maxErrorBody = 2000

func newAPIError(op string, status int, body []byte) *apiError {
	s := string(body)
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "...(truncated)"
	}
	return &apiError{Op: op, Status: status, Body: s}
}

// retryableStatus reports whether an HTTP status is worth retrying: request
// timeout, rate limiting, or a server-side error.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// IsTransient classifies transport/network failures and retryable server
// responses. Validation failures and malformed responses are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retryableStatus(gerr.Code)
	}

	var aerr *apiError
	if errors.As(err, &aerr) {
		return retryableStatus(aerr.Status)
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
