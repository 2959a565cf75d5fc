package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MediaItem represents one candidate item returned by the Photos favorites
// search. Items live only for the duration of a run.
type MediaItem struct {
	ID           string
	Filename     string
	MimeType     string
	BaseURL      string // download reference; bytes are fetched from BaseURL + format suffix
	ProductURL   string
	CreationTime string // RFC 3339, as reported by the API
}

// Valid reports whether the item carries every field the backup pipeline
// requires. Items failing this check are rejected without any remote calls.
func (m MediaItem) Valid() bool {
	return m.ID != "" && m.BaseURL != "" && m.CreationTime != ""
}

// IsVideo reports whether the item is video-class media, which selects the
// resumable upload path and the larger download timeout/retry budget.
func (m MediaItem) IsVideo() bool {
	return strings.HasPrefix(m.MimeType, "video/")
}

// RemoteFile describes a file in the Drive archive store as returned by
// folder listings.
type RemoteFile struct {
	ID            string
	Name          string
	MimeType      string
	ModifiedTime  string // RFC 3339
	AppProperties map[string]string
}

// RunCounts accumulates per-run totals. It is never persisted by the sync
// engine itself; it exists for the duration of one invocation and is handed
// to the reporting sinks when the run ends.
type RunCounts struct {
	Total    int `json:"total"`
	Uploaded int `json:"uploaded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`

	// Takeout-mode extras.
	ArchivesSeen      int `json:"archives_seen,omitempty"`
	ArchivesProcessed int `json:"archives_processed,omitempty"`
	FavoritesFound    int `json:"favorites_found,omitempty"`
}

// Failure records one isolated per-item failure: the identity of the item
// (media item ID, archive name, or sidecar path) and the cause.
type Failure struct {
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Compact renders the failure as a single compact JSON line for summaries.
func (f Failure) Compact() string {
	b, err := json.Marshal(f)
	if err != nil {
		return f.Reason
	}
	return string(b)
}

// RunMode identifies which orchestration loop produced a summary.
type RunMode string

const (
	ModeBackup  RunMode = "backup"
	ModeTakeout RunMode = "takeout"
)

// RunSummary is the structured result of one favark run, reported to the
// notification sinks and appended to the local run log.
type RunSummary struct {
	RunID      string
	Mode       RunMode
	RangeLabel string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     RunCounts
	Failures   []Failure
}

// Failed reports whether the run recorded any failures. The process exit
// status is zero iff this is false.
func (s *RunSummary) Failed() bool {
	return s.Counts.Failed > 0
}

// RunRecord is a persisted run-log row.
type RunRecord struct {
	RunID      string
	Mode       string
	RangeLabel string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     RunCounts
}
