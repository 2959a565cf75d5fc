// package notify reports run summaries (email, CI step summaries) and decides
// whether a takeout run should proceed (mailbox trigger).
package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/favark/favark/internal/models"
)

// Sink receives a structured run summary when a run ends.
type Sink interface {
	Report(ctx context.Context, summary *models.RunSummary) error
}

// Trigger decides whether an archive-sync run should proceed.
type Trigger interface {
	Check(ctx context.Context) (bool, error)
}

// ForceTrigger always answers the same way; used for --force and for live
// runs, which need no trigger.
type ForceTrigger bool

func (t ForceTrigger) Check(context.Context) (bool, error) {
	return bool(t), nil
}

// MultiSink fans a summary out to several sinks. The first error is returned
// after every sink has been attempted.
type MultiSink []Sink

func (m MultiSink) Report(ctx context.Context, summary *models.RunSummary) error {
	var first error
	for _, s := range m {
		if err := s.Report(ctx, summary); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// StepSummarySink appends the markdown summary to the CI step-summary file
// named by the GITHUB_STEP_SUMMARY environment variable. When the variable is
// unset the sink is a no-op, so it is always safe to install.
type StepSummarySink struct {
	// Render converts a summary to markdown (see formatter.ExportToMarkdown).
	Render func(*models.RunSummary) []byte
}

func (s *StepSummarySink) Report(_ context.Context, summary *models.RunSummary) error {
	path := os.Getenv("GITHUB_STEP_SUMMARY")
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step summary file: %w", err)
	}
	defer f.Close()

	md := s.Render(summary)
	if _, err := f.Write(md); err != nil {
		return fmt.Errorf("failed to append step summary: %w", err)
	}
	if len(md) > 0 && md[len(md)-1] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return fmt.Errorf("failed to append step summary: %w", err)
		}
	}
	return nil
}
