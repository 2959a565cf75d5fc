// package formatter renders run summaries to the formats the reporting sinks
// need (Markdown for CI step summaries, plain text for email, CSV for
// failure exports).
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/favark/favark/internal/models"
)

// maxFailureSample caps how many failures are rendered inline; the full list
// is available through the CSV export.
const maxFailureSample = 20

// ExportToMarkdown converts a run summary to Markdown suitable for a CI step
// summary.
func ExportToMarkdown(summary *models.RunSummary) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("## favark %s run (%s)\n\n", summary.Mode, summary.FinishedAt.Format("2006-01-02")))

	if summary.RangeLabel != "" {
		buf.WriteString(fmt.Sprintf("**Range**: %s\n", summary.RangeLabel))
	}
	if summary.DryRun {
		buf.WriteString("**Mode**: dry run (no transfers)\n")
	}
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second)))

	buf.WriteString(fmt.Sprintf("- Total: %d\n", summary.Counts.Total))
	buf.WriteString(fmt.Sprintf("- Uploaded: %d\n", summary.Counts.Uploaded))
	buf.WriteString(fmt.Sprintf("- Skipped: %d\n", summary.Counts.Skipped))
	buf.WriteString(fmt.Sprintf("- Failed: %d\n", summary.Counts.Failed))
	if summary.Mode == models.ModeTakeout {
		buf.WriteString(fmt.Sprintf("- Archives seen: %d\n", summary.Counts.ArchivesSeen))
		buf.WriteString(fmt.Sprintf("- Archives processed: %d\n", summary.Counts.ArchivesProcessed))
		buf.WriteString(fmt.Sprintf("- Favorites found: %d\n", summary.Counts.FavoritesFound))
	}

	if len(summary.Failures) > 0 {
		buf.WriteString("\n### Failures\n\n```\n")
		for i, f := range summary.Failures {
			if i == maxFailureSample {
				buf.WriteString(fmt.Sprintf("... and %d more\n", len(summary.Failures)-maxFailureSample))
				break
			}
			buf.WriteString(f.Compact())
			buf.WriteString("\n")
		}
		buf.WriteString("```\n")
	}

	return buf.Bytes()
}

// ExportToText converts a run summary to the plain-text email body.
func ExportToText(summary *models.RunSummary) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Run: %s (%s)\n", summary.RunID, summary.Mode))
	if summary.RangeLabel != "" {
		buf.WriteString(fmt.Sprintf("Range: %s\n", summary.RangeLabel))
	}
	if summary.DryRun {
		buf.WriteString("Dry run: no transfers performed\n")
	}
	buf.WriteString(fmt.Sprintf("Started: %s\n", summary.StartedAt.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Finished: %s\n\n", summary.FinishedAt.Format("2006-01-02 15:04:05")))

	buf.WriteString(fmt.Sprintf("Total: %d\n", summary.Counts.Total))
	buf.WriteString(fmt.Sprintf("Uploaded: %d\n", summary.Counts.Uploaded))
	buf.WriteString(fmt.Sprintf("Skipped: %d\n", summary.Counts.Skipped))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", summary.Counts.Failed))
	if summary.Mode == models.ModeTakeout {
		buf.WriteString(fmt.Sprintf("Archives seen: %d\n", summary.Counts.ArchivesSeen))
		buf.WriteString(fmt.Sprintf("Archives processed: %d\n", summary.Counts.ArchivesProcessed))
		buf.WriteString(fmt.Sprintf("Favorites found: %d\n", summary.Counts.FavoritesFound))
	}

	if len(summary.Failures) > 0 {
		buf.WriteString("\nFailures:\n")
		for i, f := range summary.Failures {
			if i == maxFailureSample {
				buf.WriteString(fmt.Sprintf("... and %d more\n", len(summary.Failures)-maxFailureSample))
				break
			}
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.Compact()))
		}
	}

	return buf.Bytes()
}

// ExportFailuresCSV converts a run's failures to CSV with columns: Run ID,
// Item, Reason, Error.
func ExportFailuresCSV(summary *models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Run ID", "Item", "Reason", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, f := range summary.Failures {
		record := []string{summary.RunID, f.ID, f.Reason, f.Error}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteFailuresCSV writes the failure CSV next to the caller-chosen base path,
// creating {base}_failures.csv. Defaults to the run ID as the base name.
func WriteFailuresCSV(summary *models.RunSummary, basePath string) (string, error) {
	if basePath == "" {
		basePath = summary.RunID
	}

	data, err := ExportFailuresCSV(summary)
	if err != nil {
		return "", err
	}

	path := basePath + "_failures.csv"
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// FormatRunRow renders a persisted run-log row for the `runs` listing.
func FormatRunRow(rec models.RunRecord) string {
	dry := ""
	if rec.DryRun {
		dry = " (dry run)"
	}
	return rec.FinishedAt.Format("2006-01-02 15:04") + "  " +
		rec.Mode + dry + "  " +
		rec.RangeLabel + "  " +
		"uploaded=" + strconv.Itoa(rec.Counts.Uploaded) +
		" skipped=" + strconv.Itoa(rec.Counts.Skipped) +
		" failed=" + strconv.Itoa(rec.Counts.Failed)
}
