package main

import (
	"context"
	"fmt"
	"time"

	"github.com/favark/favark/internal/shared"
	"github.com/favark/favark/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Backup runs the live favorites sync over the requested month range.
func (r *Runner) Backup(ctx context.Context, cmd *cli.Command) error {
	loc, err := shared.LoadLocation(r.config.Backup.Timezone)
	if err != nil {
		return err
	}

	start, end, label, err := resolveRange(cmd, loc, r.now())
	if err != nil {
		return err
	}

	engine, err := r.newEngine(ctx)
	if err != nil {
		return err
	}

	summary, runErr := engine.Backup(ctx, tasks.BackupQuery{
		Start:        start,
		End:          end,
		Label:        label,
		RootFolderID: r.config.Drive.RootFolderID,
		DryRun:       cmd.Bool("dry-run"),
	})
	r.report(ctx, summary)
	if runErr != nil {
		return runErr
	}

	return r.finish(summary)
}

// resolveRange turns the range flags into concrete calendar bounds. Explicit
// months win over the rolling window.
func resolveRange(cmd *cli.Command, loc *time.Location, now time.Time) (time.Time, time.Time, string, error) {
	startMonth := cmd.String("start-month")
	endMonth := cmd.String("end-month")

	if (startMonth == "") != (endMonth == "") {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: --start-month and --end-month must be given together", shared.ErrMissingFlag)
	}

	if startMonth != "" {
		start, end, err := shared.MonthRange(startMonth, endMonth, loc)
		if err != nil {
			return time.Time{}, time.Time{}, "", err
		}
		return start, end, startMonth + ".." + endMonth, nil
	}

	months := int(cmd.Int("recent-months"))
	if months <= 0 {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: --recent-months must be positive", shared.ErrInvalidFlag)
	}

	today := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	start, end := shared.RecentMonthRange(today, months)
	label := fmt.Sprintf("recent %dmo (%s..%s)", months, start.Format("2006-01-02"), end.Format("2006-01-02"))
	return start, end, label, nil
}
