package main

import (
	"context"
	"fmt"

	"github.com/favark/favark/internal/shared"
	"github.com/favark/favark/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TakeoutProcess ingests pending Takeout zips from the staging folder. Without
// --force the mailbox trigger decides whether anything happens at all; a
// trigger error aborts the run rather than silently skipping it.
func (r *Runner) TakeoutProcess(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("force") {
		ready, err := r.newTrigger().Check(ctx)
		if err != nil {
			return fmt.Errorf("takeout trigger check failed: %w", err)
		}
		if !ready {
			return shared.ErrNotTriggered
		}
		r.logger.Info("takeout-ready mail found, starting run")
	}

	engine, err := r.newEngine(ctx)
	if err != nil {
		return err
	}

	summary, runErr := engine.ProcessTakeout(ctx, tasks.TakeoutOpts{
		SourceFolderID: r.config.Drive.TakeoutFolderID,
		RootFolderID:   r.config.Drive.RootFolderID,
		MaxArchives:    int(cmd.Int("max-zips")),
		DryRun:         cmd.Bool("dry-run"),
	})
	r.report(ctx, summary)
	if runErr != nil {
		return runErr
	}

	return r.finish(summary)
}
