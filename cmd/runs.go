package main

import (
	"context"

	"github.com/favark/favark/internal/formatter"
	"github.com/favark/favark/internal/repositories"
	"github.com/favark/favark/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runs lists recent run summaries from the local run log.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	repo := repositories.NewRunRepository(db)
	if err := repo.CreateSchema(ctx); err != nil {
		return err
	}

	records, err := repo.List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}

	if len(records) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}
	for _, rec := range records {
		r.writePlain("%s\n", formatter.FormatRunRow(rec))
	}
	return nil
}
