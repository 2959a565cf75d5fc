package main

import (
	"context"

	"github.com/favark/favark/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a starter configuration file with every knob documented.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("configuration created", "path", path)
	return r.writePlain("✓ Wrote %s, fill in the google and drive sections\n", path)
}
