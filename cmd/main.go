package main

import (
	"context"
	"errors"
	"os"

	"github.com/favark/favark/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "favark",
		Usage:    "Archive Google Photos favorites into a date-bucketed Drive folder tree",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotTriggered) {
			logger.Info("no takeout-ready mail found, nothing to do")
			os.Exit(0)
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			logger.Error(err.Error())
			os.Exit(exitErr.ExitCode())
		}
		logger.Fatalf("application error: %v", err)
	}
}
