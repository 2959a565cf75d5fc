// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// backupCommand runs the live favorites sync.
func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Sync favorite photos and videos to the Drive archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "start-month",
				Usage: "First month of the range (YYYY-MM, inclusive)",
			},
			&cli.StringFlag{
				Name:  "end-month",
				Usage: "Last month of the range (YYYY-MM, inclusive)",
			},
			&cli.IntFlag{
				Name:  "recent-months",
				Usage: "Rolling window ending today, in months",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Perform lookups but skip every transfer",
			},
		},
		Action: r.Backup,
	}
}

// takeoutCommand handles offline Takeout archive operations.
func takeoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "takeout",
		Usage: "Google Takeout archive operations",
		Commands: []*cli.Command{
			{
				Name:  "process",
				Usage: "Ingest pending Takeout zips from the Drive staging folder",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-zips",
						Usage: "Maximum archives to process in one run",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip the mailbox trigger and process unconditionally",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Perform lookups but skip every transfer",
					},
				},
				Action: r.TakeoutProcess,
			},
		},
	}
}

// authCommand handles OAuth credential operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Google OAuth credential operations",
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "Obtain a refresh token interactively via the system browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the credential bundle as JSON",
						Value: true,
					},
				},
				Action: r.AuthToken,
			},
			{
				Name:   "check",
				Usage:  "Verify the stored refresh token carries the required scopes",
				Action: r.AuthCheck,
			},
		},
	}
}

// remindCommand sends the scheduled reminder mails.
func remindCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Send scheduled reminder mails",
		Commands: []*cli.Command{
			{
				Name:   "takeout",
				Usage:  "Remind the owner to create a Google Takeout export",
				Action: r.RemindTakeout,
			},
			{
				Name:   "quality",
				Usage:  "Remind the owner to run the storage-quality maintenance",
				Action: r.RemindQuality,
			},
		},
	}
}

// runsCommand prints recent runs from the local run log.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent run summaries from the local run log",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}

// setupCommand initializes local state.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a starter config.toml in the current directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to write the configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}
