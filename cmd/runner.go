package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/favark/favark/internal/formatter"
	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/notify"
	"github.com/favark/favark/internal/repositories"
	"github.com/favark/favark/internal/services"
	"github.com/favark/favark/internal/shared"
	"github.com/favark/favark/internal/tasks"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action. Remote capabilities are constructed lazily per run so
// commands that never touch Google (remind, runs) need no credentials.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	// Injectable factories for tests.
	newEngine  func(ctx context.Context) (*tasks.Engine, error)
	newTrigger func() notify.Trigger
	sendMail   func(ctx context.Context, cfg shared.EmailConfig, to []string, subject, body string) error
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		sendMail: notify.SendMail,
		now:      time.Now,
	}
	r.newEngine = r.buildEngine
	r.newTrigger = func() notify.Trigger {
		return notify.NewIMAPTrigger(r.config.IMAP, r.logger)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		backupCommand, takeoutCommand, authCommand, remindCommand, runsCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// buildEngine verifies credentials and scopes, then wires the Photos source
// and Drive store into a fresh Engine. Caches start cold each run.
func (r *Runner) buildEngine(ctx context.Context) (*tasks.Engine, error) {
	if err := r.config.RequireGoogle(); err != nil {
		return nil, err
	}

	ts := services.TokenSource(ctx, r.config.Google, services.PhotosScope, services.DriveScope)
	if err := services.VerifyScopes(ctx, ts, services.PhotosScope, services.DriveScope); err != nil {
		return nil, err
	}

	client := services.Client(ctx, ts)

	driveSvc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	store := services.NewDriveStore(services.DriveOpts{
		Service:    driveSvc,
		HTTPClient: client,
		Logger:     r.logger,
	})
	source := services.NewPhotosService(services.PhotosOpts{
		Client:   client,
		PageSize: r.config.Backup.PageSize,
	})

	loc, err := shared.LoadLocation(r.config.Backup.Timezone)
	if err != nil {
		return nil, err
	}

	return tasks.NewEngine(tasks.EngineOpts{
		Source:    source,
		Store:     store,
		Logger:    r.logger,
		Location:  loc,
		ChunkSize: int64(r.config.Backup.ChunkSizeMB) << 20,
		Fetcher:   &tasks.HTTPFetcher{Client: http.DefaultClient},
	}), nil
}

// report fans the finished summary out to the configured sinks and the local
// run log. Reporting problems are logged, never fatal: the run's own outcome
// decides the exit status.
func (r *Runner) report(ctx context.Context, summary *models.RunSummary) {
	sinks := notify.MultiSink{&notify.StepSummarySink{Render: formatter.ExportToMarkdown}}
	if r.config.Email.SMTPHost != "" {
		sinks = append(sinks, notify.NewEmailSink(r.config.Email, formatter.ExportToText))
	}
	if err := sinks.Report(ctx, summary); err != nil {
		r.logger.Warn("failed to report run summary", "err", err)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		r.logger.Warn("failed to open run log", "err", err)
		return
	}
	defer db.Close()
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	repo := repositories.NewRunRepository(db)
	if err := repo.CreateSchema(ctx); err != nil {
		r.logger.Warn("failed to prepare run log", "err", err)
		return
	}
	if err := repo.Save(ctx, summary); err != nil {
		r.logger.Warn("failed to save run summary", "err", err)
	}
}

// finish prints the summary and maps failures to a non-zero exit.
func (r *Runner) finish(summary *models.RunSummary) error {
	r.writePlain("%s", string(formatter.ExportToText(summary)))
	if summary.Failed() {
		return cli.Exit(fmt.Sprintf("%v: %d failed", shared.ErrRunHadFailures, summary.Counts.Failed), 1)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
