// package tasks implements the sync runs between the Photos favorites source
// and the Drive archive store.
//
// The core abstraction is Engine, which drives either a live backup run or a
// Takeout archive run, strictly sequentially, isolating failures per item so
// one bad candidate never aborts a run.
package tasks

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
	"github.com/favark/favark/internal/services"
	"github.com/favark/favark/internal/shared"
	"github.com/favark/favark/internal/takeout"
)

// Fetcher downloads raw media bytes (Photos baseUrl fetches). Abstracted for
// testing; the Drive store has its own download path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, timeout time.Duration, policy retry.Policy) error
}

// HTTPFetcher implements [Fetcher] over a plain HTTP client. Photos base URLs
// embed their own authorization, so the client needs no token source.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string, timeout time.Duration, policy retry.Policy) error {
	return services.DownloadURL(ctx, f.Client, url, dest, timeout, policy)
}

// Engine orchestrates sync runs. One Engine serves one invocation; the store
// it holds owns that invocation's caches.
type Engine struct {
	source    services.Source
	store     services.Store
	fetch     Fetcher
	extractor *takeout.Extractor
	logger    *log.Logger
	loc       *time.Location
	chunkSize int64
	now       func() time.Time
}

// EngineOpts contains dependencies for creating an [Engine].
type EngineOpts struct {
	Source    services.Source
	Store     services.Store
	Fetcher   Fetcher
	Extractor *takeout.Extractor
	Logger    *log.Logger
	Location  *time.Location
	ChunkSize int64            // resumable upload chunk size, default 10 MiB
	Now       func() time.Time // injectable clock for tests
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Fetcher == nil {
		opts.Fetcher = &HTTPFetcher{Client: http.DefaultClient}
	}
	if opts.Extractor == nil {
		opts.Extractor = takeout.NewExtractor(opts.Logger, opts.Location)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 10 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		source:    opts.Source,
		store:     opts.Store,
		fetch:     opts.Fetcher,
		extractor: opts.Extractor,
		logger:    opts.Logger,
		loc:       opts.Location,
		chunkSize: opts.ChunkSize,
		now:       opts.Now,
	}
}

// newSummary starts a run summary with a fresh run ID.
func (e *Engine) newSummary(mode models.RunMode, label string, dryRun bool) *models.RunSummary {
	return &models.RunSummary{
		RunID:      shared.GenerateID(),
		Mode:       mode,
		RangeLabel: label,
		DryRun:     dryRun,
		StartedAt:  e.now(),
	}
}

// fail records one isolated failure on the summary.
func fail(s *models.RunSummary, f models.Failure) {
	s.Counts.Failed++
	s.Failures = append(s.Failures, f)
}
