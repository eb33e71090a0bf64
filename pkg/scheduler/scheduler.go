package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/importer"
)

// SourceProvider selects sources due for a scheduled run
type SourceProvider interface {
	GetDueSources(ctx context.Context, cutoff time.Time, maxErrors int) ([]domain.ContentSource, error)
}

// Importer runs one import attempt for a source
type Importer interface {
	ImportFromSource(ctx context.Context, sourceID int64) importer.Result
}

// Scheduler drives unattended periodic ingestion: every poll interval it
// selects due sources and imports them one at a time with a fixed pause
// between them. The pacing is a deliberate outbound rate limit, not a
// performance measure, so sources are never imported concurrently here.
type Scheduler struct {
	sources  SourceProvider
	importer Importer

	pollInterval time.Duration
	errorBackoff time.Duration
	sourcePacing time.Duration
	maxErrors    int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Config holds scheduler configuration
type Config struct {
	PollInterval time.Duration // cadence of scheduled runs, also the freshness window for "due"
	ErrorBackoff time.Duration // shortened sleep after a failed run
	SourcePacing time.Duration // pause between consecutive sources in a run
	MaxErrors    int           // sources at or above this error count are skipped
}

// New creates a scheduler instance
func New(sources SourceProvider, imp Importer, cfg Config) *Scheduler {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 5 * time.Minute
	}
	if cfg.SourcePacing == 0 {
		cfg.SourcePacing = time.Second
	}
	if cfg.MaxErrors == 0 {
		cfg.MaxErrors = 5
	}

	return &Scheduler{
		sources:      sources,
		importer:     imp,
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
		sourcePacing: cfg.SourcePacing,
		maxErrors:    cfg.MaxErrors,
	}
}

// Start begins the background loop. Cancellation of ctx (or Stop) is
// observed at sleep and iteration boundaries; an in-flight import is
// allowed to finish.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)

	lgr.Printf("[INFO] scheduler started, poll interval %v, error backoff %v, pacing %v, error threshold %d",
		s.pollInterval, s.errorBackoff, s.sourcePacing, s.maxErrors)
}

// Stop gracefully stops the scheduler and waits for the loop to exit
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// loop runs scheduled imports until the context is canceled. A failed run
// shortens the sleep to the error backoff instead of crashing the process.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		delay := s.pollInterval
		if err := s.runOnce(ctx); err != nil {
			lgr.Printf("[ERROR] scheduled run failed: %v", err)
			delay = s.errorBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runOnce selects due sources and imports them sequentially. Per-source
// failures are already contained by the importer; only source selection
// itself can fail the run.
func (s *Scheduler) runOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.pollInterval)
	sources, err := s.sources.GetDueSources(ctx, cutoff, s.maxErrors)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		return nil
	}

	lgr.Printf("[INFO] running scheduled imports for %d sources", len(sources))

	for _, src := range sources {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res := s.importer.ImportFromSource(ctx, src.ID)
		lgr.Printf("[INFO] import from %q: %s, imported %d, skipped %d",
			src.Name, res.Status, res.ItemsImported, res.ItemsSkipped)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.sourcePacing):
		}
	}

	return nil
}
