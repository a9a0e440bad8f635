package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
)

// Sweeper periodically reconciles jobs whose webhook never arrived. The
// client-triggered poll endpoint covers users who keep the editor open; the
// sweep covers everyone else.
type Sweeper struct {
	jobs        domain.JobRepository
	reconciler  *Reconciler
	batchSize   int
	concurrency int
	logger      zerolog.Logger
}

// NewSweeper constructs a sweeper over the shared reconciler.
func NewSweeper(jobs domain.JobRepository, reconciler *Reconciler, batchSize, concurrency int, logger zerolog.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = 50
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Sweeper{
		jobs:        jobs,
		reconciler:  reconciler,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run performs one sweep: list stale accepted jobs past the webhook threshold
// and reconcile each against the vendor with bounded fan-out. Per-job
// failures are logged and do not abort the sweep.
func (s *Sweeper) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-s.reconciler.Threshold())
	stale, err := s.jobs.ListStalePending(ctx, cutoff, s.batchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	s.logger.Info().Int("jobs", len(stale)).Msg("reconciliation sweep started")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range stale {
		job := &stale[i]
		g.Go(func() error {
			if _, err := s.reconciler.Check(ctx, job); err != nil {
				s.logger.Error().Err(err).Str("job_id", job.ID).Msg("sweep reconciliation failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// Schedule registers the sweep on the given cron runner.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reconciliation sweep failed")
		}
	})
}
