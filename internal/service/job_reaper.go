package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

// JobReaper is a periodic background job that fails running jobs whose
// webhook never arrived.
type JobReaper struct {
	store      JobStore
	interval   time.Duration
	staleAfter time.Duration
	log        zerolog.Logger
	now        func() time.Time
	stopCh     chan struct{}
}

// NewJobReaper creates a reaper that ticks every interval and fails jobs
// running for longer than staleAfter.
func NewJobReaper(store JobStore, interval, staleAfter time.Duration, logger zerolog.Logger) *JobReaper {
	return &JobReaper{
		store:      store,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger.With().Str("component", "job-reaper").Logger(),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start runs one tick immediately, then every interval, until ctx ends or
// Stop is called.
func (w *JobReaper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("starting")

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			w.log.Info().Msg("stopping (context cancelled)")
			return
		case <-w.stopCh:
			w.log.Info().Msg("stopping (stop signal)")
			return
		}
	}
}

// Stop signals the reaper to stop.
func (w *JobReaper) Stop() {
	close(w.stopCh)
}

// tick fails every stale running job and returns their ids.
func (w *JobReaper) tick(ctx context.Context) []string {
	cutoff := w.now().Add(-w.staleAfter)
	reason := fmt.Sprintf("no delivery within %s", w.staleAfter)

	ids, err := w.store.FailStaleJobs(ctx, cutoff, reason)
	if err != nil {
		w.log.Error().Err(err).Msg("reaping stale jobs")
		return nil
	}
	for _, id := range ids {
		w.log.Warn().Str("job_id", id).Msg("stale job failed")
	}
	if len(ids) > 0 {
		metrics.JobTransitions.WithLabelValues(string(model.JobFailed)).Add(float64(len(ids)))
		w.log.Info().Int("failed", len(ids)).Msg("tick complete")
	}
	return ids
}
