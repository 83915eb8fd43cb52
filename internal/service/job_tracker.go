package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/pkg/retry"
)

var (
	// ErrJobFailed is returned by Await when the job reached failed.
	ErrJobFailed = errors.New("job failed")
	// ErrJobTimeout is returned by Await when the job did not finish in time.
	ErrJobTimeout = errors.New("timed out waiting for job")

	errJobInFlight = errors.New("job still in flight")
)

// Default polling schedule for Await.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 30
)

// legalSources lists the states each target state may be entered from.
// Nothing leaves ready or failed.
var legalSources = map[model.JobStatus][]model.JobStatus{
	model.JobRunning: {model.JobPending},
	model.JobReady:   {model.JobRunning},
	model.JobFailed:  {model.JobPending, model.JobRunning},
}

// JobTracker drives the job state machine on top of the job table.
type JobTracker struct {
	store        JobStore
	pollInterval time.Duration
	pollAttempts int
	log          zerolog.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewJobTracker(store JobStore, pollInterval time.Duration, pollAttempts int, logger zerolog.Logger) *JobTracker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if pollAttempts <= 0 {
		pollAttempts = DefaultPollAttempts
	}
	return &JobTracker{
		store:        store,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		log:          logger.With().Str("component", "job-tracker").Logger(),
		now:          time.Now,
	}
}

// WithSleep replaces the wait between polls. Used by tests.
func (t *JobTracker) WithSleep(fn func(ctx context.Context, d time.Duration) error) *JobTracker {
	t.sleep = fn
	return t
}

// Create inserts a fresh pending job.
func (t *JobTracker) Create(ctx context.Context, kind model.RecordKind, channelID *string) (*model.Job, error) {
	now := t.now().UTC()
	job := &model.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    model.JobPending,
		ChannelID: channelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating %s job: %w", kind, err)
	}
	t.log.Debug().Str("job_id", job.ID).Str("kind", string(kind)).Msg("job created")
	return job, nil
}

// Get returns the job or an error wrapping ErrNotFound.
func (t *JobTracker) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := t.store.FindJobByID(ctx, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Transition moves a job to `to` if the state machine allows it from the
// job's current state. An illegal or late transition is not an error; it
// reports false.
func (t *JobTracker) Transition(ctx context.Context, id string, to model.JobStatus, patch model.JobPatch) (bool, error) {
	from, ok := legalSources[to]
	if !ok {
		return false, nil
	}
	applied, err := t.store.TransitionJob(ctx, id, from, to, patch)
	if err != nil {
		return false, fmt.Errorf("transition job %s to %s: %w", id, to, err)
	}
	if applied {
		metrics.JobTransitions.WithLabelValues(string(to)).Inc()
		t.log.Info().Str("job_id", id).Str("status", string(to)).Msg("job transitioned")
	} else {
		t.log.Debug().Str("job_id", id).Str("status", string(to)).Msg("job transition not applied")
	}
	return applied, nil
}

// Start moves a pending job to running and records the provider's
// correlation key when there is one.
func (t *JobTracker) Start(ctx context.Context, id string, correlationKey string) (bool, error) {
	var patch model.JobPatch
	if correlationKey != "" {
		patch.CorrelationKey = &correlationKey
	}
	return t.Transition(ctx, id, model.JobRunning, patch)
}

// Complete moves a running job to ready.
func (t *JobTracker) Complete(ctx context.Context, id string) (bool, error) {
	return t.Transition(ctx, id, model.JobReady, model.JobPatch{})
}

// Fail moves a pending or running job to failed with a reason.
func (t *JobTracker) Fail(ctx context.Context, id string, reason string) (bool, error) {
	return t.Transition(ctx, id, model.JobFailed, model.JobPatch{Error: &reason})
}

// Resolve finds the job a provider delivery belongs to. An explicit id is
// matched against correlation keys first and job ids second. Without one,
// the newest running job of the kind is used. A nil job with a nil error
// means no job could be linked and the caller proceeds unlinked.
func (t *JobTracker) Resolve(ctx context.Context, explicitID string, kind model.RecordKind) (*model.Job, error) {
	if explicitID != "" {
		job, err := t.store.FindJobByCorrelationKey(ctx, explicitID)
		if err == nil {
			return job, nil
		}
		if !isNoRows(err) {
			return nil, fmt.Errorf("resolve job by correlation key: %w", err)
		}
		if _, perr := uuid.Parse(explicitID); perr == nil {
			job, err = t.store.FindJobByID(ctx, explicitID)
			if err == nil {
				return job, nil
			}
			if !isNoRows(err) {
				return nil, fmt.Errorf("resolve job by id: %w", err)
			}
		}
		t.log.Warn().Str("snapshot_id", explicitID).Msg("no job matches snapshot id")
		return nil, nil
	}

	if !kind.Valid() {
		return nil, nil
	}
	job, err := t.store.LatestRunningJob(ctx, kind)
	if isNoRows(err) {
		t.log.Warn().Str("kind", string(kind)).Msg("no running job to link delivery to")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve latest running %s job: %w", kind, err)
	}
	t.log.Warn().Str("job_id", job.ID).Str("kind", string(kind)).
		Msg("delivery carried no snapshot id, linked to newest running job")
	return job, nil
}

// Await polls the job until it is ready or failed. Running out of attempts
// marks the job failed and returns ErrJobTimeout.
func (t *JobTracker) Await(ctx context.Context, id string) (*model.Job, error) {
	var last *model.Job
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: t.pollAttempts,
		Backoff:     retry.Constant(t.pollInterval),
		Logger:      zerolog.Nop(),
		Sleep:       t.sleep,
	}, func(int) error {
		job, err := t.Get(ctx, id)
		if err != nil {
			return retry.Permanent(err)
		}
		last = job
		switch job.Status {
		case model.JobReady:
			return nil
		case model.JobFailed:
			return retry.Permanent(ErrJobFailed)
		default:
			return errJobInFlight
		}
	})

	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, ErrJobFailed):
		return last, fmt.Errorf("job %s: %w", id, ErrJobFailed)
	case errors.Is(err, retry.ErrExhausted):
		reason := fmt.Sprintf("no result after %d polls", t.pollAttempts)
		if _, ferr := t.Fail(context.WithoutCancel(ctx), id, reason); ferr != nil {
			t.log.Error().Err(ferr).Str("job_id", id).Msg("failed to mark timed out job")
		}
		if job, gerr := t.Get(context.WithoutCancel(ctx), id); gerr == nil {
			last = job
			if job.Status == model.JobReady {
				return job, nil
			}
		}
		return last, fmt.Errorf("job %s: %w", id, ErrJobTimeout)
	default:
		return last, err
	}
}
