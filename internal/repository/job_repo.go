package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `id, kind, status, channel_id, correlation_key, error, created_at, updated_at`

// CreateJob inserts a new job row.
func (r *JobRepo) CreateJob(ctx context.Context, job *model.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (id, kind, status, channel_id, correlation_key, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, string(job.Kind), string(job.Status), job.ChannelID, job.CorrelationKey,
		job.Error, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// FindJobByID returns pgx.ErrNoRows when the job does not exist.
func (r *JobRepo) FindJobByID(ctx context.Context, id string) (*model.Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// FindJobByCorrelationKey looks a job up by the provider's snapshot id.
func (r *JobRepo) FindJobByCorrelationKey(ctx context.Context, key string) (*model.Job, error) {
	return scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE correlation_key = $1`, key))
}

// LatestRunningJob returns the most recently created running job of a kind.
func (r *JobRepo) LatestRunningJob(ctx context.Context, kind model.RecordKind) (*model.Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'running' AND kind = $1
		ORDER BY created_at DESC
		LIMIT 1`, string(kind)))
}

// TransitionJob moves a job to status `to` only if it is currently in one of
// `from`. The check and the write are a single statement. It reports whether
// a row changed.
func (r *JobRepo) TransitionJob(ctx context.Context, id string, from []model.JobStatus, to model.JobStatus, patch model.JobPatch) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status          = $3,
		    channel_id      = COALESCE($4, channel_id),
		    correlation_key = COALESCE($5, correlation_key),
		    error           = COALESCE($6, error),
		    updated_at      = NOW()
		WHERE id = $1 AND status = ANY($2)`,
		id, statusStrings(from), string(to), patch.ChannelID, patch.CorrelationKey, patch.Error,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FailStaleJobs marks running jobs not updated since before cutoff as failed
// and returns their ids.
func (r *JobRepo) FailStaleJobs(ctx context.Context, cutoff time.Time, reason string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE jobs
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE status = 'running' AND updated_at < $1
		RETURNING id`,
		cutoff, reason,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.Kind, &j.Status, &j.ChannelID, &j.CorrelationKey,
		&j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func statusStrings(statuses []model.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
