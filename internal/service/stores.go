package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

var (
	// ErrInvalidInput marks caller mistakes the HTTP layer maps to 400.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks lookups of rows that do not exist.
	ErrNotFound = errors.New("not found")
)

// ChannelStore persists channels. Find methods return pgx.ErrNoRows for
// missing rows.
type ChannelStore interface {
	UpsertChannels(ctx context.Context, channels []model.Channel) (int, error)
	FindChannelByID(ctx context.Context, id string) (*model.Channel, error)
	FindChannelByHandle(ctx context.Context, handle string) (*model.Channel, error)
	// FindChannelByUsername matches the legacy /c/ or /user/ name.
	FindChannelByUsername(ctx context.Context, username string) (*model.Channel, error)
}

type VideoStore interface {
	UpsertVideos(ctx context.Context, videos []model.Video) (int, error)
	FindVideoByID(ctx context.Context, id string) (*model.Video, error)
}

type CommentStore interface {
	// UpsertComments skips comments whose video is not stored.
	UpsertComments(ctx context.Context, comments []model.Comment) (int, error)
	ListCommentsByVideo(ctx context.Context, videoID string, limit int) ([]model.Comment, error)
	UpdateCommentSentiment(ctx context.Context, scores []model.CommentSentiment) error
}

type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	FindJobByID(ctx context.Context, id string) (*model.Job, error)
	FindJobByCorrelationKey(ctx context.Context, key string) (*model.Job, error)
	LatestRunningJob(ctx context.Context, kind model.RecordKind) (*model.Job, error)
	// TransitionJob is a compare-and-set on the job status.
	TransitionJob(ctx context.Context, id string, from []model.JobStatus, to model.JobStatus, patch model.JobPatch) (bool, error)
	FailStaleJobs(ctx context.Context, cutoff time.Time, reason string) ([]string, error)
}

type SummaryStore interface {
	UpsertSummary(ctx context.Context, s *model.VideoSummary) error
	FindSummaryByVideoID(ctx context.Context, videoID string) (*model.VideoSummary, error)
}

type StatsStore interface {
	GetStats(ctx context.Context) (*model.StatsResponse, error)
}

// Store is the full row store the services run on.
type Store interface {
	ChannelStore
	VideoStore
	CommentStore
	JobStore
	SummaryStore
	StatsStore
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
