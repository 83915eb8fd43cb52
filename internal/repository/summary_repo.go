package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type SummaryRepo struct {
	pool *pgxpool.Pool
}

func NewSummaryRepo(pool *pgxpool.Pool) *SummaryRepo {
	return &SummaryRepo{pool: pool}
}

// UpsertSummary replaces the single summary row of a video.
func (r *SummaryRepo) UpsertSummary(ctx context.Context, s *model.VideoSummary) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO video_summaries (video_id, summary, positive_percentage, negative_percentage,
		                             average_score, comments_analyzed, degraded, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (video_id) DO UPDATE SET
			summary             = EXCLUDED.summary,
			positive_percentage = EXCLUDED.positive_percentage,
			negative_percentage = EXCLUDED.negative_percentage,
			average_score       = EXCLUDED.average_score,
			comments_analyzed   = EXCLUDED.comments_analyzed,
			degraded            = EXCLUDED.degraded,
			updated_at          = EXCLUDED.updated_at`,
		s.VideoID, s.Summary, s.PositivePercentage, s.NegativePercentage,
		s.AverageScore, s.CommentsAnalyzed, s.Degraded, s.UpdatedAt,
	)
	return err
}

// FindSummaryByVideoID returns pgx.ErrNoRows when the video was never analyzed.
func (r *SummaryRepo) FindSummaryByVideoID(ctx context.Context, videoID string) (*model.VideoSummary, error) {
	var s model.VideoSummary
	err := r.pool.QueryRow(ctx, `
		SELECT video_id, summary, positive_percentage, negative_percentage,
		       average_score, comments_analyzed, degraded, updated_at
		FROM video_summaries
		WHERE video_id = $1`, videoID).Scan(
		&s.VideoID, &s.Summary, &s.PositivePercentage, &s.NegativePercentage,
		&s.AverageScore, &s.CommentsAnalyzed, &s.Degraded, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
