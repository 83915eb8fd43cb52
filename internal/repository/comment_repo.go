package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

// UpsertComments writes comments whose (video, channel) pair matches a stored
// video. Comments for unknown videos are dropped and not counted. Stored
// sentiment is kept on re-ingestion.
func (r *CommentRepo) UpsertComments(ctx context.Context, comments []model.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, c := range comments {
		b.Queue(`
			INSERT INTO comments (id, video_id, channel_id, text, author, published_at, updated_at)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE EXISTS (SELECT 1 FROM videos WHERE id = $2 AND channel_id = $3)
			ON CONFLICT (id) DO UPDATE SET
				text         = EXCLUDED.text,
				author       = COALESCE(EXCLUDED.author, comments.author),
				published_at = COALESCE(EXCLUDED.published_at, comments.published_at),
				updated_at   = GREATEST(EXCLUDED.updated_at, comments.updated_at)`,
			c.ID, c.VideoID, c.ChannelID, c.Text, c.Author, c.PublishedAt, c.UpdatedAt,
		)
	}
	n, err := sendBatch(ctx, tx, b)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

// ListCommentsByVideo returns up to limit comments, newest first.
func (r *CommentRepo) ListCommentsByVideo(ctx context.Context, videoID string, limit int) ([]model.Comment, error) {
	query := `
		SELECT id, video_id, channel_id, text, author, published_at,
		       sentiment_score, sentiment_label, updated_at
		FROM comments
		WHERE video_id = $1
		ORDER BY published_at DESC NULLS LAST, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, videoID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		err := rows.Scan(
			&c.ID, &c.VideoID, &c.ChannelID, &c.Text, &c.Author, &c.PublishedAt,
			&c.SentimentScore, &c.SentimentLabel, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateCommentSentiment writes per-comment scores in one transaction.
func (r *CommentRepo) UpdateCommentSentiment(ctx context.Context, scores []model.CommentSentiment) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, s := range scores {
		b.Queue(`
			UPDATE comments
			SET sentiment_score = $2, sentiment_label = $3, updated_at = NOW()
			WHERE id = $1`,
			s.CommentID, s.Score, string(s.Label),
		)
	}
	if _, err := sendBatch(ctx, tx, b); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
