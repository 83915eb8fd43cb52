package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

// UpsertVideos writes all videos in one transaction. Owning channels are
// created as bare rows first so a video never dangles.
func (r *VideoRepo) UpsertVideos(ctx context.Context, videos []model.Video) (int, error) {
	if len(videos) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	channelIDs := make([]string, 0, len(videos))
	seen := make(map[string]bool, len(videos))
	for _, v := range videos {
		if !seen[v.ChannelID] {
			seen[v.ChannelID] = true
			channelIDs = append(channelIDs, v.ChannelID)
		}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO channels (id)
		SELECT unnest($1::text[])
		ON CONFLICT (id) DO NOTHING`,
		channelIDs)
	if err != nil {
		return 0, err
	}

	b := &pgx.Batch{}
	for _, v := range videos {
		b.Queue(`
			INSERT INTO videos (id, channel_id, title, description, preview_image, post_date,
			                    views, likes, comments_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				channel_id     = EXCLUDED.channel_id,
				title          = COALESCE(EXCLUDED.title, videos.title),
				description    = COALESCE(EXCLUDED.description, videos.description),
				preview_image  = COALESCE(EXCLUDED.preview_image, videos.preview_image),
				post_date      = COALESCE(EXCLUDED.post_date, videos.post_date),
				views          = COALESCE(EXCLUDED.views, videos.views),
				likes          = COALESCE(EXCLUDED.likes, videos.likes),
				comments_count = COALESCE(EXCLUDED.comments_count, videos.comments_count),
				updated_at     = GREATEST(EXCLUDED.updated_at, videos.updated_at)`,
			v.ID, v.ChannelID, v.Title, v.Description, v.PreviewImage, v.PostDate,
			v.Views, v.Likes, v.CommentsCount, v.UpdatedAt,
		)
	}
	n, err := sendBatch(ctx, tx, b)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

// FindVideoByID returns a single video by exact ID.
func (r *VideoRepo) FindVideoByID(ctx context.Context, id string) (*model.Video, error) {
	query := `
		SELECT id, channel_id, title, description, preview_image, post_date,
		       views, likes, comments_count, updated_at
		FROM videos
		WHERE id = $1`

	var v model.Video
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.ChannelID, &v.Title, &v.Description, &v.PreviewImage, &v.PostDate,
		&v.Views, &v.Likes, &v.CommentsCount, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
