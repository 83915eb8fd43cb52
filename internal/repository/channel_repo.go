package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

const channelColumns = `id, handle, username, name, description, avatar_url, banner_url,
		       subscriber_count, video_count, view_count, created_date, location, url, updated_at`

// UpsertChannels writes all channels in one transaction. Non-null fields of
// the incoming rows overwrite stored values; nulls keep what is stored.
func (r *ChannelRepo) UpsertChannels(ctx context.Context, channels []model.Channel) (int, error) {
	if len(channels) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, ch := range channels {
		b.Queue(`
			INSERT INTO channels (id, handle, username, name, description, avatar_url, banner_url,
			                      subscriber_count, video_count, view_count, created_date,
			                      location, url, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				handle           = COALESCE(EXCLUDED.handle, channels.handle),
				username         = COALESCE(EXCLUDED.username, channels.username),
				name             = COALESCE(EXCLUDED.name, channels.name),
				description      = COALESCE(EXCLUDED.description, channels.description),
				avatar_url       = COALESCE(EXCLUDED.avatar_url, channels.avatar_url),
				banner_url       = COALESCE(EXCLUDED.banner_url, channels.banner_url),
				subscriber_count = COALESCE(EXCLUDED.subscriber_count, channels.subscriber_count),
				video_count      = COALESCE(EXCLUDED.video_count, channels.video_count),
				view_count       = COALESCE(EXCLUDED.view_count, channels.view_count),
				created_date     = COALESCE(EXCLUDED.created_date, channels.created_date),
				location         = COALESCE(EXCLUDED.location, channels.location),
				url              = COALESCE(EXCLUDED.url, channels.url),
				updated_at       = GREATEST(EXCLUDED.updated_at, channels.updated_at)`,
			ch.ID, ch.Handle, ch.Username, ch.Name, ch.Description, ch.AvatarURL, ch.BannerURL,
			ch.SubscriberCount, ch.VideoCount, ch.ViewCount, ch.CreatedDate,
			ch.Location, ch.URL, ch.UpdatedAt,
		)
	}
	n, err := sendBatch(ctx, tx, b)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

// FindChannelByID returns a single channel by its ID.
func (r *ChannelRepo) FindChannelByID(ctx context.Context, id string) (*model.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`
	return scanChannel(r.pool.QueryRow(ctx, query, id))
}

// FindChannelByHandle returns the most recently updated channel with the
// given "@handle".
func (r *ChannelRepo) FindChannelByHandle(ctx context.Context, handle string) (*model.Channel, error) {
	query := `SELECT ` + channelColumns + `
		FROM channels
		WHERE lower(handle) = lower($1)
		ORDER BY updated_at DESC
		LIMIT 1`
	return scanChannel(r.pool.QueryRow(ctx, query, handle))
}

// FindChannelByUsername returns the channel collected from a legacy
// /c/<name> or /user/<name> URL.
func (r *ChannelRepo) FindChannelByUsername(ctx context.Context, username string) (*model.Channel, error) {
	query := `SELECT ` + channelColumns + `
		FROM channels
		WHERE lower(username) = lower($1)
		ORDER BY updated_at DESC
		LIMIT 1`
	return scanChannel(r.pool.QueryRow(ctx, query, username))
}

func scanChannel(row pgx.Row) (*model.Channel, error) {
	var ch model.Channel
	err := row.Scan(
		&ch.ID, &ch.Handle, &ch.Username, &ch.Name, &ch.Description, &ch.AvatarURL, &ch.BannerURL,
		&ch.SubscriberCount, &ch.VideoCount, &ch.ViewCount, &ch.CreatedDate,
		&ch.Location, &ch.URL, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
