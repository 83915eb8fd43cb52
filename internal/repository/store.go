package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Store bundles every repository over one pool so services see a single
// row store.
type Store struct {
	*ChannelRepo
	*VideoRepo
	*CommentRepo
	*JobRepo
	*SummaryRepo
	*StatsRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		ChannelRepo: NewChannelRepo(pool),
		VideoRepo:   NewVideoRepo(pool),
		CommentRepo: NewCommentRepo(pool),
		JobRepo:     NewJobRepo(pool),
		SummaryRepo: NewSummaryRepo(pool),
		StatsRepo:   NewStatsRepo(pool),
	}
}
