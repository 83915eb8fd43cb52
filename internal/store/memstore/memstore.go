// Package memstore is an in-process row store with the same semantics as the
// Postgres repositories. It backs tests and "memory://" local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	channels  map[string]model.Channel
	videos    map[string]model.Video
	comments  map[string]model.Comment
	jobs      map[string]model.Job
	summaries map[string]model.VideoSummary
}

func New() *Store {
	return &Store{
		now:       time.Now,
		channels:  make(map[string]model.Channel),
		videos:    make(map[string]model.Video),
		comments:  make(map[string]model.Comment),
		jobs:      make(map[string]model.Job),
		summaries: make(map[string]model.VideoSummary),
	}
}

// WithClock replaces the clock used for updated_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) UpsertChannels(_ context.Context, channels []model.Channel) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if old, ok := s.channels[ch.ID]; ok {
			ch = old.Merge(ch)
		}
		s.channels[ch.ID] = ch
	}
	return len(channels), nil
}

func (s *Store) FindChannelByID(_ context.Context, id string) (*model.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ch, nil
}

func (s *Store) FindChannelByHandle(_ context.Context, handle string) (*model.Channel, error) {
	return s.findChannel(func(ch model.Channel) bool {
		return ch.Handle != nil && strings.EqualFold(*ch.Handle, handle)
	})
}

func (s *Store) FindChannelByUsername(_ context.Context, username string) (*model.Channel, error) {
	return s.findChannel(func(ch model.Channel) bool {
		return ch.Username != nil && strings.EqualFold(*ch.Username, username)
	})
}

// findChannel returns the most recently updated channel matching match.
func (s *Store) findChannel(match func(model.Channel) bool) (*model.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.Channel
	for _, ch := range s.channels {
		if !match(ch) {
			continue
		}
		if best == nil || ch.UpdatedAt.After(best.UpdatedAt) {
			c := ch
			best = &c
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	return best, nil
}

func (s *Store) UpsertVideos(_ context.Context, videos []model.Video) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range videos {
		if _, ok := s.channels[v.ChannelID]; !ok {
			s.channels[v.ChannelID] = model.Channel{ID: v.ChannelID, UpdatedAt: s.now()}
		}
		if old, ok := s.videos[v.ID]; ok {
			v = old.Merge(v)
		}
		s.videos[v.ID] = v
	}
	return len(videos), nil
}

func (s *Store) FindVideoByID(_ context.Context, id string) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &v, nil
}

func (s *Store) UpsertComments(_ context.Context, comments []model.Comment) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range comments {
		v, ok := s.videos[c.VideoID]
		if !ok || v.ChannelID != c.ChannelID {
			continue
		}
		if old, ok := s.comments[c.ID]; ok {
			c.SentimentScore = old.SentimentScore
			c.SentimentLabel = old.SentimentLabel
			if c.Author == nil {
				c.Author = old.Author
			}
			if c.PublishedAt == nil {
				c.PublishedAt = old.PublishedAt
			}
		}
		s.comments[c.ID] = c
		n++
	}
	return n, nil
}

func (s *Store) ListCommentsByVideo(_ context.Context, videoID string, limit int) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Comment
	for _, c := range s.comments {
		if c.VideoID == videoID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].PublishedAt, out[j].PublishedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateCommentSentiment(_ context.Context, scores []model.CommentSentiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scores {
		c, ok := s.comments[sc.CommentID]
		if !ok {
			continue
		}
		score, label := sc.Score, sc.Label
		c.SentimentScore = &score
		c.SentimentLabel = &label
		c.UpdatedAt = s.now()
		s.comments[c.ID] = c
	}
	return nil
}

func (s *Store) CreateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *Store) FindJobByID(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &j, nil
}

func (s *Store) FindJobByCorrelationKey(_ context.Context, key string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.CorrelationKey != nil && *j.CorrelationKey == key {
			return &j, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *Store) LatestRunningJob(_ context.Context, kind model.RecordKind) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.Job
	for _, j := range s.jobs {
		if j.Status != model.JobRunning || j.Kind != kind {
			continue
		}
		if best == nil || j.CreatedAt.After(best.CreatedAt) {
			jj := j
			best = &jj
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	return best, nil
}

func (s *Store) TransitionJob(_ context.Context, id string, from []model.JobStatus, to model.JobStatus, patch model.JobPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || !containsStatus(from, j.Status) {
		return false, nil
	}
	j.Status = to
	if patch.ChannelID != nil {
		j.ChannelID = patch.ChannelID
	}
	if patch.CorrelationKey != nil {
		j.CorrelationKey = patch.CorrelationKey
	}
	if patch.Error != nil {
		j.Error = patch.Error
	}
	j.UpdatedAt = s.now()
	s.jobs[id] = j
	return true, nil
}

func (s *Store) FailStaleJobs(_ context.Context, cutoff time.Time, reason string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, j := range s.jobs {
		if j.Status != model.JobRunning || !j.UpdatedAt.Before(cutoff) {
			continue
		}
		r := reason
		j.Status = model.JobFailed
		j.Error = &r
		j.UpdatedAt = s.now()
		s.jobs[id] = j
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) UpsertSummary(_ context.Context, sum *model.VideoSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.VideoID] = *sum
	return nil
}

func (s *Store) FindSummaryByVideoID(_ context.Context, videoID string) (*model.VideoSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[videoID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &sum, nil
}

func (s *Store) GetStats(_ context.Context) (*model.StatsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &model.StatsResponse{
		TotalChannels:  len(s.channels),
		TotalVideos:    len(s.videos),
		TotalComments:  len(s.comments),
		TotalSummaries: len(s.summaries),
		JobsByStatus:   make(map[model.JobStatus]int),
	}
	for _, c := range s.comments {
		if c.SentimentScore != nil {
			stats.ScoredComments++
		}
	}
	for _, j := range s.jobs {
		stats.JobsByStatus[j.Status]++
	}
	return stats, nil
}

func containsStatus(list []model.JobStatus, s model.JobStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
