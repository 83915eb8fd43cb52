package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/store/memstore"
)

var _ Store = (*memstore.Store)(nil)

var errUpstream = errors.New("upstream exploded")

type fakeSource struct {
	mu           sync.Mutex
	channels     map[string]normalizer.Record // keyed by handle or channel id
	videos       []normalizer.Record
	videosErr    error
	comments     map[string][]normalizer.Record
	commentErrs  map[string]error
	resolveCalls int
	commentCalls []string
}

func (f *fakeSource) ResolveChannel(_ context.Context, ref normalizer.ChannelRef) (normalizer.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	rec, ok := f.channels[ref.String()]
	if !ok {
		return nil, provider.ErrNotFound
	}
	out := normalizer.Record{}
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) ListRecentVideos(_ context.Context, _ string, limit int) ([]normalizer.Record, error) {
	if f.videosErr != nil {
		return nil, f.videosErr
	}
	if len(f.videos) > limit {
		return f.videos[:limit], nil
	}
	return f.videos, nil
}

func (f *fakeSource) ListComments(_ context.Context, videoID string, _ int) ([]normalizer.Record, error) {
	f.mu.Lock()
	f.commentCalls = append(f.commentCalls, videoID)
	f.mu.Unlock()
	if err := f.commentErrs[videoID]; err != nil {
		return nil, err
	}
	return f.comments[videoID], nil
}

type fakeScraper struct {
	snapshotID string
	err        error
	calls      int
}

func (f *fakeScraper) Trigger(context.Context, model.RecordKind, []string) (string, error) {
	f.calls++
	return f.snapshotID, f.err
}

// fakeClassifier returns a fixed score per text; texts absent from the map fail.
type fakeClassifier struct {
	mu     sync.Mutex
	scores map[string]float64
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s, ok := f.scores[text]
	if !ok {
		return 0, errUpstream
	}
	return s, nil
}

type fakeSummarizer struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTracker(store JobStore) *JobTracker {
	return NewJobTracker(store, time.Millisecond, 3, zerolog.Nop()).WithSleep(noSleep)
}

func ptr[T any](v T) *T { return &v }

// flakyJobs fails every transition into one status.
type flakyJobs struct {
	*memstore.Store
	failOn model.JobStatus
}

func (f *flakyJobs) TransitionJob(ctx context.Context, id string, from []model.JobStatus, to model.JobStatus, patch model.JobPatch) (bool, error) {
	if to == f.failOn {
		return false, errUpstream
	}
	return f.Store.TransitionJob(ctx, id, from, to, patch)
}
