package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/store/memstore"
)

func newIngest(store *memstore.Store, src ChannelSource, scraper ScrapeDispatcher) *IngestService {
	return NewIngestService(store, src, scraper, newTracker(store), &CacheService{}, IngestConfig{CommentVideos: 2}, zerolog.Nop())
}

func TestTriggerChannelCollection_NewChannel(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	src := &fakeSource{channels: map[string]normalizer.Record{
		"@examplechannel": {"id": "UCexample", "name": "Example", "subscribers": "1.5K"},
	}}
	svc := newIngest(store, src, nil)

	res, err := svc.TriggerChannelCollection(ctx, "https://youtube.com/@examplechannel")
	if err != nil {
		t.Fatalf("TriggerChannelCollection: %v", err)
	}
	if res.Existing {
		t.Error("fresh channel reported as existing")
	}
	if res.Channel.ID != "UCexample" {
		t.Errorf("id = %s, want UCexample", res.Channel.ID)
	}
	if res.Channel.Handle == nil || *res.Channel.Handle != "@examplechannel" {
		t.Errorf("handle = %v, want @examplechannel", res.Channel.Handle)
	}
	if res.Channel.SubscriberCount == nil || *res.Channel.SubscriberCount != 1500 {
		t.Errorf("subscribers = %v, want 1500", res.Channel.SubscriberCount)
	}

	stored, err := store.FindChannelByHandle(ctx, "@examplechannel")
	if err != nil || stored.ID != "UCexample" {
		t.Errorf("stored channel = %v, %v", stored, err)
	}
}

func TestTriggerChannelCollection_ExistingSkipsProvider(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.UpsertChannels(ctx, []model.Channel{{ID: "UC1", Handle: ptr("@known"), Name: ptr("Known")}})
	src := &fakeSource{}
	svc := newIngest(store, src, nil)

	res, err := svc.TriggerChannelCollection(ctx, "https://www.youtube.com/@known")
	if err != nil {
		t.Fatalf("TriggerChannelCollection: %v", err)
	}
	if !res.Existing || res.Channel.ID != "UC1" {
		t.Errorf("result = %+v, want existing UC1", res)
	}
	if src.resolveCalls != 0 {
		t.Errorf("provider called %d times, want 0", src.resolveCalls)
	}
}

func TestTriggerChannelCollection_LegacyURLIsIdempotent(t *testing.T) {
	for _, raw := range []string{"https://www.youtube.com/c/OldName", "https://www.youtube.com/user/OldName"} {
		t.Run(raw, func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			src := &fakeSource{channels: map[string]normalizer.Record{
				"OldName": {"id": "UCold", "name": "Old", "customUrl": "@newname"},
			}}
			svc := newIngest(store, src, nil)

			first, err := svc.TriggerChannelCollection(ctx, raw)
			if err != nil {
				t.Fatalf("first trigger: %v", err)
			}
			if first.Existing {
				t.Error("first trigger reported an existing channel")
			}
			second, err := svc.TriggerChannelCollection(ctx, strings.ToLower(raw))
			if err != nil {
				t.Fatalf("second trigger: %v", err)
			}
			if !second.Existing || second.Channel.ID != "UCold" {
				t.Errorf("second result = %+v, want existing UCold", second)
			}
			if src.resolveCalls != 1 {
				t.Errorf("provider called %d times, want 1", src.resolveCalls)
			}
		})
	}
}

func TestTriggerChannelCollection_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{"empty url", "", ErrInvalidInput},
		{"unparseable", "https://example.com/not-a-channel", ErrInvalidInput},
		{"provider has no match", "https://youtube.com/@ghost", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newIngest(memstore.New(), &fakeSource{}, nil)
			_, err := svc.TriggerChannelCollection(context.Background(), tt.url)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func videoRecords(n int, channelID string) []normalizer.Record {
	out := make([]normalizer.Record, n)
	for i := range out {
		out[i] = normalizer.Record{
			"video_id":    fmt.Sprintf("v%d", i+1),
			"youtuber_id": channelID,
			"title":       fmt.Sprintf("Video %d", i+1),
		}
	}
	return out
}

func TestTriggerVideoCollection_StoresVideosAndComments(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	src := &fakeSource{
		videos: videoRecords(3, "UC1"),
		comments: map[string][]normalizer.Record{
			"v1": {{"id": "k1", "text": "love it"}, {"id": "k2", "text": "meh"}},
			"v3": {{"id": "k3", "text": "never fetched"}},
		},
		commentErrs: map[string]error{"v2": errUpstream},
	}
	svc := newIngest(store, src, nil)

	res, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelID: "UC1"})
	if err != nil {
		t.Fatalf("TriggerVideoCollection: %v", err)
	}
	if res.Videos != 3 {
		t.Errorf("videos = %d, want 3", res.Videos)
	}
	// v2 fails and v3 is past the comment budget of 2.
	if res.Comments != 2 {
		t.Errorf("comments = %d, want 2", res.Comments)
	}
	if len(src.commentCalls) != 2 {
		t.Errorf("comment fetches = %v, want 2", src.commentCalls)
	}
	if res.Job.Status != model.JobReady {
		t.Errorf("job status = %s, want ready", res.Job.Status)
	}
	if res.Job.ChannelID == nil || *res.Job.ChannelID != "UC1" {
		t.Errorf("job channel = %v, want UC1", res.Job.ChannelID)
	}
	if _, err := store.FindChannelByID(ctx, "UC1"); err != nil {
		t.Errorf("owning channel row missing: %v", err)
	}
}

func TestTriggerVideoCollection_ListingFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newIngest(store, &fakeSource{videosErr: errUpstream}, nil)

	_, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelID: "UC1"})
	if !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v, want upstream error", err)
	}
	stats, _ := store.GetStats(ctx)
	if stats.JobsByStatus[model.JobFailed] != 1 {
		t.Errorf("jobs by status = %v, want one failed", stats.JobsByStatus)
	}
}

func TestTriggerVideoCollection_AllMalformedFailsJob(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	src := &fakeSource{videos: []normalizer.Record{{"title": "no ids"}}}
	svc := newIngest(store, src, nil)

	_, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelID: "UC1"})
	if !errors.Is(err, normalizer.ErrNoValidRecords) {
		t.Fatalf("err = %v, want ErrNoValidRecords", err)
	}
	stats, _ := store.GetStats(ctx)
	if stats.JobsByStatus[model.JobFailed] != 1 {
		t.Errorf("jobs by status = %v, want one failed", stats.JobsByStatus)
	}
}

func TestTriggerVideoCollection_EmptyListingIsNotReady(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newIngest(store, &fakeSource{}, nil)

	res, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelID: "UC1"})
	if err != nil {
		t.Fatalf("TriggerVideoCollection: %v", err)
	}
	if res.Videos != 0 || res.Comments != 0 {
		t.Errorf("videos/comments = %d/%d, want 0/0", res.Videos, res.Comments)
	}
	if res.Job.Status != model.JobFailed {
		t.Errorf("job status = %s, want failed", res.Job.Status)
	}
	if res.Job.Error == nil || *res.Job.Error != ErrNoVideos.Error() {
		t.Errorf("job error = %v", res.Job.Error)
	}
}

func TestTriggerVideoCollection_ResolvesHandle(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	src := &fakeSource{
		channels: map[string]normalizer.Record{"@abc": {"id": "UCabc", "name": "ABC"}},
		videos:   videoRecords(1, "UCabc"),
	}
	svc := newIngest(store, src, nil)

	res, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelHandle: "abc"})
	if err != nil {
		t.Fatalf("TriggerVideoCollection: %v", err)
	}
	if *res.Job.ChannelID != "UCabc" {
		t.Errorf("channel = %s, want UCabc", *res.Job.ChannelID)
	}
}

func TestTriggerVideoCollection_MissingIdentifiers(t *testing.T) {
	svc := newIngest(memstore.New(), &fakeSource{}, nil)
	_, err := svc.TriggerVideoCollection(context.Background(), model.CollectRequest{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDispatchScrape(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	scraper := &fakeScraper{snapshotID: "s_123"}
	svc := newIngest(store, &fakeSource{}, scraper)

	job, err := svc.DispatchScrape(ctx, model.ScrapeRequest{URL: "https://youtube.com/@abc", Kind: model.KindChannel})
	if err != nil {
		t.Fatalf("DispatchScrape: %v", err)
	}
	if job.Status != model.JobRunning {
		t.Errorf("status = %s, want running", job.Status)
	}
	if job.CorrelationKey == nil || *job.CorrelationKey != "s_123" {
		t.Errorf("correlation key = %v, want s_123", job.CorrelationKey)
	}
}

func TestDispatchScrape_TriggerFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newIngest(store, &fakeSource{}, &fakeScraper{err: errUpstream})

	_, err := svc.DispatchScrape(ctx, model.ScrapeRequest{URL: "https://youtube.com/@abc"})
	if !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v, want upstream error", err)
	}
	stats, _ := store.GetStats(ctx)
	if stats.JobsByStatus[model.JobFailed] != 1 {
		t.Errorf("jobs by status = %v, want one failed", stats.JobsByStatus)
	}
}

func TestDispatchScrape_WaitTimesOut(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newIngest(store, &fakeSource{}, &fakeScraper{snapshotID: "s_1"})

	job, err := svc.DispatchScrape(ctx, model.ScrapeRequest{URL: "https://youtube.com/@abc", Wait: true})
	if !errors.Is(err, ErrJobTimeout) {
		t.Fatalf("err = %v, want ErrJobTimeout", err)
	}
	if job.Status != model.JobFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
}

func TestDispatchScrape_Validation(t *testing.T) {
	svc := newIngest(memstore.New(), &fakeSource{}, &fakeScraper{})
	for _, req := range []model.ScrapeRequest{
		{},
		{URL: "https://youtube.com/@abc", Kind: "podcast"},
	} {
		if _, err := svc.DispatchScrape(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("DispatchScrape(%+v) err = %v, want ErrInvalidInput", req, err)
		}
	}
}

func TestJobStoreErrorsFailTheJob(t *testing.T) {
	tests := []struct {
		name   string
		failOn model.JobStatus
		run    func(ctx context.Context, svc *IngestService) error
	}{
		{"video complete", model.JobReady, func(ctx context.Context, svc *IngestService) error {
			_, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelID: "UC1"})
			return err
		}},
		{"video start", model.JobRunning, func(ctx context.Context, svc *IngestService) error {
			_, err := svc.TriggerVideoCollection(ctx, model.CollectRequest{ChannelID: "UC1"})
			return err
		}},
		{"scrape start", model.JobRunning, func(ctx context.Context, svc *IngestService) error {
			_, err := svc.DispatchScrape(ctx, model.ScrapeRequest{URL: "https://youtube.com/@abc"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := memstore.New()
			store := &flakyJobs{Store: mem, failOn: tt.failOn}
			src := &fakeSource{videos: videoRecords(1, "UC1")}
			svc := NewIngestService(store, src, &fakeScraper{snapshotID: "s_1"}, newTracker(store), &CacheService{}, IngestConfig{}, zerolog.Nop())

			if err := tt.run(ctx, svc); !errors.Is(err, errUpstream) {
				t.Fatalf("err = %v, want store error", err)
			}
			stats, _ := mem.GetStats(ctx)
			if stats.JobsByStatus[model.JobFailed] != 1 {
				t.Errorf("jobs by status = %v, want one failed", stats.JobsByStatus)
			}
		})
	}
}
