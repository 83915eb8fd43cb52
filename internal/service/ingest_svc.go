package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider"
)

// ErrUnavailable marks features whose provider is not configured.
var ErrUnavailable = errors.New("provider not configured")

// ErrNoVideos is the failure reason of a video job whose listing was empty.
var ErrNoVideos = errors.New("channel listed no videos")

type IngestConfig struct {
	// VideoLimit bounds the page of recent uploads fetched per trigger.
	VideoLimit int
	// CommentVideos is how many of the fetched videos get their comments collected.
	CommentVideos int
	// CommentsPerVideo bounds the comment page fetched per video.
	CommentsPerVideo int
}

func (c *IngestConfig) defaults() {
	if c.VideoLimit <= 0 {
		c.VideoLimit = 50
	}
	if c.CommentVideos < 0 {
		c.CommentVideos = 0
	} else if c.CommentVideos == 0 {
		c.CommentVideos = 5
	}
	if c.CommentsPerVideo <= 0 {
		c.CommentsPerVideo = 100
	}
}

// ChannelResult is the outcome of a channel collection trigger.
type ChannelResult struct {
	Channel *model.Channel
	// Existing is set when the channel was already stored and no provider
	// call was made.
	Existing bool
}

// VideoResult is the outcome of a video collection trigger.
type VideoResult struct {
	Job      *model.Job
	Videos   int
	Skipped  int
	Comments int
}

// IngestService orchestrates collection triggers: it resolves channels,
// pulls recent uploads and comments, and dispatches async scrapes.
type IngestService struct {
	store   Store
	source  ChannelSource
	scraper ScrapeDispatcher
	jobs    *JobTracker
	cache   *CacheService
	cfg     IngestConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewIngestService(store Store, source ChannelSource, scraper ScrapeDispatcher, jobs *JobTracker, cache *CacheService, cfg IngestConfig, logger zerolog.Logger) *IngestService {
	cfg.defaults()
	return &IngestService{
		store:   store,
		source:  source,
		scraper: scraper,
		jobs:    jobs,
		cache:   cache,
		cfg:     cfg,
		log:     logger.With().Str("component", "ingest").Logger(),
		now:     time.Now,
	}
}

// TriggerChannelCollection returns the stored channel matching the URL's
// handle or id, or resolves it through the provider and stores it.
func (s *IngestService) TriggerChannelCollection(ctx context.Context, rawURL string) (*ChannelResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	ref, err := normalizer.ParseChannelRef(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.findStoredChannel(ctx, ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Debug().Str("channel_id", existing.ID).Msg("channel already collected")
		return &ChannelResult{Channel: existing, Existing: true}, nil
	}

	ch, err := s.collectChannel(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &ChannelResult{Channel: ch}, nil
}

// LookupChannel returns a stored channel by id through the cache.
func (s *IngestService) LookupChannel(ctx context.Context, id string) (*model.Channel, error) {
	if ch := s.cache.GetChannel(ctx, id); ch != nil {
		return ch, nil
	}
	ch, err := s.store.FindChannelByID(ctx, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("channel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.cache.SetChannel(ctx, ch)
	return ch, nil
}

// findStoredChannel returns nil when no collected channel matches the ref.
// Bare rows created only to own videos do not count as collected.
func (s *IngestService) findStoredChannel(ctx context.Context, ref normalizer.ChannelRef) (*model.Channel, error) {
	var (
		ch  *model.Channel
		err error
	)
	switch {
	case ref.ChannelID != "":
		if ch = s.cache.GetChannel(ctx, ref.ChannelID); ch != nil {
			return ch, nil
		}
		ch, err = s.store.FindChannelByID(ctx, ref.ChannelID)
	case ref.Handle != "":
		if ch = s.cache.GetChannelByHandle(ctx, ref.Handle); ch != nil {
			return ch, nil
		}
		ch, err = s.store.FindChannelByHandle(ctx, ref.Handle)
	case ref.Username != "":
		ch, err = s.store.FindChannelByUsername(ctx, ref.Username)
	default:
		return nil, nil
	}
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up channel %s: %w", ref, err)
	}
	if ch.Name == nil {
		return nil, nil
	}
	s.cache.SetChannel(ctx, ch)
	return ch, nil
}

func (s *IngestService) collectChannel(ctx context.Context, ref normalizer.ChannelRef) (*model.Channel, error) {
	if s.source == nil {
		return nil, fmt.Errorf("channel lookup: %w", ErrUnavailable)
	}
	rec, err := s.source.ResolveChannel(ctx, ref)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, fmt.Errorf("no channel matches %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving channel %s: %w", ref, err)
	}
	if ref.Handle != "" && !rec.Has("handle", "customUrl") {
		rec["handle"] = ref.Handle
	}
	if ref.Username != "" {
		rec["username"] = ref.Username
	}

	res := normalizer.Channels([]normalizer.Record{rec}, s.now().UTC())
	countNormalized(model.KindChannel, len(res.Rows), len(res.Skipped))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("provider channel record for %s: %w", ref, err)
	}

	if _, err := s.store.UpsertChannels(ctx, res.Rows); err != nil {
		return nil, fmt.Errorf("storing channel: %w", err)
	}
	s.cache.InvalidateChannels(ctx, res.Rows)

	ch, err := s.store.FindChannelByID(ctx, res.Rows[0].ID)
	if err != nil {
		return nil, fmt.Errorf("reading back channel %s: %w", res.Rows[0].ID, err)
	}
	s.log.Info().Str("channel_id", ch.ID).Msg("channel collected")
	return ch, nil
}

// resolveChannelID turns the trigger's identifiers into a stored channel id,
// collecting the channel first when it is unknown.
func (s *IngestService) resolveChannelID(ctx context.Context, req model.CollectRequest) (string, error) {
	if id := strings.TrimSpace(req.ChannelID); id != "" {
		return id, nil
	}
	raw := strings.TrimSpace(req.ChannelHandle)
	if raw == "" {
		raw = strings.TrimSpace(req.URL)
	}
	if raw == "" {
		return "", fmt.Errorf("%w: channelId, channelHandle or url is required", ErrInvalidInput)
	}
	if !strings.Contains(raw, "/") && !strings.HasPrefix(raw, "@") {
		raw = "@" + raw
	}
	ref, err := normalizer.ParseChannelRef(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if ref.ChannelID != "" {
		return ref.ChannelID, nil
	}
	ch, err := s.findStoredChannel(ctx, ref)
	if err != nil {
		return "", err
	}
	if ch == nil {
		if ch, err = s.collectChannel(ctx, ref); err != nil {
			return "", err
		}
	}
	return ch.ID, nil
}

// TriggerVideoCollection fetches recent uploads of a channel under a new
// job, stores them, and then collects comments for the first few videos.
// The job is ready once the videos are stored; comment failures are logged.
func (s *IngestService) TriggerVideoCollection(ctx context.Context, req model.CollectRequest) (*VideoResult, error) {
	channelID, err := s.resolveChannelID(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.source == nil {
		return nil, fmt.Errorf("video listing: %w", ErrUnavailable)
	}

	job, err := s.jobs.Create(ctx, model.KindVideo, &channelID)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("job_id", job.ID).Str("channel_id", channelID).Logger()
	if _, err := s.jobs.Start(ctx, job.ID, ""); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("starting job: %v", err))
		return nil, err
	}

	records, err := s.source.ListRecentVideos(ctx, channelID, s.cfg.VideoLimit)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("listing videos: %v", err))
		return nil, fmt.Errorf("listing videos for %s: %w", channelID, err)
	}

	// An empty listing persists nothing, so the job cannot be ready.
	if len(records) == 0 {
		s.failJob(ctx, job.ID, ErrNoVideos.Error())
		log.Info().Msg("channel listed no videos")
		if j, err := s.jobs.Get(ctx, job.ID); err == nil {
			job = j
		}
		return &VideoResult{Job: job}, nil
	}

	res := normalizer.Videos(records, s.now().UTC())
	countNormalized(model.KindVideo, len(res.Rows), len(res.Skipped))
	for _, sk := range res.Skipped {
		log.Warn().Int("index", sk.Index).Str("reason", sk.Reason).Msg("video record skipped")
	}
	if err := res.Err(); err != nil {
		s.failJob(ctx, job.ID, err.Error())
		return nil, fmt.Errorf("videos for %s: %w", channelID, err)
	}

	if _, err := s.store.UpsertVideos(ctx, res.Rows); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("storing videos: %v", err))
		return nil, fmt.Errorf("storing videos: %w", err)
	}
	if _, err := s.jobs.Complete(ctx, job.ID); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("completing job: %v", err))
		return nil, err
	}
	log.Info().Int("videos", len(res.Rows)).Int("skipped", len(res.Skipped)).Msg("videos collected")

	comments := s.collectComments(ctx, log, res.Rows)

	if j, err := s.jobs.Get(ctx, job.ID); err == nil {
		job = j
	}
	return &VideoResult{Job: job, Videos: len(res.Rows), Skipped: len(res.Skipped), Comments: comments}, nil
}

func (s *IngestService) collectComments(ctx context.Context, log zerolog.Logger, videos []model.Video) int {
	limit := s.cfg.CommentVideos
	if limit > len(videos) {
		limit = len(videos)
	}
	total := 0
	for _, v := range videos[:limit] {
		records, err := s.source.ListComments(ctx, v.ID, s.cfg.CommentsPerVideo)
		if err != nil {
			log.Warn().Err(err).Str("video_id", v.ID).Msg("comment fetch failed, skipping video")
			continue
		}
		res := normalizer.Comments(records, v.ID, v.ChannelID, s.now().UTC())
		if len(res.Rows) == 0 {
			continue
		}
		n, err := s.store.UpsertComments(ctx, res.Rows)
		if err != nil {
			log.Warn().Err(err).Str("video_id", v.ID).Msg("storing comments failed, skipping video")
			continue
		}
		total += n
	}
	return total
}

// DispatchScrape creates a job and asks the scrape provider to collect the
// URL. The provider delivers the rows later to the webhook. With wait set,
// it polls the job until it finishes.
func (s *IngestService) DispatchScrape(ctx context.Context, req model.ScrapeRequest) (*model.Job, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if req.Kind == "" {
		req.Kind = model.KindChannel
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, req.Kind)
	}
	if s.scraper == nil {
		return nil, fmt.Errorf("scrape dispatch: %w", ErrUnavailable)
	}

	var channelID *string
	if ref, err := normalizer.ParseChannelRef(req.URL); err == nil && ref.ChannelID != "" {
		channelID = &ref.ChannelID
	}
	job, err := s.jobs.Create(ctx, req.Kind, channelID)
	if err != nil {
		return nil, err
	}

	snapshotID, err := s.scraper.Trigger(ctx, req.Kind, []string{req.URL})
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("scrape trigger: %v", err))
		return nil, fmt.Errorf("triggering scrape: %w", err)
	}
	if _, err := s.jobs.Start(ctx, job.ID, snapshotID); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("starting job: %v", err))
		return nil, err
	}
	s.log.Info().Str("job_id", job.ID).Str("snapshot_id", snapshotID).Msg("scrape dispatched")

	if req.Wait {
		return s.jobs.Await(ctx, job.ID)
	}
	return s.jobs.Get(ctx, job.ID)
}

// failJob records a failure without masking the caller's error.
func (s *IngestService) failJob(ctx context.Context, id, reason string) {
	if _, err := s.jobs.Fail(context.WithoutCancel(ctx), id, reason); err != nil {
		s.log.Error().Err(err).Str("job_id", id).Msg("failed to mark job failed")
	}
}

func countNormalized(kind model.RecordKind, kept, skipped int) {
	metrics.RecordsNormalized.WithLabelValues(string(kind), "kept").Add(float64(kept))
	metrics.RecordsNormalized.WithLabelValues(string(kind), "skipped").Add(float64(skipped))
}
