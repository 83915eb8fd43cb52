package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/pkg/hash"
)

// ErrBadSignature is returned when a delivery's HMAC does not match.
var ErrBadSignature = errors.New("webhook signature mismatch")

// ErrBadAuth is returned when the echoed Authorization header does not match
// the value handed to the scrape provider.
var ErrBadAuth = errors.New("webhook authorization mismatch")

// SnapshotHeaders are the header names a provider may carry its snapshot id in.
var SnapshotHeaders = []string{"x-snapshot-id", "x-snapshot_id", "snapshot-id", "x-brightdata-snapshot-id", "x-job-id"}

// SnapshotIDFromHeaders returns the first non-empty snapshot header. get must
// look headers up case-insensitively.
func SnapshotIDFromHeaders(get func(name string) string) string {
	for _, h := range SnapshotHeaders {
		if v := get(h); v != "" {
			return v
		}
	}
	return ""
}

// Delivery is one inbound webhook call.
type Delivery struct {
	Body       []byte
	SnapshotID string
	Signature  string
	// Authorization is the header the provider echoes back from the trigger.
	Authorization string
}

// WebhookService receives scrape provider deliveries, links them to jobs,
// and persists the normalized rows.
type WebhookService struct {
	store  Store
	jobs   *JobTracker
	cache  *CacheService
	secret string
	auth   string
	log    zerolog.Logger
	now    func() time.Time
}

func NewWebhookService(store Store, jobs *JobTracker, cache *CacheService, secret string, logger zerolog.Logger) *WebhookService {
	return &WebhookService{
		store:  store,
		jobs:   jobs,
		cache:  cache,
		secret: secret,
		log:    logger.With().Str("component", "webhook").Logger(),
		now:    time.Now,
	}
}

// WithAuth requires every delivery to carry auth in its Authorization header.
func (s *WebhookService) WithAuth(auth string) *WebhookService {
	s.auth = auth
	return s
}

// Handle processes one delivery. Structural errors wrap ErrInvalidInput and
// leave jobs untouched. A delivery whose records are all invalid fails its
// job and returns an error wrapping normalizer.ErrNoValidRecords.
func (s *WebhookService) Handle(ctx context.Context, d Delivery) (*model.WebhookResponse, error) {
	if s.secret != "" && !hash.VerifyHMAC(s.secret, d.Body, d.Signature) {
		return nil, ErrBadSignature
	}
	if s.auth != "" && subtle.ConstantTimeCompare([]byte(s.auth), []byte(d.Authorization)) != 1 {
		return nil, ErrBadAuth
	}

	p, err := normalizer.ParsePayload(d.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	snapshotID := d.SnapshotID
	if snapshotID == "" {
		snapshotID = p.SnapshotID
	}
	log := s.log.With().Str("snapshot_id", snapshotID).Str("kind", string(p.Kind)).Logger()

	job, err := s.jobs.Resolve(ctx, snapshotID, p.Kind)
	if err != nil {
		return nil, err
	}
	resp := &model.WebhookResponse{
		Status:     model.StatusSuccess,
		SnapshotID: snapshotID,
		Kind:       p.Kind,
	}
	if job != nil {
		log = log.With().Str("job_id", job.ID).Logger()
		resp.JobID = job.ID
		if resp.SnapshotID == "" && job.CorrelationKey != nil {
			resp.SnapshotID = *job.CorrelationKey
		}
	}

	// Nothing to persist, so the job keeps its status for the poll loop or
	// the reaper to settle.
	if len(p.Records) == 0 {
		log.Info().Msg("empty delivery, job left unchanged")
		resp.Message = "empty delivery"
		return resp, nil
	}

	if job == nil {
		log.Warn().Msg("unlinked delivery, rows are stored without a job")
	} else if job.Status == model.JobPending {
		if _, err := s.jobs.Start(ctx, job.ID, ""); err != nil {
			return nil, err
		}
	}

	persisted, skipped, channelID, err := s.persist(ctx, log, p)
	resp.Persisted, resp.Skipped = persisted, skipped
	if err != nil {
		if job != nil {
			if _, ferr := s.jobs.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
				log.Error().Err(ferr).Msg("failed to mark job failed")
			}
		}
		return resp, err
	}

	s.completeJob(ctx, log, job, channelID)
	if skipped > 0 {
		resp.Message = fmt.Sprintf("partial success: %d stored, %d skipped", persisted, skipped)
	}
	log.Info().Int("persisted", persisted).Int("skipped", skipped).Msg("delivery processed")
	return resp, nil
}

// persist normalizes and stores the records of p. It returns the channel
// the rows belong to when there is exactly one.
func (s *WebhookService) persist(ctx context.Context, log zerolog.Logger, p *normalizer.Payload) (int, int, *string, error) {
	now := s.now().UTC()
	var (
		kept    int
		skips   []normalizer.Skip
		channel *string
		err     error
	)
	switch p.Kind {
	case model.KindVideo:
		res := normalizer.Videos(p.Records, now)
		kept, skips = len(res.Rows), res.Skipped
		if err = res.Err(); err == nil {
			_, err = s.store.UpsertVideos(ctx, res.Rows)
			channel = singleChannel(res.Rows)
		}
	default:
		res := normalizer.Channels(p.Records, now)
		kept, skips = len(res.Rows), res.Skipped
		if err = res.Err(); err == nil {
			if _, err = s.store.UpsertChannels(ctx, res.Rows); err == nil {
				s.cache.InvalidateChannels(ctx, res.Rows)
				if len(res.Rows) == 1 {
					channel = &res.Rows[0].ID
				}
			}
		}
	}

	skipped := len(skips) + p.Malformed
	countNormalized(p.Kind, kept, skipped)
	for _, sk := range skips {
		log.Warn().Int("index", sk.Index).Str("reason", sk.Reason).Msg("record skipped")
	}
	if err != nil {
		if errors.Is(err, normalizer.ErrNoValidRecords) {
			return 0, skipped, nil, err
		}
		return 0, skipped, nil, fmt.Errorf("storing %s rows: %w", p.Kind, err)
	}
	return kept, skipped, channel, nil
}

func (s *WebhookService) completeJob(ctx context.Context, log zerolog.Logger, job *model.Job, channelID *string) {
	if job == nil {
		return
	}
	patch := model.JobPatch{}
	if job.ChannelID == nil {
		patch.ChannelID = channelID
	}
	applied, err := s.jobs.Transition(ctx, job.ID, model.JobReady, patch)
	if err != nil {
		log.Error().Err(err).Msg("failed to mark job ready")
		return
	}
	if !applied {
		log.Info().Str("status", string(job.Status)).Msg("late delivery, job already finished")
	}
}

func singleChannel(videos []model.Video) *string {
	if len(videos) == 0 {
		return nil
	}
	id := videos[0].ChannelID
	for _, v := range videos[1:] {
		if v.ChannelID != id {
			return nil
		}
	}
	return &id
}
