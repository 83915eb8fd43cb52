package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

// NoCommentsSummary is stored for videos without comments.
const NoCommentsSummary = "No comments available."

type SentimentConfig struct {
	MaxComments         int // comments loaded per analysis
	SummaryComments     int // cleaned comments in the primary prompt
	FallbackComments    int // cleaned comments in the fallback prompt
	PromptLimit         int // primary prompt size in bytes
	FallbackPromptLimit int
	Workers             int // concurrent classifier calls
}

func (c *SentimentConfig) defaults() {
	if c.MaxComments <= 0 {
		c.MaxComments = 100
	}
	if c.SummaryComments <= 0 {
		c.SummaryComments = 50
	}
	if c.FallbackComments <= 0 {
		c.FallbackComments = 20
	}
	if c.PromptLimit <= 0 {
		c.PromptLimit = 4000
	}
	if c.FallbackPromptLimit <= 0 {
		c.FallbackPromptLimit = 1500
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// AnalysisResult is the outcome of one analysis run.
type AnalysisResult struct {
	Sentiment        *model.SentimentAggregate
	Summary          string
	Degraded         bool
	CommentsAnalyzed int
}

// SentimentService scores a video's comments and writes the per-video summary.
type SentimentService struct {
	store      Store
	classifier Classifier
	primary    Summarizer
	fallback   Summarizer
	cache      *CacheService
	cfg        SentimentConfig
	log        zerolog.Logger
	now        func() time.Time
}

func NewSentimentService(store Store, classifier Classifier, primary, fallback Summarizer, cache *CacheService, cfg SentimentConfig, logger zerolog.Logger) *SentimentService {
	cfg.defaults()
	return &SentimentService{
		store:      store,
		classifier: classifier,
		primary:    primary,
		fallback:   fallback,
		cache:      cache,
		cfg:        cfg,
		log:        logger.With().Str("component", "sentiment").Logger(),
		now:        time.Now,
	}
}

// Analyze scores up to MaxComments comments of a video, aggregates them and
// stores a summary. Classifier and summarizer failures never fail the run.
func (s *SentimentService) Analyze(ctx context.Context, videoID string) (*AnalysisResult, error) {
	start := time.Now()
	defer func() { metrics.AnalysisDuration.Observe(time.Since(start).Seconds()) }()

	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: videoId is required", ErrInvalidInput)
	}
	if _, err := s.store.FindVideoByID(ctx, videoID); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
		}
		return nil, err
	}

	comments, err := s.store.ListCommentsByVideo(ctx, videoID, s.cfg.MaxComments)
	if err != nil {
		return nil, fmt.Errorf("loading comments: %w", err)
	}
	log := s.log.With().Str("video_id", videoID).Logger()

	if len(comments) == 0 {
		res := &AnalysisResult{Summary: NoCommentsSummary}
		if err := s.save(ctx, videoID, res); err != nil {
			return nil, err
		}
		return res, nil
	}

	scores := s.classify(ctx, log, comments)
	res := &AnalysisResult{
		Sentiment:        AggregateSentiment(scores),
		CommentsAnalyzed: len(comments),
	}

	texts := make([]string, len(comments))
	for i, c := range comments {
		texts[i] = c.Text
	}
	res.Summary, res.Degraded = s.summarize(ctx, log, texts)

	if err := s.save(ctx, videoID, res); err != nil {
		return nil, err
	}
	log.Info().Int("comments", len(comments)).Bool("degraded", res.Degraded).Msg("analysis stored")
	return res, nil
}

// Summary returns the stored summary of a video through the cache.
func (s *SentimentService) Summary(ctx context.Context, videoID string) (*model.VideoSummary, error) {
	if sum := s.cache.GetSummary(ctx, videoID); sum != nil {
		return sum, nil
	}
	sum, err := s.store.FindSummaryByVideoID(ctx, videoID)
	if isNoRows(err) {
		return nil, fmt.Errorf("summary for %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.cache.SetSummary(ctx, sum)
	return sum, nil
}

// classify scores every comment with bounded concurrency. A failed call
// scores 0 and is not written back.
func (s *SentimentService) classify(ctx context.Context, log zerolog.Logger, comments []model.Comment) []float64 {
	scores := make([]float64, len(comments))
	ok := make([]bool, len(comments))
	if s.classifier == nil {
		log.Warn().Msg("no classifier configured, all comments neutral")
		return scores
	}

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for i := range comments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			score, err := s.classifier.Classify(ctx, comments[i].Text)
			if err != nil {
				log.Debug().Err(err).Str("comment_id", comments[i].ID).Msg("classification failed, scoring neutral")
				return
			}
			scores[i], ok[i] = clampScore(score), true
		}(i)
	}
	wg.Wait()

	var writes []model.CommentSentiment
	for i, c := range comments {
		if ok[i] {
			writes = append(writes, model.CommentSentiment{CommentID: c.ID, Score: scores[i], Label: LabelFor(scores[i])})
		}
	}
	if err := s.store.UpdateCommentSentiment(ctx, writes); err != nil {
		log.Warn().Err(err).Msg("writing comment scores failed")
	}
	return scores
}

// summarize tries the primary model, then the fallback with a shorter
// prompt, then settles for a fixed placeholder. The bool reports the
// placeholder was used.
func (s *SentimentService) summarize(ctx context.Context, log zerolog.Logger, texts []string) (string, bool) {
	cleaned := CleanComments(texts, s.cfg.SummaryComments)
	if len(cleaned) == 0 {
		return placeholderSummary(len(texts)), true
	}

	if s.primary != nil {
		out, err := s.primary.Summarize(ctx, BuildPrompt(cleaned, s.cfg.PromptLimit))
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), false
		}
		log.Warn().Err(err).Msg("primary summarizer failed, trying fallback")
	}

	if s.fallback != nil {
		short := cleaned
		if len(short) > s.cfg.FallbackComments {
			short = short[:s.cfg.FallbackComments]
		}
		out, err := s.fallback.Summarize(ctx, BuildPrompt(short, s.cfg.FallbackPromptLimit))
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), false
		}
		log.Warn().Err(err).Msg("fallback summarizer failed, using placeholder")
	}
	return placeholderSummary(len(texts)), true
}

func (s *SentimentService) save(ctx context.Context, videoID string, res *AnalysisResult) error {
	sum := &model.VideoSummary{
		VideoID:          videoID,
		Summary:          res.Summary,
		CommentsAnalyzed: res.CommentsAnalyzed,
		Degraded:         res.Degraded,
		UpdatedAt:        s.now().UTC(),
	}
	if a := res.Sentiment; a != nil {
		sum.PositivePercentage = &a.PositivePercentage
		sum.NegativePercentage = &a.NegativePercentage
		sum.AverageScore = &a.AverageScore
	}
	if err := s.store.UpsertSummary(ctx, sum); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	s.cache.SetSummary(ctx, sum)
	return nil
}

// AggregateSentiment computes the shares of positive and negative scores and
// their mean, ignoring neutral (zero) scores. It returns nil when every score
// is neutral.
func AggregateSentiment(scores []float64) *model.SentimentAggregate {
	var pos, neg int
	var sum float64
	for _, sc := range scores {
		switch {
		case sc > 0:
			pos++
		case sc < 0:
			neg++
		default:
			continue
		}
		sum += sc
	}
	n := pos + neg
	if n == 0 {
		return nil
	}
	return &model.SentimentAggregate{
		PositivePercentage: round(float64(pos)/float64(n)*100, 2),
		NegativePercentage: round(float64(neg)/float64(n)*100, 2),
		AverageScore:       round(sum/float64(n), 4),
	}
}

// LabelFor maps a score to its label by sign.
func LabelFor(score float64) model.SentimentLabel {
	switch {
	case score > 0:
		return model.SentimentPositive
	case score < 0:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// Cleaned comment length bounds, in runes.
const (
	minCommentLen = 5
	maxCommentLen = 500
)

// CleanComments NFKC-normalizes texts, strips non-printable characters and
// keeps up to limit texts of 5 to 500 runes. Longer texts are cut.
func CleanComments(texts []string, limit int) []string {
	out := make([]string, 0, min(len(texts), limit))
	for _, t := range texts {
		if len(out) >= limit {
			break
		}
		t = norm.NFKC.String(t)
		t = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return ' '
			}
			if !unicode.IsPrint(r) {
				return -1
			}
			return r
		}, t)
		t = strings.Join(strings.Fields(t), " ")
		if utf8.RuneCountInString(t) < minCommentLen {
			continue
		}
		if utf8.RuneCountInString(t) > maxCommentLen {
			t = string([]rune(t)[:maxCommentLen])
		}
		out = append(out, t)
	}
	return out
}

const promptHeader = "Summarize the overall audience reaction in these video comments in two or three sentences:\n"

// BuildPrompt joins comments under a fixed instruction and truncates the
// result to limit bytes on a rune boundary.
func BuildPrompt(comments []string, limit int) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, c := range comments {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	p := b.String()
	if len(p) <= limit {
		return p
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(p[cut]) {
		cut--
	}
	return p[:cut]
}

func placeholderSummary(n int) string {
	return fmt.Sprintf("Summary unavailable. %d comments were analyzed.", n)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
