package service

import (
	"context"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
)

// ChannelSource is the synchronous video-metadata provider. Records use the
// keys the normalizer understands. ResolveChannel returns provider.ErrNotFound
// when nothing matches the ref.
type ChannelSource interface {
	ResolveChannel(ctx context.Context, ref normalizer.ChannelRef) (normalizer.Record, error)
	ListRecentVideos(ctx context.Context, channelID string, limit int) ([]normalizer.Record, error)
	ListComments(ctx context.Context, videoID string, limit int) ([]normalizer.Record, error)
}

// ScrapeDispatcher asks the async scrape provider to collect URLs. The
// returned snapshot id is echoed back on the webhook delivery.
type ScrapeDispatcher interface {
	Trigger(ctx context.Context, kind model.RecordKind, urls []string) (string, error)
}

// Classifier scores a text in [-1, 1]; 0 is neutral.
type Classifier interface {
	Classify(ctx context.Context, text string) (float64, error)
}

// Summarizer turns a prompt into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}
