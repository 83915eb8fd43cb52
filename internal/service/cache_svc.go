package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

// Redis key TTLs.
const (
	ChannelCacheTTL = 15 * time.Minute
	SummaryCacheTTL = 5 * time.Minute
)

// CacheService provides a Redis cache-aside layer for channel and summary
// lookups. A CacheService with a nil client turns every call into a no-op.
type CacheService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewCacheService creates a new CacheService. If redisURL is empty or connection
// fails, it returns a CacheService with a nil client (cache operations become no-ops).
func NewCacheService(redisURL string, logger zerolog.Logger) *CacheService {
	log := logger.With().Str("component", "cache").Logger()
	if redisURL == "" {
		log.Info().Msg("redis: no URL configured, caching disabled")
		return &CacheService{log: log}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &CacheService{log: log}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		_ = rdb.Close()
		return &CacheService{log: log}
	}

	log.Info().Msg("redis: connected, caching enabled")
	return &CacheService{rdb: rdb, log: log}
}

// NewCacheServiceWithClient wraps an existing client.
func NewCacheServiceWithClient(rdb *redis.Client, logger zerolog.Logger) *CacheService {
	return &CacheService{rdb: rdb, log: logger.With().Str("component", "cache").Logger()}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// GetChannel returns a cached channel by id, or nil on miss.
func (c *CacheService) GetChannel(ctx context.Context, id string) *model.Channel {
	var ch model.Channel
	if !c.get(ctx, channelKey(id), &ch) {
		return nil
	}
	return &ch
}

// GetChannelByHandle returns a cached channel by "@handle", or nil on miss.
func (c *CacheService) GetChannelByHandle(ctx context.Context, handle string) *model.Channel {
	var ch model.Channel
	if !c.get(ctx, handleKey(handle), &ch) {
		return nil
	}
	return &ch
}

// SetChannel caches a channel under its id and, when known, its handle.
func (c *CacheService) SetChannel(ctx context.Context, ch *model.Channel) {
	c.set(ctx, channelKey(ch.ID), ch, ChannelCacheTTL)
	if ch.Handle != nil {
		c.set(ctx, handleKey(*ch.Handle), ch, ChannelCacheTTL)
	}
}

// InvalidateChannels drops cached entries for freshly written channels.
func (c *CacheService) InvalidateChannels(ctx context.Context, channels []model.Channel) {
	keys := make([]string, 0, 2*len(channels))
	for _, ch := range channels {
		keys = append(keys, channelKey(ch.ID))
		if ch.Handle != nil {
			keys = append(keys, handleKey(*ch.Handle))
		}
	}
	c.del(ctx, keys...)
}

// GetSummary returns a cached video summary, or nil on miss.
func (c *CacheService) GetSummary(ctx context.Context, videoID string) *model.VideoSummary {
	var s model.VideoSummary
	if !c.get(ctx, summaryKey(videoID), &s) {
		return nil
	}
	return &s
}

// SetSummary caches the latest summary of a video.
func (c *CacheService) SetSummary(ctx context.Context, s *model.VideoSummary) {
	c.set(ctx, summaryKey(s.VideoID), s, SummaryCacheTTL)
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *CacheService) get(ctx context.Context, key string, out any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.Inc()
		return false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache get error")
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return false
	}
	metrics.CacheHits.Inc()
	return true
}

func (c *CacheService) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set error")
	}
}

func (c *CacheService) del(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Msg("cache invalidate error")
	}
}

func channelKey(id string) string {
	return fmt.Sprintf("channel:%s", id)
}

func handleKey(handle string) string {
	return fmt.Sprintf("channel:handle:%s", strings.ToLower(handle))
}

func summaryKey(videoID string) string {
	return fmt.Sprintf("summary:%s", videoID)
}
