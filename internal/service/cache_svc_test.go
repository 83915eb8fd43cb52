package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

func TestCacheKeys(t *testing.T) {
	if got := handleKey("@MixedCase"); got != "channel:handle:@mixedcase" {
		t.Errorf("handleKey = %s", got)
	}
	if got := channelKey("UC1"); got != "channel:UC1" {
		t.Errorf("channelKey = %s", got)
	}
	if got := summaryKey("v1"); got != "summary:v1" {
		t.Errorf("summaryKey = %s", got)
	}
}

func TestCache_NilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*CacheService{nil, {}} {
		c.SetChannel(ctx, &model.Channel{ID: "UC1"})
		if c.GetChannel(ctx, "UC1") != nil {
			t.Error("nil client returned a channel")
		}
		if c.Client() != nil {
			t.Error("nil client exposed a redis client")
		}
		if err := c.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
}

func TestCache_UnreachableRedisMisses(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewCacheServiceWithClient(rdb, zerolog.Nop())
	defer c.Close()

	if c.Client() != rdb {
		t.Error("Client did not return the wrapped client")
	}
	ch := &model.Channel{ID: "UC1", Handle: ptr("@one")}
	c.SetChannel(ctx, ch)
	c.InvalidateChannels(ctx, []model.Channel{*ch})
	if c.GetChannelByHandle(ctx, "@one") != nil {
		t.Error("unreachable redis should read as a miss")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	url := os.Getenv("TUBEPULSE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TUBEPULSE_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	ctx := context.Background()
	c := NewCacheServiceWithClient(redis.NewClient(opts), zerolog.Nop())
	defer c.Close()

	ch := &model.Channel{ID: "UCcache", Handle: ptr("@Cached"), Name: ptr("Cached")}
	c.SetChannel(ctx, ch)
	got := c.GetChannelByHandle(ctx, "@cached")
	if got == nil || got.ID != "UCcache" || *got.Name != "Cached" {
		t.Fatalf("cached channel = %+v", got)
	}
	c.InvalidateChannels(ctx, []model.Channel{*ch})
	if c.GetChannel(ctx, "UCcache") != nil {
		t.Error("channel still cached after invalidation")
	}
}
