// Package youtube reads channels, uploads and comments from the YouTube Data
// API v3, with an RSS feed fallback for uploads and an HTML page fallback for
// channel lookup when no API key is configured.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider"
)

const (
	DefaultBaseURL    = "https://www.googleapis.com/youtube/v3"
	DefaultWebBaseURL = "https://www.youtube.com"

	maxPageSize        = 50
	maxCommentPageSize = 100
)

type Config struct {
	APIKey     string
	BaseURL    string
	WebBaseURL string
	MaxRetries int
	BaseDelay  time.Duration
}

// Client implements the channel source used by the ingest service.
type Client struct {
	cfg  Config
	http *httpclient.Client
	feed *FeedReader
	page *PageResolver
	log  zerolog.Logger
}

func New(cfg Config, hc *httpclient.Client, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.WebBaseURL == "" {
		cfg.WebBaseURL = DefaultWebBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.WebBaseURL = strings.TrimRight(cfg.WebBaseURL, "/")
	log := logger.With().Str("component", "youtube").Logger()
	return &Client{
		cfg:  cfg,
		http: hc,
		feed: NewFeedReader(hc, cfg.WebBaseURL, cfg.MaxRetries, cfg.BaseDelay),
		page: NewPageResolver(hc, cfg.WebBaseURL, cfg.MaxRetries, cfg.BaseDelay),
		log:  log,
	}
}

// API response shapes. Counts arrive as decimal strings.

type thumbnails struct {
	Default *struct{ URL string } `json:"default"`
	Medium  *struct{ URL string } `json:"medium"`
	High    *struct{ URL string } `json:"high"`
}

func (t thumbnails) best() string {
	for _, th := range []*struct{ URL string }{t.High, t.Medium, t.Default} {
		if th != nil && th.URL != "" {
			return th.URL
		}
	}
	return ""
}

type channelList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			CustomURL   string     `json:"customUrl"`
			PublishedAt string     `json:"publishedAt"`
			Country     string     `json:"country"`
			Thumbnails  thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount             string `json:"viewCount"`
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
			VideoCount            string `json:"videoCount"`
		} `json:"statistics"`
		BrandingSettings struct {
			Image struct {
				BannerExternalURL string `json:"bannerExternalUrl"`
			} `json:"image"`
		} `json:"brandingSettings"`
	} `json:"items"`
}

type playlistItems struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videoList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			ChannelID   string     `json:"channelId"`
			Title       string     `json:"title"`
			Description string     `json:"description"`
			PublishedAt string     `json:"publishedAt"`
			Thumbnails  thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type commentThreads struct {
	Items []struct {
		Snippet struct {
			ChannelID       string `json:"channelId"`
			VideoID         string `json:"videoId"`
			TopLevelComment struct {
				ID      string `json:"id"`
				Snippet struct {
					TextOriginal      string `json:"textOriginal"`
					TextDisplay       string `json:"textDisplay"`
					AuthorDisplayName string `json:"authorDisplayName"`
					PublishedAt       string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// ResolveChannel looks the channel up by id, handle or legacy username.
// Without an API key it falls back to reading the channel page.
func (c *Client) ResolveChannel(ctx context.Context, ref normalizer.ChannelRef) (normalizer.Record, error) {
	if c.cfg.APIKey == "" {
		return c.page.Resolve(ctx, ref)
	}

	var lookups []url.Values
	switch {
	case ref.ChannelID != "":
		lookups = append(lookups, url.Values{"id": {ref.ChannelID}})
	case ref.Handle != "":
		lookups = append(lookups, url.Values{"forHandle": {ref.Handle}})
	case ref.Username != "":
		lookups = append(lookups,
			url.Values{"forUsername": {ref.Username}},
			url.Values{"forHandle": {"@" + ref.Username}},
		)
	default:
		return nil, fmt.Errorf("empty channel ref: %w", provider.ErrNotFound)
	}

	for _, q := range lookups {
		q.Set("part", "snippet,statistics,brandingSettings")
		var resp channelList
		if err := c.get(ctx, "/channels", q, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			continue
		}
		it := resp.Items[0]
		rec := normalizer.Record{
			"id":           it.ID,
			"name":         it.Snippet.Title,
			"description":  it.Snippet.Description,
			"created_date": it.Snippet.PublishedAt,
			"url":          c.cfg.WebBaseURL + "/channel/" + it.ID,
			"views":        it.Statistics.ViewCount,
			"videos_count": it.Statistics.VideoCount,
		}
		if it.Snippet.CustomURL != "" {
			rec["handle"] = it.Snippet.CustomURL
		}
		if it.Snippet.Country != "" {
			rec["location"] = it.Snippet.Country
		}
		if u := it.Snippet.Thumbnails.best(); u != "" {
			rec["avatar_url"] = u
		}
		if b := it.BrandingSettings.Image.BannerExternalURL; b != "" {
			rec["banner_url"] = b
		}
		if !it.Statistics.HiddenSubscriberCount {
			rec["subscribers"] = it.Statistics.SubscriberCount
		}
		return rec, nil
	}
	return nil, fmt.Errorf("channel %s: %w", ref, provider.ErrNotFound)
}

// ListRecentVideos returns the newest uploads with statistics. When the Data
// API listing fails, the public uploads feed is used and statistics stay null.
func (c *Client) ListRecentVideos(ctx context.Context, channelID string, limit int) ([]normalizer.Record, error) {
	if c.cfg.APIKey == "" {
		return c.feed.Recent(ctx, channelID, limit)
	}
	records, err := c.listVideosAPI(ctx, channelID, limit)
	if err == nil {
		return records, nil
	}
	c.log.Warn().Err(err).Str("channel_id", channelID).Msg("data api listing failed, using uploads feed")
	fallback, ferr := c.feed.Recent(ctx, channelID, limit)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return fallback, nil
}

func (c *Client) listVideosAPI(ctx context.Context, channelID string, limit int) ([]normalizer.Record, error) {
	playlist, err := UploadsPlaylistID(channelID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	var items playlistItems
	err = c.get(ctx, "/playlistItems", url.Values{
		"part":       {"contentDetails"},
		"playlistId": {playlist},
		"maxResults": {strconv.Itoa(limit)},
	}, &items)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items.Items))
	for _, it := range items.Items {
		if it.ContentDetails.VideoID != "" {
			ids = append(ids, it.ContentDetails.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var videos videoList
	err = c.get(ctx, "/videos", url.Values{
		"part": {"snippet,statistics"},
		"id":   {strings.Join(ids, ",")},
	}, &videos)
	if err != nil {
		return nil, err
	}

	records := make([]normalizer.Record, 0, len(videos.Items))
	for _, v := range videos.Items {
		owner := v.Snippet.ChannelID
		if owner == "" {
			owner = channelID
		}
		rec := normalizer.Record{
			"video_id":    v.ID,
			"youtuber_id": owner,
			"title":       v.Snippet.Title,
			"description": v.Snippet.Description,
			"date_posted": v.Snippet.PublishedAt,
		}
		if u := v.Snippet.Thumbnails.best(); u != "" {
			rec["preview_image"] = u
		}
		setIfPresent(rec, "views", v.Statistics.ViewCount)
		setIfPresent(rec, "likes", v.Statistics.LikeCount)
		setIfPresent(rec, "num_comments", v.Statistics.CommentCount)
		records = append(records, rec)
	}
	return records, nil
}

// ListComments returns the newest top-level comments of a video. Videos with
// comments disabled answer 403, which is not retried.
func (c *Client) ListComments(ctx context.Context, videoID string, limit int) ([]normalizer.Record, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("comments need a data api key: %w", provider.ErrNotFound)
	}
	if limit <= 0 || limit > maxCommentPageSize {
		limit = maxCommentPageSize
	}
	var threads commentThreads
	err := c.get(ctx, "/commentThreads", url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"maxResults": {strconv.Itoa(limit)},
		"order":      {"time"},
		"textFormat": {"plainText"},
	}, &threads)
	if err != nil {
		return nil, err
	}

	records := make([]normalizer.Record, 0, len(threads.Items))
	for _, th := range threads.Items {
		top := th.Snippet.TopLevelComment
		text := top.Snippet.TextOriginal
		if text == "" {
			text = top.Snippet.TextDisplay
		}
		rec := normalizer.Record{
			"comment_id":   top.ID,
			"text":         text,
			"author":       top.Snippet.AuthorDisplayName,
			"published_at": top.Snippet.PublishedAt,
			"video_id":     videoID,
		}
		if th.Snippet.ChannelID != "" {
			rec["youtuber_id"] = th.Snippet.ChannelID
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req := httpclient.Request{
		Method: http.MethodGet,
		URL:    c.cfg.BaseURL + path + "?" + q.Encode(),
		Header: http.Header{"X-Goog-Api-Key": {c.cfg.APIKey}},
		Fatal:  httpclient.FatalStatuses(http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound),
	}
	if err := c.http.FetchJSON(ctx, req, c.cfg.MaxRetries, c.cfg.BaseDelay, out); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%s: %w", path, provider.ErrNotFound)
		}
		return err
	}
	return nil
}

// UploadsPlaylistID derives the uploads playlist of a "UC..." channel id.
func UploadsPlaylistID(channelID string) (string, error) {
	if !strings.HasPrefix(channelID, "UC") || len(channelID) < 3 {
		return "", fmt.Errorf("channel id %q has no uploads playlist", channelID)
	}
	return "UU" + channelID[2:], nil
}

func setIfPresent(rec normalizer.Record, key, value string) {
	if value != "" {
		rec[key] = value
	}
}
