package youtube

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
)

// FeedReader lists recent uploads from the public per-channel Atom feed. The
// feed carries no statistics.
type FeedReader struct {
	http       *httpclient.Client
	parser     *gofeed.Parser
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
}

func NewFeedReader(hc *httpclient.Client, baseURL string, maxRetries int, baseDelay time.Duration) *FeedReader {
	return &FeedReader{
		http:       hc,
		parser:     gofeed.NewParser(),
		baseURL:    baseURL,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Recent returns up to limit uploads of the channel, newest first.
func (f *FeedReader) Recent(ctx context.Context, channelID string, limit int) ([]normalizer.Record, error) {
	feedURL := f.baseURL + "/feeds/videos.xml?" + url.Values{"channel_id": {channelID}}.Encode()
	body, err := f.http.Fetch(ctx, httpclient.Request{
		URL:   feedURL,
		Fatal: httpclient.FatalStatuses(400, 404),
	}, f.maxRetries, f.baseDelay)
	if err != nil {
		return nil, fmt.Errorf("uploads feed: %w", err)
	}

	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse uploads feed: %w", err)
	}

	records := make([]normalizer.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		if limit > 0 && len(records) >= limit {
			break
		}
		videoID := extValue(item, "yt", "videoId")
		if videoID == "" {
			continue
		}
		owner := extValue(item, "yt", "channelId")
		if owner == "" {
			owner = channelID
		}
		rec := normalizer.Record{
			"video_id":    videoID,
			"youtuber_id": owner,
			"title":       item.Title,
		}
		if item.PublishedParsed != nil {
			rec["date_posted"] = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		thumb, desc := mediaGroup(item)
		if thumb != "" {
			rec["preview_image"] = thumb
		}
		if desc != "" {
			rec["description"] = desc
		}
		records = append(records, rec)
	}
	return records, nil
}

func extValue(item *gofeed.Item, ns, name string) string {
	if item.Extensions == nil {
		return ""
	}
	vals := item.Extensions[ns][name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0].Value
}

// mediaGroup reads the thumbnail URL and description from <media:group>.
func mediaGroup(item *gofeed.Item) (thumb, desc string) {
	if item.Extensions == nil {
		return "", ""
	}
	groups := item.Extensions["media"]["group"]
	if len(groups) == 0 {
		return "", ""
	}
	g := groups[0]
	if t := g.Children["thumbnail"]; len(t) > 0 {
		thumb = t[0].Attrs["url"]
	}
	if d := g.Children["description"]; len(d) > 0 {
		desc = d[0].Value
	}
	return thumb, desc
}
