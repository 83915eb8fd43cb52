package youtube

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider"
)

// PageResolver reads channel metadata from the public channel page. It is
// used when no Data API key is configured; counts are not available there.
type PageResolver struct {
	http       *httpclient.Client
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
}

func NewPageResolver(hc *httpclient.Client, baseURL string, maxRetries int, baseDelay time.Duration) *PageResolver {
	return &PageResolver{http: hc, baseURL: baseURL, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (p *PageResolver) pageURL(ref normalizer.ChannelRef) string {
	switch {
	case ref.ChannelID != "":
		return p.baseURL + "/channel/" + url.PathEscape(ref.ChannelID)
	case ref.Handle != "":
		return p.baseURL + "/" + url.PathEscape(ref.Handle)
	default:
		return p.baseURL + "/c/" + url.PathEscape(ref.Username)
	}
}

// Resolve fetches the channel page and reads its meta tags.
func (p *PageResolver) Resolve(ctx context.Context, ref normalizer.ChannelRef) (normalizer.Record, error) {
	body, err := p.http.Fetch(ctx, httpclient.Request{
		URL:    p.pageURL(ref),
		Header: map[string][]string{"Accept-Language": {"en"}},
		Fatal:  httpclient.FatalStatuses(404),
	}, p.maxRetries, p.baseDelay)
	if httpclient.IsStatus(err, 404) {
		return nil, fmt.Errorf("channel page %s: %w", ref, provider.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel page: %w", err)
	}

	id := attr(doc, `meta[itemprop="identifier"]`, "content")
	if id == "" {
		id = attr(doc, `meta[itemprop="channelId"]`, "content")
	}
	if id == "" {
		canonical := attr(doc, `link[rel="canonical"]`, "href")
		if r, err := normalizer.ParseChannelRef(canonical); err == nil {
			id = r.ChannelID
		}
	}
	if id == "" {
		return nil, fmt.Errorf("channel page %s has no channel id: %w", ref, provider.ErrNotFound)
	}

	rec := normalizer.Record{"id": id, "url": p.baseURL + "/channel/" + id}
	if ref.Handle != "" {
		rec["handle"] = ref.Handle
	}
	if v := attr(doc, `meta[property="og:title"]`, "content"); v != "" {
		rec["name"] = v
	}
	if v := attr(doc, `meta[property="og:description"]`, "content"); v != "" {
		rec["description"] = v
	}
	if v := attr(doc, `meta[property="og:image"]`, "content"); v != "" {
		rec["avatar_url"] = v
	}
	return rec, nil
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}
