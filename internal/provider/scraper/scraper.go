// Package scraper triggers asynchronous collections on a Bright Data style
// scrape provider. Results are delivered later to the webhook endpoint.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

const DefaultBaseURL = "https://api.brightdata.com"

type Config struct {
	BaseURL        string
	Token          string
	ChannelDataset string
	VideoDataset   string
	// WebhookURL is where the provider delivers the snapshot.
	WebhookURL string
	// WebhookAuth is echoed back by the provider in the Authorization header.
	WebhookAuth string
	MaxRetries  int
	BaseDelay   time.Duration
}

type Client struct {
	cfg  Config
	http *httpclient.Client
}

func New(cfg Config, hc *httpclient.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc}
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// Trigger starts a collection of urls and returns the provider snapshot id.
func (c *Client) Trigger(ctx context.Context, kind model.RecordKind, urls []string) (string, error) {
	dataset := c.cfg.ChannelDataset
	if kind == model.KindVideo {
		dataset = c.cfg.VideoDataset
	}
	if dataset == "" {
		return "", fmt.Errorf("no dataset configured for %s scrapes", kind)
	}

	q := url.Values{
		"dataset_id":           {dataset},
		"format":               {"json"},
		"uncompressed_webhook": {"true"},
		"include_errors":       {"true"},
	}
	if c.cfg.WebhookURL != "" {
		q.Set("endpoint", c.cfg.WebhookURL)
	}
	if c.cfg.WebhookAuth != "" {
		q.Set("auth_header", c.cfg.WebhookAuth)
	}

	inputs := make([]map[string]string, len(urls))
	for i, u := range urls {
		inputs[i] = map[string]string{"url": u}
	}
	body, err := json.Marshal(inputs)
	if err != nil {
		return "", err
	}

	var resp triggerResponse
	err = c.http.FetchJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.cfg.BaseURL + "/datasets/v3/trigger?" + q.Encode(),
		Header: http.Header{"Authorization": {"Bearer " + c.cfg.Token}},
		Body:   body,
		Fatal:  httpclient.FatalStatuses(http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden),
	}, c.cfg.MaxRetries, c.cfg.BaseDelay, &resp)
	if err != nil {
		return "", err
	}
	if resp.SnapshotID == "" {
		return "", errors.New("scrape trigger returned no snapshot_id")
	}
	return resp.SnapshotID, nil
}
