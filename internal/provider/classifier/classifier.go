// Package classifier scores comment sentiment through a Hugging Face style
// text-classification inference endpoint.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
)

type Config struct {
	URL        string
	Token      string
	MaxRetries int
	BaseDelay  time.Duration
}

type Client struct {
	cfg  Config
	http *httpclient.Client
}

func New(cfg Config, hc *httpclient.Client) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	return &Client{cfg: cfg, http: hc}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns P(positive) - P(negative) for text, in [-1, 1].
func (c *Client) Classify(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return 0, err
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	raw, err := c.http.Fetch(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.cfg.URL,
		Header: header,
		Body:   body,
		Fatal:  httpclient.FatalStatuses(http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound),
	}, c.cfg.MaxRetries, c.cfg.BaseDelay)
	if err != nil {
		return 0, err
	}
	scores, err := decodeScores(raw)
	if err != nil {
		return 0, err
	}
	return polarity(scores)
}

// decodeScores accepts both [[{label,score}...]] and [{label,score}...].
func decodeScores(raw []byte) ([]labelScore, error) {
	raw = bytes.TrimSpace(raw)
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return flat, nil
}

// polarity folds label probabilities into one signed score. It understands
// POSITIVE/NEGATIVE/NEUTRAL names, star ratings and the LABEL_0..2 scheme
// (negative, neutral, positive).
func polarity(scores []labelScore) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.New("classifier returned no labels")
	}
	var pos, neg float64
	known := false
	for _, s := range scores {
		switch label := strings.ToLower(strings.TrimSpace(s.Label)); label {
		case "positive", "pos", "label_2", "4 stars", "5 stars":
			pos += s.Score
			known = true
		case "negative", "neg", "label_0", "1 star", "2 stars":
			neg += s.Score
			known = true
		case "neutral", "neu", "label_1", "3 stars":
			known = true
		}
	}
	if !known {
		return 0, fmt.Errorf("classifier returned unknown labels (first %q)", scores[0].Label)
	}
	return pos - neg, nil
}
