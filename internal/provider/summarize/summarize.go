// Package summarize generates comment summaries with an OpenAI-compatible
// chat completion endpoint.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/pkg/retry"
)

const systemPrompt = "You summarize YouTube comment sections. Reply with a short neutral paragraph " +
	"describing what viewers talk about and how they feel."

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

type Client struct {
	client *openai.Client
	cfg    Config
	retry  retry.Config
}

func New(cfg Config, logger zerolog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger.Info().Str("model", cfg.Model).Msg("summarizer initialized")

	return &Client{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		retry: retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     retry.Exponential(cfg.BaseDelay, 5*time.Second, 2),
			Retryable:   retryable,
			Logger:      logger,
		},
	}
}

// WithSleep replaces the wait between attempts. Used by tests.
func (c *Client) WithSleep(sleep func(context.Context, time.Duration) error) *Client {
	c.retry.Sleep = sleep
	return c
}

func (c *Client) Model() string { return c.cfg.Model }

// Summarize sends prompt as the user message and returns the trimmed reply.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	return retry.DoWithResult(ctx, c.retry, func(int) (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("create completion (%s): %w", c.cfg.Model, err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("completion returned no choices")
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", errors.New("completion returned empty text")
		}
		return text, nil
	})
}

// retryable keeps client errors other than 429 from being retried.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
