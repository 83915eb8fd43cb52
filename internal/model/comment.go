package model

import "time"

// SentimentLabel is the categorical sentiment of a scored comment.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Comment is a text item under a video. Sentiment fields stay nil until scored.
type Comment struct {
	ID             string          `json:"id"`
	VideoID        string          `json:"video_id"`
	ChannelID      string          `json:"youtuber_id"`
	Text           string          `json:"text"`
	Author         *string         `json:"author,omitempty"`
	PublishedAt    *time.Time      `json:"published_at"`
	SentimentScore *float64        `json:"sentiment_score"`
	SentimentLabel *SentimentLabel `json:"sentiment_label"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CommentSentiment is the score written back to a single comment row.
type CommentSentiment struct {
	CommentID string
	Score     float64
	Label     SentimentLabel
}
