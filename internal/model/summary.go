package model

import "time"

// VideoSummary is the single analysis row kept per video.
type VideoSummary struct {
	VideoID            string    `json:"video_id"`
	Summary            string    `json:"summary"`
	PositivePercentage *float64  `json:"positive_percentage"`
	NegativePercentage *float64  `json:"negative_percentage"`
	AverageScore       *float64  `json:"average_score"`
	CommentsAnalyzed   int       `json:"comments_analyzed"`
	Degraded           bool      `json:"degraded"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SentimentAggregate is the per-video sentiment computed over non-neutral scores.
type SentimentAggregate struct {
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
	AverageScore       float64 `json:"average_score"`
}
