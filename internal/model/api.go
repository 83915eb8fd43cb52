package model

// Response status values shared by every endpoint.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CollectRequest is the inbound trigger body for channel and video collection.
type CollectRequest struct {
	URL           string `json:"url,omitempty"`
	ChannelID     string `json:"channelId,omitempty"`
	ChannelHandle string `json:"channelHandle,omitempty"`
}

// CollectResponse is returned by the collection triggers.
type CollectResponse struct {
	Status        string   `json:"status"`
	Channel       *Channel `json:"channel,omitempty"`
	Existing      bool     `json:"existing,omitempty"`
	JobID         string   `json:"job_id,omitempty"`
	SnapshotID    string   `json:"snapshot_id,omitempty"`
	Count         *int     `json:"count,omitempty"`
	CommentsCount *int     `json:"comments_count,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// ScrapeRequest asks the scrape provider for an asynchronous collection.
type ScrapeRequest struct {
	URL  string     `json:"url"`
	Kind RecordKind `json:"kind"`
	Wait bool       `json:"wait,omitempty"`
}

// JobResponse wraps a job for polling clients.
type JobResponse struct {
	Status string `json:"status"`
	Job    *Job   `json:"job"`
}

// WebhookResponse is returned to the scrape provider.
type WebhookResponse struct {
	Status     string     `json:"status"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	JobID      string     `json:"job_id,omitempty"`
	Kind       RecordKind `json:"kind,omitempty"`
	Persisted  int        `json:"persisted"`
	Skipped    int        `json:"skipped"`
	Message    string     `json:"message,omitempty"`
}

// AnalysisRequest is the analysis trigger body.
type AnalysisRequest struct {
	VideoID string `json:"videoId"`
}

// AnalysisResponse carries the aggregate sentiment and generated summary.
type AnalysisResponse struct {
	Status           string              `json:"status"`
	Sentiment        *SentimentAggregate `json:"sentiment"`
	Summary          string              `json:"summary"`
	SummaryDegraded  bool                `json:"summary_degraded,omitempty"`
	CommentsAnalyzed int                 `json:"comments_analyzed"`
}

// StatsResponse is the API response for global ingestion statistics.
type StatsResponse struct {
	TotalChannels  int               `json:"totalChannels"`
	TotalVideos    int               `json:"totalVideos"`
	TotalComments  int               `json:"totalComments"`
	ScoredComments int               `json:"scoredComments"`
	TotalSummaries int               `json:"totalSummaries"`
	JobsByStatus   map[JobStatus]int `json:"jobsByStatus"`
}
