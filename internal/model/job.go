package model

import "time"

// RecordKind is the canonical record class a job or payload carries.
type RecordKind string

const (
	KindChannel RecordKind = "channel"
	KindVideo   RecordKind = "video"
)

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	return k == KindChannel || k == KindVideo
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobReady   JobStatus = "ready"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether no transition leaves s.
func (s JobStatus) Terminal() bool {
	return s == JobReady || s == JobFailed
}

// Job tracks one unit of asynchronous ingestion work.
type Job struct {
	ID             string     `json:"id"`
	Kind           RecordKind `json:"kind"`
	Status         JobStatus  `json:"status"`
	ChannelID      *string    `json:"youtuber_id,omitempty"`
	CorrelationKey *string    `json:"snapshot_id,omitempty"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// JobPatch carries the optional columns written together with a status change.
type JobPatch struct {
	ChannelID      *string
	CorrelationKey *string
	Error          *string
}
