package model

import "time"

// Channel represents a tracked YouTube channel. Pointer fields are nil when the
// provider did not report a value, which is distinct from a confirmed zero.
type Channel struct {
	ID              string     `json:"id"`
	Handle          *string    `json:"handle,omitempty"`
	Username        *string    `json:"username,omitempty"`
	Name            *string    `json:"name,omitempty"`
	Description     *string    `json:"description,omitempty"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	BannerURL       *string    `json:"banner_url,omitempty"`
	SubscriberCount *int64     `json:"subscriber_count"`
	VideoCount      *int64     `json:"video_count"`
	ViewCount       *int64     `json:"view_count"`
	CreatedDate     *time.Time `json:"created_date"`
	Location        *string    `json:"location,omitempty"`
	URL             *string    `json:"url,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Merge returns c overlaid with the non-nil fields of newer. It mirrors the
// COALESCE upsert used by the row store.
func (c Channel) Merge(newer Channel) Channel {
	out := c
	out.Handle = coalesce(newer.Handle, c.Handle)
	out.Username = coalesce(newer.Username, c.Username)
	out.Name = coalesce(newer.Name, c.Name)
	out.Description = coalesce(newer.Description, c.Description)
	out.AvatarURL = coalesce(newer.AvatarURL, c.AvatarURL)
	out.BannerURL = coalesce(newer.BannerURL, c.BannerURL)
	out.SubscriberCount = coalesce(newer.SubscriberCount, c.SubscriberCount)
	out.VideoCount = coalesce(newer.VideoCount, c.VideoCount)
	out.ViewCount = coalesce(newer.ViewCount, c.ViewCount)
	out.CreatedDate = coalesce(newer.CreatedDate, c.CreatedDate)
	out.Location = coalesce(newer.Location, c.Location)
	out.URL = coalesce(newer.URL, c.URL)
	if newer.UpdatedAt.After(c.UpdatedAt) {
		out.UpdatedAt = newer.UpdatedAt
	}
	return out
}

func coalesce[T any](newer, older *T) *T {
	if newer != nil {
		return newer
	}
	return older
}
