package model

import "time"

// Video is a content item owned by a channel. ChannelID is required.
type Video struct {
	ID            string     `json:"id"`
	ChannelID     string     `json:"youtuber_id"`
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	PreviewImage  *string    `json:"preview_image,omitempty"`
	PostDate      *time.Time `json:"post_date"`
	Views         *int64     `json:"views"`
	Likes         *int64     `json:"likes"`
	CommentsCount *int64     `json:"comments_count"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Merge returns v overlaid with the non-nil fields of newer.
func (v Video) Merge(newer Video) Video {
	out := v
	if newer.ChannelID != "" {
		out.ChannelID = newer.ChannelID
	}
	out.Title = coalesce(newer.Title, v.Title)
	out.Description = coalesce(newer.Description, v.Description)
	out.PreviewImage = coalesce(newer.PreviewImage, v.PreviewImage)
	out.PostDate = coalesce(newer.PostDate, v.PostDate)
	out.Views = coalesce(newer.Views, v.Views)
	out.Likes = coalesce(newer.Likes, v.Likes)
	out.CommentsCount = coalesce(newer.CommentsCount, v.CommentsCount)
	if newer.UpdatedAt.After(v.UpdatedAt) {
		out.UpdatedAt = newer.UpdatedAt
	}
	return out
}
