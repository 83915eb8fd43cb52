package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

// ErrNoValidRecords is returned by Result.Err when a non-empty input produced
// no rows.
var ErrNoValidRecords = errors.New("no valid records")

// Column widths of the id columns. Longer ids are skipped rather than
// failing the whole batch at insert time.
const (
	MaxChannelIDLen = 32
	MaxVideoIDLen   = 16
)

// Skip describes one discarded input record.
type Skip struct {
	Index  int
	Reason string
}

// Result holds the rows that survived normalization and the skipped inputs.
type Result[T any] struct {
	Rows    []T
	Skipped []Skip
}

// Err reports an aggregate failure: input was non-empty but nothing survived.
// An empty input is a successful no-op.
func (r Result[T]) Err() error {
	if len(r.Rows) == 0 && len(r.Skipped) > 0 {
		return fmt.Errorf("%w: %d skipped", ErrNoValidRecords, len(r.Skipped))
	}
	return nil
}

func (r *Result[T]) skip(i int, reason string) {
	r.Skipped = append(r.Skipped, Skip{Index: i, Reason: reason})
}

// Channels normalizes channel-shaped records. A record needs an id, an
// identifier, or a handle to derive one from.
func Channels(records []Record, now time.Time) Result[model.Channel] {
	var res Result[model.Channel]
	for i, r := range records {
		handle := channelHandle(r)
		id := r.String("id", "channel_id", "channelId")
		if id == nil {
			id = r.String("identifier")
		}
		if id == nil && handle != nil {
			id = handle
		}
		if id == nil {
			res.skip(i, "missing channel id, identifier and handle")
			continue
		}
		if len(*id) > MaxChannelIDLen {
			res.skip(i, fmt.Sprintf("channel id exceeds %d chars", MaxChannelIDLen))
			continue
		}

		res.Rows = append(res.Rows, model.Channel{
			ID:              *id,
			Handle:          handle,
			Username:        r.String("username", "legacy_username"),
			Name:            r.String("name", "title", "channel_name"),
			Description:     r.String("description"),
			AvatarURL:       r.String("profile_image", "avatar", "avatar_url", "thumbnail"),
			BannerURL:       r.String("banner_img", "banner", "banner_url"),
			SubscriberCount: r.Count("subscribers", "subscriber_count", "subscriberCount"),
			VideoCount:      r.Count("videos_count", "video_count", "videoCount"),
			ViewCount:       r.Count("views", "view_count", "viewCount"),
			CreatedDate:     r.Time("created_date", "joined_date", "published_at", "publishedAt"),
			Location:        r.String("location", "country"),
			URL:             r.String("url", "channel_url"),
			UpdatedAt:       now,
		})
	}
	return res
}

// channelHandle returns the handle, normalized to "@name", from the record
// itself or from its channel URL.
func channelHandle(r Record) *string {
	if h := r.String("handle", "customUrl"); h != nil {
		n := NormalizeHandle(*h)
		if n != "" {
			return &n
		}
	}
	if u := r.String("url", "channel_url"); u != nil {
		if ref, err := ParseChannelRef(*u); err == nil && ref.Handle != "" {
			return &ref.Handle
		}
	}
	return nil
}

// Videos normalizes video-shaped records. Both the video id and the owning
// channel id are required.
func Videos(records []Record, now time.Time) Result[model.Video] {
	var res Result[model.Video]
	for i, r := range records {
		id := r.String("video_id", "videoId")
		channelID := r.String("youtuber_id", "channel_id", "channelId")
		switch {
		case id == nil && channelID == nil:
			res.skip(i, "missing video id and channel id")
			continue
		case id == nil:
			res.skip(i, "missing video id")
			continue
		case channelID == nil:
			res.skip(i, fmt.Sprintf("video %s missing channel id", *id))
			continue
		case len(*id) > MaxVideoIDLen:
			res.skip(i, fmt.Sprintf("video id exceeds %d chars", MaxVideoIDLen))
			continue
		case len(*channelID) > MaxChannelIDLen:
			res.skip(i, fmt.Sprintf("video %s channel id exceeds %d chars", *id, MaxChannelIDLen))
			continue
		}

		res.Rows = append(res.Rows, model.Video{
			ID:            *id,
			ChannelID:     *channelID,
			Title:         r.String("title"),
			Description:   r.String("description", "transcript"),
			PreviewImage:  r.String("preview_image", "thumbnail", "thumbnail_url"),
			PostDate:      r.Time("date_posted", "post_date", "published_at", "publishedAt"),
			Views:         r.Count("views", "view_count", "viewCount"),
			Likes:         r.Count("likes", "like_count", "likeCount"),
			CommentsCount: r.Count("num_comments", "comments_count", "comment_count", "commentCount"),
			UpdatedAt:     now,
		})
	}
	return res
}

// Comments normalizes comment records. The owning video and channel default
// to the given ids when the record does not carry them.
func Comments(records []Record, videoID, channelID string, now time.Time) Result[model.Comment] {
	var res Result[model.Comment]
	for i, r := range records {
		id := r.String("comment_id", "id")
		if id == nil {
			res.skip(i, "missing comment id")
			continue
		}
		text := r.String("text", "textDisplay", "textOriginal", "comment")
		if text == nil {
			res.skip(i, fmt.Sprintf("comment %s has no text", *id))
			continue
		}
		vid := videoID
		if v := r.String("video_id", "videoId"); v != nil {
			vid = *v
		}
		cid := channelID
		if c := r.String("youtuber_id", "channel_id", "channelId"); c != nil {
			cid = *c
		}
		if vid == "" || cid == "" {
			res.skip(i, fmt.Sprintf("comment %s missing video or channel id", *id))
			continue
		}
		if len(vid) > MaxVideoIDLen || len(cid) > MaxChannelIDLen {
			res.skip(i, fmt.Sprintf("comment %s video or channel id too long", *id))
			continue
		}

		res.Rows = append(res.Rows, model.Comment{
			ID:          *id,
			VideoID:     vid,
			ChannelID:   cid,
			Text:        *text,
			Author:      r.String("author", "authorDisplayName"),
			PublishedAt: r.Time("published_at", "publishedAt", "date"),
			UpdatedAt:   now,
		})
	}
	return res
}

// NormalizeHandle trims a handle and ensures the leading "@".
func NormalizeHandle(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimLeft(h, "@")
	if h == "" || strings.ContainsAny(h, " /?#") {
		return ""
	}
	return "@" + h
}
