package normalizer

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnparseableChannel is returned when no handle or channel id can be read
// from a channel URL.
var ErrUnparseableChannel = errors.New("cannot parse channel handle from url")

// ChannelRef identifies a channel by whichever form its URL carried.
type ChannelRef struct {
	Handle    string // "@name"
	ChannelID string // "UC..."
	Username  string // legacy /user/ or /c/ name
}

// String returns the most specific identifier in the ref.
func (r ChannelRef) String() string {
	switch {
	case r.ChannelID != "":
		return r.ChannelID
	case r.Handle != "":
		return r.Handle
	default:
		return r.Username
	}
}

// ParseChannelRef reads a channel reference from a YouTube channel URL or a
// bare "@handle". Accepted paths: /@handle, /channel/<id>, /c/<name>, /user/<name>.
func ParseChannelRef(raw string) (ChannelRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ChannelRef{}, ErrUnparseableChannel
	}
	if strings.HasPrefix(raw, "@") {
		if h := NormalizeHandle(raw); h != "" {
			return ChannelRef{Handle: h}, nil
		}
		return ChannelRef{}, ErrUnparseableChannel
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ChannelRef{}, ErrUnparseableChannel
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" {
		return ChannelRef{}, ErrUnparseableChannel
	}

	segs := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ChannelRef{}, ErrUnparseableChannel
	}
	first, _ := url.PathUnescape(segs[0])

	switch {
	case strings.HasPrefix(first, "@"):
		if h := NormalizeHandle(first); h != "" {
			return ChannelRef{Handle: h}, nil
		}
	case first == "channel" && len(segs) > 1 && segs[1] != "":
		return ChannelRef{ChannelID: segs[1]}, nil
	case (first == "c" || first == "user") && len(segs) > 1 && segs[1] != "":
		name, _ := url.PathUnescape(segs[1])
		return ChannelRef{Username: name}, nil
	}
	return ChannelRef{}, ErrUnparseableChannel
}
