package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider"
)

const channelJSON = `{"items":[{
	"id":"UCexample",
	"snippet":{"title":"Example","description":"desc","customUrl":"@examplechannel",
		"publishedAt":"2015-06-01T12:00:00Z","country":"CA",
		"thumbnails":{"high":{"url":"https://img/high.jpg"}}},
	"statistics":{"viewCount":"1000","subscriberCount":"50","hiddenSubscriberCount":false,"videoCount":"7"},
	"brandingSettings":{"image":{"bannerExternalUrl":"https://img/banner"}}
}]}`

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Example</title>
 <entry>
  <id>yt:video:vidA</id>
  <yt:videoId>vidA</yt:videoId>
  <yt:channelId>UCexample</yt:channelId>
  <title>First upload</title>
  <published>2024-05-01T10:00:00+00:00</published>
  <media:group>
   <media:title>First upload</media:title>
   <media:thumbnail url="https://i.ytimg.com/vi/vidA/hqdefault.jpg" width="480" height="360"/>
   <media:description>hello</media:description>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:vidB</id>
  <yt:videoId>vidB</yt:videoId>
  <yt:channelId>UCexample</yt:channelId>
  <title>Second upload</title>
  <published>2024-04-01T10:00:00+00:00</published>
 </entry>
</feed>`

func newTestClient(srvURL, apiKey string) *Client {
	hc := httpclient.New(time.Second, zerolog.Nop()).WithSleep(func(context.Context, time.Duration) error { return nil })
	return New(Config{APIKey: apiKey, BaseURL: srvURL + "/youtube/v3", WebBaseURL: srvURL, MaxRetries: 2}, hc, zerolog.Nop())
}

func TestResolveChannel_ByHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/channels" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("forHandle") != "@examplechannel" {
			t.Errorf("forHandle = %q", r.URL.Query().Get("forHandle"))
		}
		if r.Header.Get("X-Goog-Api-Key") != "k" {
			t.Error("api key header missing")
		}
		if r.URL.Query().Has("key") {
			t.Error("api key leaked into query string")
		}
		w.Write([]byte(channelJSON))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL, "k").ResolveChannel(context.Background(), normalizer.ChannelRef{Handle: "@examplechannel"})
	if err != nil {
		t.Fatalf("ResolveChannel: %v", err)
	}

	res := normalizer.Channels([]normalizer.Record{rec}, time.Now())
	if len(res.Rows) != 1 {
		t.Fatalf("record did not normalize: %+v", res.Skipped)
	}
	ch := res.Rows[0]
	if ch.ID != "UCexample" || *ch.Handle != "@examplechannel" || *ch.Name != "Example" {
		t.Errorf("channel = %+v", ch)
	}
	if *ch.SubscriberCount != 50 || *ch.VideoCount != 7 || *ch.ViewCount != 1000 {
		t.Errorf("counts = %d/%d/%d", *ch.SubscriberCount, *ch.VideoCount, *ch.ViewCount)
	}
	if *ch.BannerURL != "https://img/banner" || *ch.AvatarURL != "https://img/high.jpg" {
		t.Errorf("images = %s %s", *ch.AvatarURL, *ch.BannerURL)
	}
}

func TestResolveChannel_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").ResolveChannel(context.Background(), normalizer.ChannelRef{Username: "ghost"})
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v, want provider.ErrNotFound", err)
	}
}

func TestResolveChannel_PageFallbackWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/@examplechannel" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Example">
			<meta property="og:image" content="https://img/avatar">
			<meta itemprop="identifier" content="UCexample">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL, "").ResolveChannel(context.Background(), normalizer.ChannelRef{Handle: "@examplechannel"})
	if err != nil {
		t.Fatalf("ResolveChannel: %v", err)
	}
	if rec["id"] != "UCexample" || rec["name"] != "Example" || rec["handle"] != "@examplechannel" {
		t.Errorf("record = %v", rec)
	}
}

func TestListRecentVideos_DataAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/playlistItems":
			if r.URL.Query().Get("playlistId") != "UUexample" {
				t.Errorf("playlistId = %s", r.URL.Query().Get("playlistId"))
			}
			w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"v1"}},{"contentDetails":{"videoId":"v2"}}]}`))
		case "/youtube/v3/videos":
			if r.URL.Query().Get("id") != "v1,v2" {
				t.Errorf("ids = %s", r.URL.Query().Get("id"))
			}
			w.Write([]byte(`{"items":[
				{"id":"v1","snippet":{"channelId":"UCexample","title":"One","publishedAt":"2024-01-01T00:00:00Z"},
				 "statistics":{"viewCount":"10","likeCount":"2","commentCount":"0"}},
				{"id":"v2","snippet":{"channelId":"UCexample","title":"Two"},"statistics":{"viewCount":"5"}}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	recs, err := newTestClient(srv.URL, "k").ListRecentVideos(context.Background(), "UCexample", 50)
	if err != nil {
		t.Fatalf("ListRecentVideos: %v", err)
	}
	res := normalizer.Videos(recs, time.Now())
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if *res.Rows[0].CommentsCount != 0 {
		t.Error("confirmed zero comments lost")
	}
	if res.Rows[1].Likes != nil {
		t.Error("hidden likes should be nil")
	}
}

func TestListRecentVideos_FeedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/youtube/v3/"):
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"message":"quotaExceeded"}}`))
		case r.URL.Path == "/feeds/videos.xml":
			if r.URL.Query().Get("channel_id") != "UCexample" {
				t.Errorf("channel_id = %s", r.URL.Query().Get("channel_id"))
			}
			w.Header().Set("Content-Type", "application/atom+xml")
			w.Write([]byte(feedXML))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	recs, err := newTestClient(srv.URL, "k").ListRecentVideos(context.Background(), "UCexample", 1)
	if err != nil {
		t.Fatalf("ListRecentVideos: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1 (limit)", len(recs))
	}
	r := recs[0]
	if r["video_id"] != "vidA" || r["youtuber_id"] != "UCexample" || r["title"] != "First upload" {
		t.Errorf("record = %v", r)
	}
	if r["preview_image"] != "https://i.ytimg.com/vi/vidA/hqdefault.jpg" || r["description"] != "hello" {
		t.Errorf("media group = %v / %v", r["preview_image"], r["description"])
	}
	if r["date_posted"] != "2024-05-01T10:00:00Z" {
		t.Errorf("date_posted = %v", r["date_posted"])
	}
	if _, ok := r["views"]; ok {
		t.Error("feed records must not carry statistics")
	}
}

func TestListComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("videoId") != "v1" || r.URL.Query().Get("maxResults") != "100" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"items":[{"snippet":{"channelId":"UCexample","videoId":"v1",
			"topLevelComment":{"id":"c1","snippet":{"textOriginal":"nice one","authorDisplayName":"ann","publishedAt":"2024-01-02T00:00:00Z"}}}}]}`))
	}))
	defer srv.Close()

	recs, err := newTestClient(srv.URL, "k").ListComments(context.Background(), "v1", 500)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	res := normalizer.Comments(recs, "v1", "", time.Now())
	if len(res.Rows) != 1 || res.Rows[0].ChannelID != "UCexample" || res.Rows[0].Text != "nice one" {
		t.Errorf("comments = %+v skipped=%v", res.Rows, res.Skipped)
	}
}

func TestListComments_DisabledIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").ListComments(context.Background(), "v1", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUploadsPlaylistID(t *testing.T) {
	if got, _ := UploadsPlaylistID("UCabc"); got != "UUabc" {
		t.Errorf("got %s, want UUabc", got)
	}
	if _, err := UploadsPlaylistID("@handle"); err == nil {
		t.Error("expected error for non-UC id")
	}
}
