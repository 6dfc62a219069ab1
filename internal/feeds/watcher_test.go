package feeds_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulpit/internal/feeds"
	"pulpit/internal/testsupport"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Igreja Central</title>
  <entry>
    <id>yt:video:vid00000001</id>
    <yt:videoId>vid00000001</yt:videoId>
    <title>Culto de domingo</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000001"/>
    <author><name>Igreja Central</name></author>
    <published>2026-09-06T12:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:vid00000002</id>
    <title>Estudo bíblico</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000002"/>
    <published>2026-09-03T22:00:00+00:00</published>
  </entry>
  <entry>
    <id>tag:other</id>
    <title>Sem vídeo</title>
  </entry>
</feed>`

func TestPollEnqueuesUnseenVideos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(channelFeed))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Feeds.URLs = []string{server.URL + "/feeds/videos.xml?channel_id=abc"}
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, st, "vid00000002", "already known")

	woken := 0
	watcher := feeds.NewWatcher(cfg, st, nil, feeds.WithOnNew(func() { woken++ }))
	ctx := context.Background()

	added, err := watcher.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if added != 1 || woken != 1 {
		t.Fatalf("expected one new video and one wake, got added=%d woken=%d", added, woken)
	}
	video, err := st.GetVideoByExternalID(ctx, "vid00000001")
	if err != nil {
		t.Fatalf("GetVideoByExternalID returned error: %v", err)
	}
	if video.Title != "Culto de domingo" || video.Channel != "Igreja Central" || video.Status != "pending" || video.PublishedAt.IsZero() {
		t.Fatalf("unexpected video %+v", video)
	}

	if added, err := watcher.Poll(ctx); err != nil || added != 0 {
		t.Fatalf("second poll = %d, %v; want 0, nil", added, err)
	}
}

func TestPollContinuesPastBrokenFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(channelFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer bad.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Feeds.URLs = []string{bad.URL, good.URL}
	st := testsupport.MustOpenStore(t, cfg)
	added, err := feeds.NewWatcher(cfg, st, nil).Poll(context.Background())
	if err == nil {
		t.Fatal("expected the broken feed to be reported")
	}
	if added != 2 {
		t.Fatalf("expected both videos from the good feed, got %d", added)
	}
}

func TestVideoIDFromURL(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=abc123XYZ_-": "abc123XYZ_-",
		"https://youtu.be/abc123":                     "abc123",
		"https://www.youtube.com/shorts/short01":      "short01",
		"https://www.youtube.com/live/live01?si=x":    "live01",
		"abc123":                                      "abc123",
		"https://example.com/about":                   "",
		"":                                            "",
	}
	for input, want := range tests {
		if got := feeds.VideoIDFromURL(input); got != want {
			t.Fatalf("VideoIDFromURL(%q) = %q, want %q", input, got, want)
		}
	}
}
