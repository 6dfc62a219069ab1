package broadcast_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pulpit/internal/broadcast"
	"pulpit/internal/testsupport"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWebSocketStreamsEvents(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{}, nil)
	defer hub.Close()
	server := httptest.NewServer(broadcast.NewWebSocketHandler(hub, broadcast.WebSocketOptions{}, nil))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(broadcast.StatusEvent(3, "xyz", "completed", "done"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event broadcast.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != broadcast.TypeStatus || event.Status != "completed" || event.ExternalID != "xyz" {
		t.Fatalf("unexpected event %+v", event)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{}, nil)
	server := httptest.NewServer(broadcast.NewWebSocketHandler(hub, broadcast.WebSocketOptions{AllowedOrigins: []string{"https://ok.example"}}, nil))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake rejection for foreign origin")
	}
	header.Set("Origin", "https://ok.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin dial: %v", err)
	}
	_ = conn.Close()
}

func TestHTTPNotifierPostsEvent(t *testing.T) {
	var (
		mu      sync.Mutex
		path    string
		auth    string
		decoded broadcast.Event
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.Unmarshal(body, &decoded)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := broadcast.NewHTTPNotifier(server.URL+"/", "secret", time.Second, nil)
	notifier.Notify(context.Background(), broadcast.StatusEvent(9, "v9", "failed", "all transcript sources failed"))

	mu.Lock()
	defer mu.Unlock()
	if path != "/api/events" || auth != "Bearer secret" {
		t.Fatalf("unexpected request path=%q auth=%q", path, auth)
	}
	if decoded.VideoID != 9 || decoded.Status != "failed" || decoded.Timestamp == "" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestHTTPNotifierSwallowsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	server.Close()
	notifier := broadcast.NewHTTPNotifier(server.URL, "", 50*time.Millisecond, nil)
	notifier.Notify(context.Background(), broadcast.StatusEvent(1, "", "pending", ""))
}

func TestNewNotifierFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, ok := broadcast.NewNotifierFromConfig(cfg, nil, nil).(broadcast.NopNotifier); !ok {
		t.Fatal("expected nop notifier without hub or remote")
	}
	hub := broadcast.NewHub(broadcast.Options{}, nil)
	if _, ok := broadcast.NewNotifierFromConfig(cfg, hub, nil).(broadcast.HubNotifier); !ok {
		t.Fatal("expected hub notifier")
	}
	cfg.Broadcast.RemoteURL = "http://127.0.0.1:7487"
	multi, ok := broadcast.NewNotifierFromConfig(cfg, hub, nil).(broadcast.MultiNotifier)
	if !ok || len(multi) != 2 {
		t.Fatalf("expected hub and http notifiers, got %#v", multi)
	}

	_, ch := hub.Subscribe()
	multi[0].Notify(context.Background(), broadcast.StatusEvent(2, "", "processing", ""))
	if got := receive(t, ch); got.VideoID != 2 {
		t.Fatalf("unexpected event %+v", got)
	}
}
