package broadcast_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pulpit/internal/broadcast"
	"pulpit/internal/testsupport"
)

func receive(t *testing.T, ch <-chan broadcast.Event) broadcast.Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return broadcast.Event{}
}

func TestBroadcastPreservesOrderPerSubscriber(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{ClientBuffer: 8}, nil)
	_, first := hub.Subscribe()
	_, second := hub.Subscribe()
	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	statuses := []string{"processing", "completed"}
	for _, status := range statuses {
		if n := hub.Broadcast(broadcast.StatusEvent(7, "abc", status, "")); n != 2 {
			t.Fatalf("expected delivery to 2 clients, got %d", n)
		}
	}
	for _, ch := range []<-chan broadcast.Event{first, second} {
		for _, want := range statuses {
			got := receive(t, ch)
			if got.Status != want || got.VideoID != 7 || got.Timestamp == "" {
				t.Fatalf("unexpected event %+v, want status %s", got, want)
			}
		}
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{ClientBuffer: 2, SendTimeout: 5 * time.Millisecond}, nil)
	_, slow := hub.Subscribe()
	_, fast := hub.Subscribe()

	var wg sync.WaitGroup
	var got []broadcast.Event
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range fast {
			got = append(got, event)
			if len(got) == 3 {
				return
			}
		}
	}()

	for i := range 3 {
		hub.Broadcast(broadcast.Event{Type: broadcast.TypeStatus, VideoID: int64(i + 1)})
	}
	wg.Wait()

	if hub.ClientCount() != 1 {
		t.Fatalf("expected slow client removed, %d remain", hub.ClientCount())
	}
	drained := 0
	for range slow {
		drained++
	}
	if drained != 2 {
		t.Fatalf("expected slow client to keep its 2 buffered events, got %d", drained)
	}
	if len(got) != 3 || got[2].VideoID != 3 {
		t.Fatalf("fast client missed events: %+v", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{}, nil)
	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)
	hub.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if n := hub.Broadcast(broadcast.StatusEvent(1, "", "pending", "")); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}

func TestHeartbeatRestartable(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{HeartbeatInterval: 10 * time.Millisecond}, nil)
	defer hub.Close()
	_, ch := hub.Subscribe()

	for round := range 2 {
		hub.Start(context.Background())
		hub.Start(context.Background())
		event := receive(t, ch)
		if event.Type != broadcast.TypeHeartbeat {
			t.Fatalf("round %d: expected heartbeat, got %+v", round, event)
		}
		hub.Stop()
		for len(ch) > 0 {
			<-ch
		}
	}

	payload, err := json.Marshal(receiveHeartbeat(t, hub))
	if err != nil {
		t.Fatalf("marshal heartbeat: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("unmarshal heartbeat: %v", err)
	}
	if len(fields) != 2 || fields["type"] != "heartbeat" {
		t.Fatalf("heartbeat should carry only type and timestamp, got %s", payload)
	}
	if _, err := time.Parse(time.RFC3339, fields["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
}

func receiveHeartbeat(t *testing.T, hub *broadcast.Hub) broadcast.Event {
	t.Helper()
	_, ch := hub.Subscribe()
	hub.Start(context.Background())
	defer hub.Stop()
	return receive(t, ch)
}

func TestRunReturnsOnCancel(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{HeartbeatInterval: 5 * time.Millisecond}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCloseRemovesEveryone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	hub := broadcast.NewHubFromConfig(cfg, nil)
	_, a := hub.Subscribe()
	_, b := hub.Subscribe()
	hub.Close()
	for _, ch := range []<-chan broadcast.Event{a, b} {
		if _, ok := <-ch; ok {
			t.Fatal("expected channel closed by Close")
		}
	}
	_, late := hub.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("subscribing to a closed hub should yield a closed channel")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected no clients, got %d", hub.ClientCount())
	}
}
