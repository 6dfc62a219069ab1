package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pulpit/internal/api"
	"pulpit/internal/store"
)

func intPtr(v int) *int { return &v }

func TestFromPassageRendersReference(t *testing.T) {
	tests := []struct {
		name    string
		passage store.Passage
		want    string
	}{
		{"book", store.Passage{Code: "JHN", Book: "João"}, "JHN"},
		{"chapter", store.Passage{Code: "JHN", Chapter: 3}, "JHN.3"},
		{"verse", store.Passage{Code: "JHN", Chapter: 3, VerseStart: intPtr(16)}, "JHN.3.16"},
		{"range", store.Passage{Code: "1CO", Chapter: 13, VerseStart: intPtr(4), VerseEnd: intPtr(7)}, "1CO.13.4-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := api.FromPassage(tt.passage)
			if got.Reference != tt.want {
				t.Fatalf("Reference = %q, want %q", got.Reference, tt.want)
			}
		})
	}
}

func TestFromVideoFormatsTimestamps(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := api.FromVideo(&store.Video{ID: 7, ExternalID: "abc123def45", Status: store.StatusCompleted, CreatedAt: created})
	if v.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("CreatedAt = %q", v.CreatedAt)
	}
	if v.PublishedAt != "" {
		t.Fatalf("expected empty published_at, got %q", v.PublishedAt)
	}
	if v.Status != "completed" {
		t.Fatalf("Status = %q", v.Status)
	}
	if got := api.FromVideo(nil); got.ID != 0 {
		t.Fatalf("expected zero video for nil, got %+v", got)
	}
}

func TestQueueCountsIncludesEveryStatus(t *testing.T) {
	counts := api.QueueCounts(map[store.Status]int{store.StatusPending: 2})
	if len(counts) != len(store.Statuses) {
		t.Fatalf("expected %d statuses, got %d", len(store.Statuses), len(counts))
	}
	if counts["pending"] != 2 || counts["failed"] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody api.EnqueueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.EnqueueResponse{Video: api.Video{ID: 3, ExternalID: gotBody.ExternalID}, Created: true})
	}))
	defer srv.Close()

	client := api.NewClient(strings.TrimPrefix(srv.URL, "http://"), "secret")
	resp, err := client.Enqueue(context.Background(), api.EnqueueRequest{ExternalID: "dQw4w9WgXcQ"})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/api/videos" {
		t.Fatalf("path = %q", gotPath)
	}
	if !resp.Created || resp.Video.ID != 3 || resp.Video.ExternalID != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientReturnsErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "video not found"})
	}))
	defer srv.Close()

	_, err := api.NewClient(srv.URL, "").Video(context.Background(), 99)
	if err == nil || !strings.Contains(err.Error(), "video not found") {
		t.Fatalf("expected error payload, got %v", err)
	}
}

func TestClientWithoutBind(t *testing.T) {
	_, err := api.NewClient("", "").Status(context.Background())
	if !errors.Is(err, api.ErrDaemonUnavailable) {
		t.Fatalf("expected ErrDaemonUnavailable, got %v", err)
	}
}
