package cache_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pulpit/internal/cache"
	"pulpit/internal/logging"
	"pulpit/internal/testsupport"
)

func TestKeyNormalizesQuestionAndIDs(t *testing.T) {
	a := cache.Key("What is grace?", []int64{5, 3, 5})
	b := cache.Key(" what IS grace? ", []int64{3, 5})
	if a != b {
		t.Fatalf("expected equal keys, got %s and %s", a, b)
	}
	if len(a) != cache.KeyLength || strings.ToLower(a) != a {
		t.Fatalf("expected 64 lowercase hex characters, got %q", a)
	}
	if cache.Key("What is grace?", []int64{3}) == a {
		t.Fatal("expected different video sets to change the key")
	}
	if cache.Key("What is faith?", []int64{3, 5}) == a {
		t.Fatal("expected different questions to change the key")
	}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func backends(t *testing.T) map[string]cache.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return map[string]cache.Store{
		"memory": cache.NewMemoryStore(),
		"sqlite": cache.NewSQLiteStore(st),
	}
}

func TestServicePutGetTracksHits(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
			svc := cache.NewService(backend, logging.NewNop(), cache.WithClock(clk.Now), cache.WithTTL(time.Hour))

			key := cache.Key("Quem é Jesus?", []int64{1, 2})
			req := cache.PutRequest{
				Question:        "Quem é Jesus?",
				VideoIDs:        []int64{2, 1},
				Response:        "Resposta",
				CitedVideos:     []cache.CitedVideo{{VideoID: 1, Title: "Culto", ExternalID: "abc", Timestamp: 42}},
				RelevanceScores: []float64{0.8},
				Backend:         "primary",
			}
			if err := svc.Put(ctx, key, req, 0); err != nil {
				t.Fatalf("Put returned error: %v", err)
			}

			clk.now = clk.now.Add(30 * time.Minute)
			entry, ok := svc.Get(ctx, key)
			if !ok {
				t.Fatal("expected cache hit before ttl")
			}
			if entry.Response != "Resposta" || entry.HitCount != 1 {
				t.Fatalf("unexpected entry %#v", entry)
			}
			if len(entry.CitedVideos) != 1 || entry.CitedVideos[0].Timestamp != 42 {
				t.Fatalf("unexpected cited videos %#v", entry.CitedVideos)
			}
			if len(entry.VideoIDs) != 2 || entry.VideoIDs[0] != 1 {
				t.Fatalf("expected normalized video ids, got %v", entry.VideoIDs)
			}

			entry, ok = svc.Get(ctx, key)
			if !ok || entry.HitCount != 2 {
				t.Fatalf("expected second hit count 2, got ok=%v %d", ok, entry.HitCount)
			}

			clk.now = clk.now.Add(2 * time.Hour)
			if _, ok := svc.Get(ctx, key); ok {
				t.Fatal("expected miss after ttl")
			}
			stats, err := svc.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats returned error: %v", err)
			}
			if stats.Entries != 0 {
				t.Fatalf("expected expired entry deleted on read, got %#v", stats)
			}
		})
	}
}

func TestServicePutOverwritesAndSweeps(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
			svc := cache.NewService(backend, logging.NewNop(), cache.WithClock(clk.Now))

			key := cache.Key("q", nil)
			if err := svc.Put(ctx, key, cache.PutRequest{Question: "q", Response: "first"}, time.Minute); err != nil {
				t.Fatalf("Put returned error: %v", err)
			}
			if err := svc.Put(ctx, key, cache.PutRequest{Question: "q", Response: "second"}, time.Minute); err != nil {
				t.Fatalf("Put overwrite returned error: %v", err)
			}
			other := cache.Key("other", nil)
			if err := svc.Put(ctx, other, cache.PutRequest{Question: "other", Response: "long"}, 0); err != nil {
				t.Fatalf("Put returned error: %v", err)
			}
			if entry, ok := svc.Get(ctx, key); !ok || entry.Response != "second" {
				t.Fatalf("expected overwritten response, got %#v ok=%v", entry, ok)
			}

			clk.now = clk.now.Add(time.Hour)
			removed, err := svc.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep returned error: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected one expired entry swept, got %d", removed)
			}
			if _, ok := svc.Get(ctx, other); !ok {
				t.Fatal("expected default-ttl entry to survive the sweep")
			}
		})
	}
}

func TestServicePutRejectsInvalidEntries(t *testing.T) {
	svc := cache.NewService(cache.NewMemoryStore(), logging.NewNop())
	ctx := context.Background()
	key := cache.Key("q", nil)

	cases := []struct {
		name string
		key  string
		req  cache.PutRequest
	}{
		{"short key", "abc", cache.PutRequest{Response: "r"}},
		{"empty response", key, cache.PutRequest{Response: "  "}},
		{"score mismatch", key, cache.PutRequest{Response: "r", CitedVideos: []cache.CitedVideo{{VideoID: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Put(ctx, tc.key, tc.req, 0); !errors.Is(err, cache.ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}
}

type failingStore struct{ cache.Store }

func (failingStore) Get(context.Context, string) (*cache.Entry, error) {
	return nil, errors.New("connection refused")
}

func TestServiceGetTreatsStoreErrorAsMiss(t *testing.T) {
	svc := cache.NewService(failingStore{Store: cache.NewMemoryStore()}, logging.NewNop())
	if _, ok := svc.Get(context.Background(), cache.Key("q", nil)); ok {
		t.Fatal("expected store failure to be reported as a miss")
	}
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	svc := cache.NewService(cache.NewMemoryStore(), logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestOpenBackendSelectsStore(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend("memory"))
	backend, closeFn, err := cache.OpenBackend(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("OpenBackend returned error: %v", err)
	}
	defer closeFn()
	if _, ok := backend.(*cache.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", backend)
	}

	cfg.Cache.Backend = "sqlite"
	if _, _, err := cache.OpenBackend(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected sqlite backend without catalog to fail")
	}
}
