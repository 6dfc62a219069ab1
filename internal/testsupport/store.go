package testsupport

import (
	"context"
	"testing"

	"pulpit/internal/config"
	"pulpit/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Enqueue adds a pending video for tests.
func Enqueue(t testing.TB, st *store.Store, externalID, title string) *store.Video {
	t.Helper()

	video, _, err := st.Enqueue(context.Background(), store.NewVideo{
		ExternalID: externalID,
		SourceURL:  "https://www.youtube.com/watch?v=" + externalID,
		Title:      title,
		Language:   "pt",
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return video
}
