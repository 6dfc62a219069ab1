package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Words returns n space-separated filler words drawn from a small Portuguese
// vocabulary, for tests that only care about word counts.
func Words(n int) string {
	vocab := []string{"graça", "fé", "oração", "igreja", "palavra", "amor", "esperança", "vida", "caminho", "verdade", "luz", "paz"}
	words := make([]string, n)
	for i := range words {
		words[i] = vocab[i%len(vocab)]
	}
	return strings.Join(words, " ")
}
