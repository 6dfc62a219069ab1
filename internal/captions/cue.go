package captions

import (
	"strings"
	"time"
)

// Cue is one timed caption line.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// JoinText concatenates cue texts with single spaces.
func JoinText(cues []Cue) string {
	parts := make([]string, 0, len(cues))
	for _, cue := range cues {
		if text := strings.TrimSpace(cue.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
