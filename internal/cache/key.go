package cache

import (
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// KeyLength is the width of every key returned by Key.
const KeyLength = 64

// Key derives the cache key for a question asked against a set of context
// videos. Case and surrounding whitespace of the question are ignored, as are
// the order and multiplicity of the video ids.
func Key(question string, videoIDs []int64) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	ids := NormalizeIDs(videoIDs)

	var b strings.Builder
	b.Grow(len(normalized) + 1 + len(ids)*6)
	b.WriteString(normalized)
	b.WriteByte('|')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizeIDs returns a sorted copy of ids with duplicates removed.
func NormalizeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
