package segment

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMarker prefixes every segment after the first.
const DefaultMarker = "... "

// ErrInvalidBounds reports bounds that are non-positive or out of order.
var ErrInvalidBounds = errors.New("invalid segment bounds")

// Bounds are word counts. Valid bounds satisfy 0 < Min <= Target <= Max.
type Bounds struct {
	Target int
	Min    int
	Max    int
}

// DefaultBounds returns target 300, min 150, max 450.
func DefaultBounds() Bounds {
	return Bounds{Target: 300, Min: 150, Max: 450}
}

// Validate checks ordering and positivity.
func (b Bounds) Validate() error {
	if b.Target <= 0 || b.Min <= 0 || b.Max <= 0 {
		return fmt.Errorf("%w: values must be positive (target=%d min=%d max=%d)", ErrInvalidBounds, b.Target, b.Min, b.Max)
	}
	if b.Min > b.Target || b.Target > b.Max {
		return fmt.Errorf("%w: need min <= target <= max (target=%d min=%d max=%d)", ErrInvalidBounds, b.Target, b.Min, b.Max)
	}
	return nil
}

// Segment is a chunk of text covering words [StartWord, EndWord).
type Segment struct {
	Text      string
	StartWord int
	EndWord   int
}

// WordCount returns the number of words in the segment.
func (s Segment) WordCount() int {
	return s.EndWord - s.StartWord
}

// Boundary tiers.
const (
	tierNone = iota
	tierClause
	tierSentence
	tierParagraph
)

type word struct {
	start, end int
	// tier of the boundary after this word
	tier int
}

// Split divides text using bounds. Text at or under the target becomes one
// segment; empty text yields no segments. marker is prepended to every
// segment after the first.
func Split(text string, bounds Bounds, marker string) ([]Segment, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	words := scanWords(text)
	total := len(words)
	if total == 0 {
		return []Segment{}, nil
	}
	if total <= bounds.Target {
		return []Segment{{Text: strings.TrimSpace(text), StartWord: 0, EndWord: total}}, nil
	}

	var segments []Segment
	cursor := 0
	for cursor < total {
		end := total
		if total-cursor > bounds.Target {
			end = splitPoint(words, cursor, bounds)
		}
		body := text[words[cursor].start:words[end-1].end]
		if len(segments) > 0 {
			body = marker + body
		}
		segments = append(segments, Segment{Text: body, StartWord: cursor, EndWord: end})
		cursor = end
	}
	return segments, nil
}

// splitPoint returns the exclusive end word for the segment starting at
// cursor. Position p means the split falls after word p-1.
func splitPoint(words []word, cursor int, bounds Bounds) int {
	total := len(words)
	lo := cursor + bounds.Min
	hi := min(cursor+bounds.Max, total)
	ideal := cursor + bounds.Target

	best, bestTier, bestDist := -1, tierNone, 0
	for p := lo; p <= hi; p++ {
		tier := words[p-1].tier
		if tier == tierNone {
			continue
		}
		dist := p - ideal
		if dist < 0 {
			dist = -dist
		}
		if tier > bestTier || (tier == bestTier && dist < bestDist) {
			best, bestTier, bestDist = p, tier, dist
		}
	}
	if best < 0 {
		return min(cursor+bounds.Target, total)
	}
	return best
}

// scanWords finds whitespace separated words with their byte spans and the
// boundary tier that follows each one.
func scanWords(text string) []word {
	var words []word
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		w := word{start: start, end: i, tier: punctuationTier(text[start:i])}
		newlines := 0
		j := i
		for j < len(text) {
			r, size = utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r) {
				break
			}
			if r == '\n' {
				newlines++
			}
			j += size
		}
		if newlines >= 2 && j < len(text) {
			w.tier = tierParagraph
		}
		words = append(words, w)
		i = j
	}
	return words
}

func punctuationTier(token string) int {
	trimmed := strings.TrimRightFunc(token, func(r rune) bool {
		switch r {
		case '"', '\'', ')', ']', '»', '”', '’':
			return true
		}
		return false
	})
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	switch last {
	case '.', '!', '?', '…':
		return tierSentence
	case ',', ';', ':', '—', '–':
		return tierClause
	}
	return tierNone
}
