package segment_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pulpit/internal/segment"
	"pulpit/internal/testsupport"
)

func words(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestSplitUnderTargetReturnsOneSegment(t *testing.T) {
	text := testsupport.Words(120)
	got, err := segment.Split(text, segment.DefaultBounds(), segment.DefaultMarker)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(got) != 1 || got[0].StartWord != 0 || got[0].EndWord != 120 {
		t.Fatalf("expected single segment covering 120 words, got %#v", got)
	}
	if strings.HasPrefix(got[0].Text, segment.DefaultMarker) {
		t.Fatal("first segment must not carry the continuation marker")
	}
}

func TestSplitEmptyText(t *testing.T) {
	got, err := segment.Split("  \n ", segment.DefaultBounds(), "")
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no segments, got %#v", got)
	}
}

func TestSplitPrefersSentenceOverClause(t *testing.T) {
	w := words(40, "w")
	w[11] += ","  // clause boundary at 12, closest to target
	w[13] += "."  // sentence boundary at 14
	text := strings.Join(w, " ")
	got, err := segment.Split(text, segment.Bounds{Target: 12, Min: 8, Max: 16}, "")
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if got[0].EndWord != 14 {
		t.Fatalf("expected first split after the sentence end, got %d", got[0].EndWord)
	}
}

func TestSplitPrefersParagraphOverSentence(t *testing.T) {
	w := words(40, "w")
	w[9] += "."
	w[11] += "."
	text := strings.Join(w[:15], " ") + "\n\n" + strings.Join(w[15:], " ")
	got, err := segment.Split(text, segment.Bounds{Target: 12, Min: 8, Max: 16}, "")
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if got[0].EndWord != 15 {
		t.Fatalf("expected split at paragraph break, got %d", got[0].EndWord)
	}
}

func TestSplitClosestToIdealAndEarliestOnTie(t *testing.T) {
	w := words(40, "w")
	w[9] += "."  // boundary 10, distance 2
	w[13] += "." // boundary 14, distance 2
	got, err := segment.Split(strings.Join(w, " "), segment.Bounds{Target: 12, Min: 8, Max: 16}, "")
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if got[0].EndWord != 10 {
		t.Fatalf("expected earliest of tied boundaries, got %d", got[0].EndWord)
	}
}

func TestSplitHardSplitWithoutBoundaries(t *testing.T) {
	text := strings.Join(words(30, "w"), " ")
	got, err := segment.Split(text, segment.Bounds{Target: 10, Min: 5, Max: 15}, segment.DefaultMarker)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(got))
	}
	for i, seg := range got {
		if seg.WordCount() != 10 {
			t.Fatalf("segment %d has %d words", i, seg.WordCount())
		}
	}
	if !strings.HasPrefix(got[1].Text, "... w10") {
		t.Fatalf("expected continuation marker, got %q", got[1].Text)
	}
}

func TestSplitCoversAllWordsContiguously(t *testing.T) {
	bounds := []segment.Bounds{
		segment.DefaultBounds(),
		{Target: 50, Min: 20, Max: 80},
		{Target: 7, Min: 7, Max: 7},
		{Target: 30, Min: 1, Max: 200},
	}
	var b strings.Builder
	for i := range 1337 {
		b.WriteString(fmt.Sprintf("palavra%d", i))
		switch {
		case i%97 == 0:
			b.WriteString(".\n\n")
		case i%13 == 0:
			b.WriteString(". ")
		case i%5 == 0:
			b.WriteString(", ")
		default:
			b.WriteString(" ")
		}
	}
	text := b.String()
	for _, bnd := range bounds {
		t.Run(fmt.Sprintf("%d-%d-%d", bnd.Min, bnd.Target, bnd.Max), func(t *testing.T) {
			got, err := segment.Split(text, bnd, segment.DefaultMarker)
			if err != nil {
				t.Fatalf("Split returned error: %v", err)
			}
			next := 0
			for i, seg := range got {
				if seg.StartWord != next {
					t.Fatalf("segment %d starts at %d, want %d", i, seg.StartWord, next)
				}
				if seg.EndWord <= seg.StartWord {
					t.Fatalf("segment %d is empty", i)
				}
				if i < len(got)-1 && (seg.WordCount() < bnd.Min || seg.WordCount() > bnd.Max) {
					t.Fatalf("segment %d has %d words outside [%d,%d]", i, seg.WordCount(), bnd.Min, bnd.Max)
				}
				body := strings.TrimPrefix(seg.Text, segment.DefaultMarker)
				if len(strings.Fields(body)) != seg.WordCount() {
					t.Fatalf("segment %d text has %d words, range says %d", i, len(strings.Fields(body)), seg.WordCount())
				}
				next = seg.EndWord
			}
			if next != 1337 {
				t.Fatalf("segments end at %d, want 1337", next)
			}
		})
	}
}

func TestBoundsValidate(t *testing.T) {
	cases := []segment.Bounds{
		{Target: 0, Min: 0, Max: 0},
		{Target: 100, Min: 150, Max: 450},
		{Target: 500, Min: 150, Max: 450},
		{Target: 300, Min: -1, Max: 450},
	}
	for _, b := range cases {
		_, err := segment.Split("texto", b, "")
		if !errors.Is(err, segment.ErrInvalidBounds) {
			t.Fatalf("bounds %+v: expected ErrInvalidBounds, got %v", b, err)
		}
	}
}
