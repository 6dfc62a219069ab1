package references

import (
	"cmp"
	"slices"

	"pulpit/internal/scripture"
)

// Count is one aggregated key with its frequency.
type Count struct {
	Key   string
	Count int
}

// Stats counts matches at book, chapter and verse granularity. Keys are
// compact references: JHN, JHN.3, JHN.3.16.
type Stats struct {
	Total     int
	ByBook    map[string]int
	ByChapter map[string]int
	ByVerse   map[string]int
}

// Aggregate counts matches per book, chapter and verse. Ranges count once
// under their starting verse.
func Aggregate(matches []Match) Stats {
	stats := Stats{
		Total:     len(matches),
		ByBook:    make(map[string]int),
		ByChapter: make(map[string]int),
		ByVerse:   make(map[string]int),
	}
	for _, m := range matches {
		stats.ByBook[m.Code]++
		stats.ByChapter[scripture.FormatOSIS(scripture.Reference{Code: m.Code, Chapter: m.Chapter})]++
		if m.VerseStart > 0 {
			stats.ByVerse[scripture.FormatOSIS(scripture.Reference{Code: m.Code, Chapter: m.Chapter, VerseStart: m.VerseStart})]++
		}
	}
	return stats
}

// TopN returns the n most frequent keys, count descending then key
// ascending. n <= 0 returns all keys.
func TopN(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for key, count := range counts {
		out = append(out, Count{Key: key, Count: count})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopBooks returns the n most cited books.
func (s Stats) TopBooks(n int) []Count { return TopN(s.ByBook, n) }

// TopChapters returns the n most cited chapters.
func (s Stats) TopChapters(n int) []Count { return TopN(s.ByChapter, n) }

// TopVerses returns the n most cited verses.
func (s Stats) TopVerses(n int) []Count { return TopN(s.ByVerse, n) }

// Passage is a distinct reference with its occurrence count, ready for
// persistence. VerseStart nil is the whole chapter.
type Passage struct {
	Book       string
	Code       string
	Chapter    int
	VerseStart *int
	VerseEnd   *int
	Type       PassageType
	Count      int
}

// Reference returns the passage as a compact reference.
func (p Passage) Reference() scripture.Reference {
	ref := scripture.Reference{Code: p.Code, Chapter: p.Chapter}
	if p.VerseStart != nil {
		ref.VerseStart = *p.VerseStart
	}
	if p.VerseEnd != nil {
		ref.VerseEnd = *p.VerseEnd
	}
	return ref
}

// Passages merges identical references, keeping first-appearance order.
// The merged type is the strongest seen: reading over citation over mention.
func Passages(matches []Match) []Passage {
	index := make(map[scripture.Reference]int, len(matches))
	var out []Passage
	for _, m := range matches {
		ref := m.Reference()
		if i, ok := index[ref]; ok {
			out[i].Count++
			if m.Type.rank() > out[i].Type.rank() {
				out[i].Type = m.Type
			}
			continue
		}
		p := Passage{Book: m.Book, Code: m.Code, Chapter: m.Chapter, Type: m.Type, Count: 1}
		if m.VerseStart > 0 {
			v := m.VerseStart
			p.VerseStart = &v
		}
		if m.VerseEnd > 0 {
			v := m.VerseEnd
			p.VerseEnd = &v
		}
		index[ref] = len(out)
		out = append(out, p)
	}
	return out
}

// Overlaps reports whether the query range [qs, qe] touches a stored
// passage. A stored passage with an end overlaps when
// max(qs, start) <= min(qe, end); without an end it overlaps when
// qs <= start <= qe. A stored passage without a start is a whole chapter
// and matches any query; a query without a start matches any stored
// passage. A nil qe is the single verse qs.
func Overlaps(qs, qe, start, end *int) bool {
	if start == nil || qs == nil {
		return true
	}
	lo := *qs
	hi := lo
	if qe != nil && *qe >= lo {
		hi = *qe
	}
	if end == nil {
		return lo <= *start && *start <= hi
	}
	return max(lo, *start) <= min(hi, *end)
}
