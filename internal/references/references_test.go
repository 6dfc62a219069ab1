package references_test

import (
	"strings"
	"testing"

	"pulpit/internal/logging"
	"pulpit/internal/references"
	"pulpit/internal/scripture"
)

func newDetector() *references.Detector {
	return references.NewDetector(scripture.Default(), logging.NewNop())
}

func TestDetectSermonSentence(t *testing.T) {
	matches := newDetector().Detect("Hoje vamos ler em João 3:16 e também 1 Coríntios 13:4-7.")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %#v", len(matches), matches)
	}
	first, second := matches[0], matches[1]
	if first.Code != "JHN" || first.Book != "João" || first.Chapter != 3 || first.VerseStart != 16 || first.VerseEnd != 0 {
		t.Fatalf("unexpected first match %#v", first)
	}
	if first.Type != references.TypeReading {
		t.Fatalf("expected reading cue to classify first match, got %s", first.Type)
	}
	if second.Code != "1CO" || second.Book != "1 Coríntios" || second.Chapter != 13 || second.VerseStart != 4 || second.VerseEnd != 7 {
		t.Fatalf("unexpected second match %#v", second)
	}
	if second.Type != references.TypeCitation {
		t.Fatalf("expected citation for second match, got %s", second.Type)
	}
	if scripture.FormatOSIS(second.Reference()) != "1CO.13.4-7" {
		t.Fatalf("unexpected reference %s", second.Reference())
	}
}

func TestDetectEdgeCases(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		codes []string
	}{
		{"mention without verse", "como diz Salmos 23 sobre o pastor", []string{"PSA"}},
		{"english", "Let's read Romans 8:28 together", []string{"ROM"}},
		{"unaccented", "joao 3:16", []string{"JHN"}},
		{"upper case", "JOÃO 3:16", []string{"JHN"}},
		{"embedded in word", "SãoJoão 3:16", nil},
		{"no chapter", "o evangelho de João diz", nil},
		{"longest variant wins", "lemos 1 João 4:8 hoje", []string{"1JN"}},
		{"numeral words", "Primeira aos Coríntios 13:1", []string{"1CO"}},
		{"year is not a chapter", "João 2024", nil},
		{"decomposed accents", "João 3:16", []string{"JHN"}},
		{"en dash range", "Mateus 5:3–12", []string{"MAT"}},
	}
	d := newDetector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			matches := d.Detect(tc.text)
			var got []string
			for _, m := range matches {
				got = append(got, m.Code)
			}
			if strings.Join(got, ",") != strings.Join(tc.codes, ",") {
				t.Fatalf("Detect(%q) codes = %v, want %v", tc.text, got, tc.codes)
			}
		})
	}
}

func TestDetectDropsBackwardsRangeEnd(t *testing.T) {
	matches := newDetector().Detect("Mateus 5:12-3")
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %d", len(matches))
	}
	if matches[0].VerseStart != 12 || matches[0].VerseEnd != 0 {
		t.Fatalf("expected end dropped, got %#v", matches[0])
	}
}

func TestDetectKeepsOutOfRangeChapter(t *testing.T) {
	matches := newDetector().Detect("Judas 7:1")
	if len(matches) != 1 || matches[0].Chapter != 7 {
		t.Fatalf("expected out-of-range chapter kept, got %#v", matches)
	}
}

func TestBuildPatternOrdersLongestFirst(t *testing.T) {
	pattern := references.BuildPattern([]string{"Jo", "1 João", "João"})
	first := strings.Index(pattern, `1\s+João`)
	mid := strings.Index(pattern, "|João|")
	last := strings.Index(pattern, "|Jo)")
	if first < 0 || mid < 0 || last < 0 || !(first < mid && mid < last) {
		t.Fatalf("unexpected alternation order in %s", pattern)
	}
}

func TestAggregateAndTopN(t *testing.T) {
	text := "João 3:16. Depois João 3:16 de novo, João 1:1 e Romanos 8:28. Também Romanos 8."
	stats := references.Aggregate(newDetector().Detect(text))
	if stats.Total != 5 {
		t.Fatalf("expected 5 matches, got %d", stats.Total)
	}
	books := stats.TopBooks(10)
	if books[0] != (references.Count{Key: "JHN", Count: 3}) || books[1] != (references.Count{Key: "ROM", Count: 2}) {
		t.Fatalf("unexpected top books %#v", books)
	}
	chapters := stats.TopChapters(2)
	if len(chapters) != 2 || chapters[0].Key != "JHN.3" || chapters[1].Key != "ROM.8" {
		t.Fatalf("unexpected top chapters %#v", chapters)
	}
	verses := stats.TopVerses(0)
	if verses[0] != (references.Count{Key: "JHN.3.16", Count: 2}) {
		t.Fatalf("unexpected top verse %#v", verses[0])
	}
	if verses[1].Key != "JHN.1.1" || verses[2].Key != "ROM.8.28" {
		t.Fatalf("expected ties ordered by key, got %#v", verses)
	}
}

func TestPassagesMergeIdenticalReferences(t *testing.T) {
	matches := newDetector().Detect("Salmos 23. Vamos ler Salmos 23. João 3:16")
	passages := references.Passages(matches)
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %#v", passages)
	}
	if passages[0].Code != "PSA" || passages[0].Count != 2 || passages[0].Type != references.TypeReading || passages[0].VerseStart != nil {
		t.Fatalf("unexpected merged passage %#v", passages[0])
	}
	if passages[1].VerseStart == nil || *passages[1].VerseStart != 16 {
		t.Fatalf("unexpected second passage %#v", passages[1])
	}
}

func TestOverlaps(t *testing.T) {
	p := func(v int) *int { return &v }
	cases := []struct {
		name       string
		qs, qe     *int
		start, end *int
		want       bool
	}{
		{"single verse equals range point", p(7), p(7), p(7), nil, true},
		{"range touches at edge", p(5), p(10), p(10), p(20), true},
		{"range gap", p(21), p(25), p(10), p(20), false},
		{"point inside query", p(1), p(5), p(3), nil, true},
		{"point outside query", p(1), p(5), p(6), nil, false},
		{"whole chapter stored", p(1), p(2), nil, nil, true},
		{"whole chapter query", nil, nil, p(9), p(12), true},
		{"nil query end is single verse", p(15), nil, p(10), p(20), true},
	}
	for _, tc := range cases {
		if got := references.Overlaps(tc.qs, tc.qe, tc.start, tc.end); got != tc.want {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveAcceptsOSISAndSpokenForms(t *testing.T) {
	detector := newDetector()
	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "JHN.3.16-18", want: "JHN.3.16-18"},
		{input: "João 3:16", want: "JHN.3.16"},
		{input: "leia Romanos 8", want: "ROM.8"},
		{input: "XYZ.1", wantErr: true},
	}
	for _, tc := range cases {
		ref, err := detector.Resolve(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Resolve(%q) expected error, got %s", tc.input, scripture.FormatOSIS(ref))
			}
			continue
		}
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", tc.input, err)
		}
		if got := scripture.FormatOSIS(ref); got != tc.want {
			t.Fatalf("Resolve(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}
