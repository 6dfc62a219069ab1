package references

import (
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"pulpit/internal/logging"
	"pulpit/internal/scripture"
	"pulpit/internal/textutil"
)

// PassageType classifies how a reference appears in speech.
type PassageType string

const (
	TypeReading  PassageType = "reading"
	TypeCitation PassageType = "citation"
	TypeMention  PassageType = "mention"
)

func (t PassageType) rank() int {
	switch t {
	case TypeReading:
		return 3
	case TypeCitation:
		return 2
	default:
		return 1
	}
}

// cueWindow is how many bytes before a match are searched for a reading cue.
const cueWindow = 40

var readingCues = []string{
	"vamos ler",
	"leitura",
	"lemos",
	"leiamos",
	"leia comigo",
	"let's read",
	"let’s read",
	"lets read",
	"reading from",
	"read with me",
}

// Match is one reference found in text. Offset is the byte offset of the
// match in the NFC-normalized text.
type Match struct {
	Book       string
	Code       string
	Chapter    int
	VerseStart int
	VerseEnd   int
	Offset     int
	Text       string
	Type       PassageType
}

// Reference returns the match as a compact reference.
func (m Match) Reference() scripture.Reference {
	return scripture.Reference{Code: m.Code, Chapter: m.Chapter, VerseStart: m.VerseStart, VerseEnd: m.VerseEnd}
}

// Detector finds references using a compiled catalog pattern.
type Detector struct {
	catalog *scripture.Catalog
	pattern *regexp.Regexp
	logger  *slog.Logger
}

// BuildPattern returns the detector regular expression for the given
// variants. Variants are sorted by length descending, ties by text, so the
// alternation prefers the longest name at any position. Internal whitespace
// in a variant matches any run of whitespace.
func BuildPattern(variants []string) string {
	sorted := slices.Clone(variants)
	slices.SortFunc(sorted, func(a, b string) int {
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		if la != lb {
			return lb - la
		}
		return strings.Compare(a, b)
	})
	sorted = slices.Compact(sorted)

	parts := make([]string, 0, len(sorted))
	for _, variant := range sorted {
		fields := strings.Fields(norm.NFC.String(variant))
		if len(fields) == 0 {
			continue
		}
		for i, field := range fields {
			fields[i] = regexp.QuoteMeta(field)
		}
		parts = append(parts, strings.Join(fields, `\s+`))
	}
	return `(?i)(` + strings.Join(parts, "|") + `)\s+(\d{1,3})(?:[:.](\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?)?`
}

// NewDetector compiles the catalog variants into a detector.
func NewDetector(catalog *scripture.Catalog, logger *slog.Logger) *Detector {
	if catalog == nil {
		catalog = scripture.Default()
	}
	return &Detector{
		catalog: catalog,
		pattern: regexp.MustCompile(BuildPattern(catalog.Variants())),
		logger:  logging.NewComponentLogger(logger, "references"),
	}
}

// Detect returns every reference in text in order of appearance.
func (d *Detector) Detect(text string) []Match {
	text = norm.NFC.String(text)
	var (
		matches []Match
		pos     int
		prevEnd int
	)
	for pos < len(text) {
		loc := d.pattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		start, end := loc[0], loc[1]
		if !textutil.BoundaryBefore(text, start) || !textutil.BoundaryAfter(text, end) {
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + size
			continue
		}

		variant := text[loc[2]:loc[3]]
		book, ok := d.catalog.Lookup(variant)
		if !ok {
			pos = end
			continue
		}
		m := Match{
			Book:    book.Name,
			Code:    book.Code,
			Chapter: atoi(text, loc[4], loc[5]),
			Offset:  start,
			Text:    text[start:end],
		}
		if loc[6] >= 0 {
			m.VerseStart = atoi(text, loc[6], loc[7])
		}
		if loc[8] >= 0 {
			if e := atoi(text, loc[8], loc[9]); e > m.VerseStart {
				m.VerseEnd = e
			}
		}
		m.Type = classify(text, prevEnd, start, m.VerseStart > 0)

		if m.Chapter > book.Chapters {
			logging.WarnWithContext(d.logger, "reference chapter out of range", "reference_chapter_out_of_range",
				logging.String("reference", m.Text),
				logging.String("book", book.Code),
				logging.Int("chapter", m.Chapter),
				logging.Int("max_chapter", book.Chapters),
				logging.String(logging.FieldErrorHint, "likely a transcription error in the spoken reference"),
				logging.String(logging.FieldImpact, "reference kept as detected"),
			)
		}

		matches = append(matches, m)
		prevEnd = end
		pos = end
	}
	return matches
}

func classify(text string, prevEnd, start int, hasVerse bool) PassageType {
	windowStart := max(start-cueWindow, prevEnd, 0)
	for windowStart > 0 && windowStart < start && !utf8.RuneStart(text[windowStart]) {
		windowStart++
	}
	if windowStart < start {
		window := strings.ToLower(text[windowStart:start])
		for _, cue := range readingCues {
			if strings.Contains(window, cue) {
				return TypeReading
			}
		}
	}
	if hasVerse {
		return TypeCitation
	}
	return TypeMention
}

func atoi(text string, start, end int) int {
	n, _ := strconv.Atoi(text[start:end])
	return n
}

// Resolve parses s as an OSIS reference and falls back to the first spoken
// citation detected in it, so "João 3:16" resolves like "JHN.3.16".
func (d *Detector) Resolve(s string) (scripture.Reference, error) {
	ref, err := d.catalog.ParseAndValidate(s)
	if err == nil {
		return ref, nil
	}
	if matches := d.Detect(s); len(matches) > 0 {
		return matches[0].Reference(), nil
	}
	return scripture.Reference{}, err
}
