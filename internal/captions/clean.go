package captions

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"pulpit/internal/textutil"
)

var (
	// inline VTT timestamps such as <00:00:01.520> are not HTML and would
	// survive markup stripping as text.
	timestampTag = regexp.MustCompile(`<\d{1,2}:\d{2}(?::\d{2})?[.,]\d{1,3}>`)
	bracketToken = regexp.MustCompile(`\[[^\[\]]*\]`)
)

// Clean normalizes cue texts and removes rolling repetition, where a cue
// starts by repeating the end of the previous one. Cues that end up empty
// are dropped.
func Clean(cues []Cue) []Cue {
	out := make([]Cue, 0, len(cues))
	var prevWords []string
	for _, cue := range cues {
		text := CleanText(cue.Text)
		if text == "" {
			continue
		}
		words := strings.Fields(text)
		overlap := rollingOverlap(prevWords, words)
		prevWords = words
		if overlap == len(words) {
			continue
		}
		if overlap > 0 {
			text = strings.Join(words[overlap:], " ")
		}
		out = append(out, Cue{Start: cue.Start, End: cue.End, Text: text})
	}
	return out
}

// CleanText strips markup, decodes entities, normalizes to NFC, removes
// bracketed annotations, filters disallowed glyphs and collapses spaces.
func CleanText(raw string) string {
	text := timestampTag.ReplaceAllString(raw, " ")
	if strings.ContainsAny(text, "<&") {
		text = stripMarkup(text)
	}
	text = textutil.NFC(text)
	text = bracketToken.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.Z):
			return r
		}
		return -1
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

func stripMarkup(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + text + "</body>"))
	if err != nil {
		return text
	}
	return doc.Find("body").Text()
}

// rollingOverlap returns how many leading words of next repeat the tail of
// prev. Single-word overlaps only count when both cues are that one word.
func rollingOverlap(prev, next []string) int {
	limit := min(len(prev), len(next))
	for n := limit; n > 0; n-- {
		if n == 1 && (len(prev) != 1 || len(next) != 1) {
			break
		}
		if equalWords(prev[len(prev)-n:], next[:n]) {
			return n
		}
	}
	return 0
}

func equalWords(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Text cleans cues and joins them into one transcript.
func Text(cues []Cue) string {
	return JoinText(Clean(cues))
}
