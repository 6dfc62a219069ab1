package themes

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"pulpit/internal/captions"
	"pulpit/internal/textutil"
)

// DefaultMaxTimestamps caps timestamps collected per theme.
const DefaultMaxTimestamps = 5

// Theme is a tagged theme with its score and keyword hit count.
// Timestamps are seconds into the video where a keyword was spoken.
type Theme struct {
	Tag        string
	Label      string
	Score      float64
	Hits       int
	Timestamps []float64
}

type keywordMatcher struct {
	keyword string
	pattern *regexp.Regexp
}

type compiledTheme struct {
	def      ThemeDef
	order    int
	keywords []keywordMatcher
}

// Tagger scores text against a compiled dictionary.
type Tagger struct {
	themes        []compiledTheme
	minScore      float64
	maxTimestamps int
}

// Option adjusts a Tagger.
type Option func(*Tagger)

// WithMaxTimestamps sets how many cue timestamps TagCues keeps per theme.
func WithMaxTimestamps(n int) Option {
	return func(t *Tagger) {
		if n > 0 {
			t.maxTimestamps = n
		}
	}
}

// NewTagger compiles one case-insensitive whole-word matcher per keyword.
func NewTagger(dict Dictionary, minScore float64, opts ...Option) (*Tagger, error) {
	t := &Tagger{minScore: minScore, maxTimestamps: DefaultMaxTimestamps}
	for _, opt := range opts {
		opt(t)
	}
	for i, def := range dict.Themes {
		ct := compiledTheme{def: def, order: i}
		for _, kw := range def.Keywords {
			pattern, err := keywordPattern(kw)
			if err != nil {
				return nil, fmt.Errorf("theme %s keyword %q: %w", def.Name, kw, err)
			}
			ct.keywords = append(ct.keywords, keywordMatcher{keyword: kw, pattern: pattern})
		}
		t.themes = append(t.themes, ct)
	}
	return t, nil
}

func keywordPattern(keyword string) (*regexp.Regexp, error) {
	fields := strings.Fields(textutil.NFC(keyword))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty keyword")
	}
	for i, field := range fields {
		fields[i] = regexp.QuoteMeta(field)
	}
	return regexp.Compile(`(?i)` + strings.Join(fields, `\s+`))
}

// Tag scores text and returns themes at or above the minimum score, highest
// first. Ties keep dictionary order. No match returns an empty slice.
func (t *Tagger) Tag(text string) []Theme {
	text = textutil.NFC(text)
	out := []Theme{}
	order := map[string]int{}
	for _, ct := range t.themes {
		hits := 0
		for _, kw := range ct.keywords {
			hits += countWholeWord(kw.pattern, text)
		}
		score := float64(hits) * ct.def.Weight
		if hits == 0 || score < t.minScore {
			continue
		}
		order[ct.def.Name] = ct.order
		out = append(out, Theme{Tag: ct.def.Name, Label: ct.def.Label, Score: score, Hits: hits})
	}
	slices.SortStableFunc(out, func(a, b Theme) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return order[a.Tag] - order[b.Tag]
	})
	return out
}

// TagCues tags the joined cue text and records, per theme, the start of
// each cue where one of its keywords occurs, in cue order.
func (t *Tagger) TagCues(cues []captions.Cue) []Theme {
	tagged := t.Tag(captions.JoinText(cues))
	if len(tagged) == 0 {
		return tagged
	}
	byName := make(map[string]compiledTheme, len(t.themes))
	for _, ct := range t.themes {
		byName[ct.def.Name] = ct
	}
	for i := range tagged {
		ct := byName[tagged[i].Tag]
		for _, cue := range cues {
			if len(tagged[i].Timestamps) >= t.maxTimestamps {
				break
			}
			text := textutil.NFC(cue.Text)
			for _, kw := range ct.keywords {
				if countWholeWord(kw.pattern, text) > 0 {
					tagged[i].Timestamps = append(tagged[i].Timestamps, cue.Start.Seconds())
					break
				}
			}
		}
	}
	return tagged
}

// Primary returns the highest scoring theme.
func Primary(themes []Theme) (Theme, bool) {
	if len(themes) == 0 {
		return Theme{}, false
	}
	return themes[0], true
}

func countWholeWord(pattern *regexp.Regexp, text string) int {
	n := 0
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		if textutil.BoundaryBefore(text, loc[0]) && textutil.BoundaryAfter(text, loc[1]) {
			n++
		}
	}
	return n
}
