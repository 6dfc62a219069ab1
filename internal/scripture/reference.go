package scripture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Reference identifies a book, chapter, verse or verse range. Zero values
// mean "absent": Chapter 0 is the whole book and VerseStart 0 the whole
// chapter. VerseEnd is set only for ranges.
type Reference struct {
	Code       string
	Chapter    int
	VerseStart int
	VerseEnd   int
}

// FormatOSIS renders ref as {Code}[.{chapter}[.{verse}[-{end}]]].
func FormatOSIS(ref Reference) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(ref.Code))
	if ref.Chapter <= 0 {
		return b.String()
	}
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(ref.Chapter))
	if ref.VerseStart <= 0 {
		return b.String()
	}
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(ref.VerseStart))
	if ref.VerseEnd > ref.VerseStart {
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(ref.VerseEnd))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (r Reference) String() string {
	return FormatOSIS(r)
}

type osisGrammar struct {
	Code    string       `parser:"@Code"`
	Chapter *osisChapter `parser:"( '.' @@ )?"`
}

type osisChapter struct {
	Number int        `parser:"@Int"`
	Verse  *osisVerse `parser:"( '.' @@ )?"`
}

type osisVerse struct {
	Start int  `parser:"@Int"`
	End   *int `parser:"( '-' @Int )?"`
}

// Code precedes Int so numbered books such as 1CO lex as a single token.
var osisLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Code", Pattern: `[1-3][A-Z]{2}|[A-Z]{3}`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[.\-]`},
})

var osisParser = participle.MustBuild[osisGrammar](
	participle.Lexer(osisLexer),
)

// ParseOSIS parses a compact reference. The code is not checked against a
// catalog; use Catalog.Validate for that. A range whose end equals its start
// collapses to a single verse.
func ParseOSIS(s string) (Reference, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return Reference{}, fmt.Errorf("empty reference")
	}
	parsed, err := osisParser.ParseString("", trimmed)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference %q: %w", s, err)
	}

	ref := Reference{Code: parsed.Code}
	if parsed.Chapter == nil {
		return ref, nil
	}
	if parsed.Chapter.Number <= 0 {
		return Reference{}, fmt.Errorf("invalid reference %q: chapter must be positive", s)
	}
	ref.Chapter = parsed.Chapter.Number
	if parsed.Chapter.Verse == nil {
		return ref, nil
	}
	verse := parsed.Chapter.Verse
	if verse.Start <= 0 {
		return Reference{}, fmt.Errorf("invalid reference %q: verse must be positive", s)
	}
	ref.VerseStart = verse.Start
	if verse.End != nil {
		if *verse.End < verse.Start {
			return Reference{}, fmt.Errorf("invalid reference %q: range end precedes start", s)
		}
		if *verse.End > verse.Start {
			ref.VerseEnd = *verse.End
		}
	}
	return ref, nil
}

// ParseAndValidate parses s and checks it against the catalog.
func (c *Catalog) ParseAndValidate(s string) (Reference, error) {
	ref, err := ParseOSIS(s)
	if err != nil {
		return Reference{}, err
	}
	if err := c.Validate(ref); err != nil {
		return Reference{}, err
	}
	return ref, nil
}
