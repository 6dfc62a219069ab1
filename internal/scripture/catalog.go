package scripture

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

//go:embed books.json
var booksJSON []byte

// ErrUnknownBook is returned when a code or variant names no catalog book.
var ErrUnknownBook = errors.New("unknown book")

// Testament groups books.
type Testament string

const (
	OldTestament Testament = "OT"
	NewTestament Testament = "NT"
)

// Book is one catalog entry.
type Book struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	English   string    `json:"english"`
	Testament Testament `json:"testament"`
	Chapters  int       `json:"chapters"`
	Variants  []string  `json:"variants"`
}

// Catalog indexes books by code and by variant.
type Catalog struct {
	books     []Book
	byCode    map[string]int
	byVariant map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded data is
// invalid, which would be a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadCatalog(booksJSON)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("scripture: embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

// LoadCatalog parses and validates catalog JSON.
func LoadCatalog(data []byte) (*Catalog, error) {
	var payload struct {
		Books []Book `json:"books"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(payload.Books) == 0 {
		return nil, errors.New("catalog has no books")
	}

	c := &Catalog{
		books:     payload.Books,
		byCode:    make(map[string]int, len(payload.Books)),
		byVariant: make(map[string]int),
	}
	for i, book := range c.books {
		if len(book.Code) != 3 {
			return nil, fmt.Errorf("book %q: code must be 3 characters", book.Code)
		}
		if book.Chapters <= 0 {
			return nil, fmt.Errorf("book %s: chapters must be positive", book.Code)
		}
		if len(book.Variants) == 0 {
			return nil, fmt.Errorf("book %s: no variants", book.Code)
		}
		if _, dup := c.byCode[book.Code]; dup {
			return nil, fmt.Errorf("book %s: duplicate code", book.Code)
		}
		c.byCode[book.Code] = i
		for j, variant := range book.Variants {
			variant = norm.NFC.String(strings.TrimSpace(variant))
			c.books[i].Variants[j] = variant
			key := variantKey(variant)
			if owner, dup := c.byVariant[key]; dup && owner != i {
				return nil, fmt.Errorf("variant %q claimed by %s and %s", variant, c.books[owner].Code, book.Code)
			}
			c.byVariant[key] = i
		}
	}
	return c, nil
}

func variantKey(s string) string {
	return strings.ToLower(norm.NFC.String(strings.Join(strings.Fields(s), " ")))
}

// Books returns the books in canonical order.
func (c *Catalog) Books() []Book {
	out := make([]Book, len(c.books))
	copy(out, c.books)
	return out
}

// Len returns the number of books.
func (c *Catalog) Len() int {
	return len(c.books)
}

// ByCode returns the book with the given code, ignoring case.
func (c *Catalog) ByCode(code string) (Book, bool) {
	idx, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Book{}, false
	}
	return c.books[idx], true
}

// Lookup resolves a textual variant such as "1 Coríntios" or "Jo",
// case-insensitively and with whitespace collapsed.
func (c *Catalog) Lookup(variant string) (Book, bool) {
	idx, ok := c.byVariant[variantKey(variant)]
	if !ok {
		return Book{}, false
	}
	return c.books[idx], true
}

// Variants returns every variant of every book.
func (c *Catalog) Variants() []string {
	var out []string
	for _, book := range c.books {
		out = append(out, book.Variants...)
	}
	return out
}

// Validate checks that ref names a known book and a chapter within range.
func (c *Catalog) Validate(ref Reference) error {
	book, ok := c.ByCode(ref.Code)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBook, ref.Code)
	}
	if ref.Chapter < 0 || ref.Chapter > book.Chapters {
		return fmt.Errorf("%s has %d chapters, got %d", book.Code, book.Chapters, ref.Chapter)
	}
	if ref.Chapter == 0 && (ref.VerseStart != 0 || ref.VerseEnd != 0) {
		return errors.New("verse given without chapter")
	}
	if ref.VerseStart < 0 || ref.VerseEnd < 0 {
		return errors.New("verse numbers must be positive")
	}
	if ref.VerseEnd != 0 && (ref.VerseStart == 0 || ref.VerseEnd < ref.VerseStart) {
		return fmt.Errorf("verse end %d precedes start %d", ref.VerseEnd, ref.VerseStart)
	}
	return nil
}
