// Package scripture holds the Bible book catalog and the compact reference
// format used to store and query passages.
//
// The catalog is data: 66 books with a canonical Portuguese name, an English
// name, a fixed-width three character code, testament, chapter count and an
// ordered list of textual variants (accented and unaccented Portuguese,
// English, abbreviations and numeral forms such as "1", "I", "Primeira" and
// "First"). It is embedded from books.json and loaded once.
//
// References are written as {Code}[.{chapter}[.{verse}[-{end}]]], for
// example JHN.3.16 or 1CO.13.4-7. FormatOSIS and ParseOSIS round-trip every
// valid reference.
package scripture
