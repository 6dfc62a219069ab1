// Package textutil provides text helpers shared by the analysis packages.
//
// The primary use cases are:
//   - Unicode-aware word boundaries for whole-word matching (RE2 \b is ASCII only)
//   - Splitting transcripts into words for counting and segmentation
//   - Token fingerprints and cosine similarity for retrieval ranking
//   - Sanitizing identifiers for use in file and directory names
//
// Tokenization lowercases text, splits on anything that is not a letter,
// digit or combining mark, and drops tokens shorter than 3 runes.
package textutil
