// Package themes tags transcripts with sermon themes from a keyword
// dictionary.
//
// The dictionary is YAML. An embedded default covers twelve themes with
// Portuguese and English keywords; a custom file replaces it entirely.
// Scores are the sum of keyword hits times the theme weight, and only
// themes at or above the tagger minimum are returned.
package themes
