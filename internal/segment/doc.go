// Package segment splits transcripts into word-bounded chunks that end on
// natural boundaries where possible.
//
// Boundaries rank paragraph breaks above sentence ends above clause
// punctuation. Each split is taken inside a window of [min, max] words
// from the current cursor, preferring the strongest boundary closest to
// the target length. Without any boundary the split is forced at the
// target. Segment word ranges are contiguous and cover the whole text.
package segment
