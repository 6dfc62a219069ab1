// Package references finds scripture citations in transcript text.
//
// NewDetector compiles every catalog variant into one case-insensitive
// alternation, longest variant first so "1 João" wins over "João". Matches
// require a chapter and may carry a verse or verse range. Unicode letter
// boundaries are checked by hand on both sides because RE2's \b only knows
// ASCII. Each match is classified as a reading (announced by a cue such as
// "vamos ler"), a citation (has a verse) or a mention.
//
// Aggregate, Passages and Overlaps turn matches into statistics, persisted
// passages and range queries.
package references
