// Package captions parses caption tracks and cleans their text.
//
// WebVTT and YouTube srv3/timedtext XML are supported. Cleaning strips
// inline markup, decodes entities, normalizes to NFC, removes bracketed
// sound annotations such as [música], drops glyphs outside letters,
// marks, numbers, punctuation and separators, and collapses the rolling
// repetition of automatic captions where each line repeats the previous.
package captions
