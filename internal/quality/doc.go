// Package quality estimates transcript confidence from heuristics.
//
// A score starts from a per-source base, loses points for noise markers
// and error patterns, and moves up or down with transcript length and
// lexical diversity. The result is clamped to [0, 1] and mapped to a tier.
// Scoring is pure; the same input always yields the same assessment.
package quality
