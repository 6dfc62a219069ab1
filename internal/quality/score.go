package quality

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"pulpit/internal/textutil"
)

var noiseMarkers = []string{
	"[inaudible]", "[inaudível]", "(inaudible)",
	"[música]", "[music]",
	"[aplausos]", "[applause]",
	"[risos]", "[laughter]",
	"???", "...",
}

// Factors records each scoring component.
type Factors struct {
	Base         float64 `json:"base"`
	Noise        float64 `json:"noise"`
	ErrorDensity float64 `json:"error_density"`
	Length       float64 `json:"length"`
	Diversity    float64 `json:"diversity"`
	UniqueRatio  float64 `json:"unique_ratio"`
	NoiseMarkers int     `json:"noise_markers"`
	ErrorHits    int     `json:"error_hits"`
	Raw          float64 `json:"raw"`
}

// Map flattens the factors for storage.
func (f Factors) Map() map[string]float64 {
	return map[string]float64{
		"base":          f.Base,
		"noise":         f.Noise,
		"error_density": f.ErrorDensity,
		"length":        f.Length,
		"diversity":     f.Diversity,
		"unique_ratio":  f.UniqueRatio,
		"noise_markers": float64(f.NoiseMarkers),
		"error_hits":    float64(f.ErrorHits),
		"raw":           f.Raw,
	}
}

// Assessment is the scored result.
type Assessment struct {
	Confidence float64
	Tier       Tier
	Factors    Factors
}

// Score assesses text with the default policy.
func Score(text, source string, wordCount int) Assessment {
	return DefaultPolicy().Score(text, source, wordCount)
}

// Score assesses text produced by source. A non-positive wordCount is
// recomputed from text.
func (p Policy) Score(text, source string, wordCount int) Assessment {
	text = textutil.NFC(text)
	if wordCount <= 0 {
		wordCount = textutil.WordCount(text)
	}
	tokens := normalizedTokens(text)

	f := Factors{Base: p.baseFor(source)}

	f.NoiseMarkers = countNoise(text)
	f.Noise = math.Min(float64(f.NoiseMarkers)*p.NoisePenalty, p.NoisePenaltyCap)

	f.ErrorHits = countCharRuns(text) + countShortRepeats(tokens) + countSoup(tokens)
	if wordCount > 0 {
		density := float64(f.ErrorHits) * 1000 / float64(wordCount)
		f.ErrorDensity = math.Min(density*p.ErrorPenaltyPerThousand, p.ErrorPenaltyCap)
	}

	switch {
	case wordCount < p.ShortWords:
		f.Length = -p.ShortPenalty
	case wordCount >= p.LongWords:
		f.Length = p.LongBonus
	}

	if len(tokens) > 0 {
		unique := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			unique[tok] = struct{}{}
		}
		f.UniqueRatio = float64(len(unique)) / float64(len(tokens))
		switch {
		case f.UniqueRatio >= p.HighDiversity:
			f.Diversity = p.DiversityBonus
		case f.UniqueRatio < p.LowDiversity:
			f.Diversity = -p.DiversityPenalty
		}
	}

	f.Raw = f.Base - f.Noise - f.ErrorDensity + f.Length + f.Diversity
	confidence := math.Round(math.Max(0, math.Min(1, f.Raw))*1000) / 1000
	return Assessment{Confidence: confidence, Tier: p.TierFor(confidence), Factors: f}
}

func countNoise(text string) int {
	lowered := strings.ToLower(text)
	n := 0
	for _, marker := range noiseMarkers {
		n += strings.Count(lowered, marker)
	}
	return n
}

// normalizedTokens lowercases words and trims surrounding punctuation.
func normalizedTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		tok := strings.TrimFunc(field, func(r rune) bool { return !textutil.IsWordRune(r) })
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// countCharRuns counts runs of four or more identical non-space runes.
func countCharRuns(text string) int {
	n := 0
	var prev rune = -1
	run := 0
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			run++
			if run == 4 {
				n++
			}
			continue
		}
		prev, run = r, 1
	}
	return n
}

// countShortRepeats counts runs where a word of at most three letters
// appears three or more times in a row.
func countShortRepeats(tokens []string) int {
	n := 0
	run := 1
	for i := 1; i < len(tokens); i++ {
		if tokens[i] == tokens[i-1] && utf8.RuneCountInString(tokens[i]) <= 3 {
			run++
			if run == 3 {
				n++
			}
			continue
		}
		run = 1
	}
	return n
}

// countSoup counts tokens that alternate between letters and digits at
// least twice, such as "a1b2" or "x9z".
func countSoup(tokens []string) int {
	n := 0
	for _, tok := range tokens {
		transitions := 0
		prevDigit, started := false, false
		for _, r := range tok {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				continue
			}
			digit := unicode.IsDigit(r)
			if started && digit != prevDigit {
				transitions++
			}
			prevDigit, started = digit, true
		}
		if transitions >= 2 {
			n++
		}
	}
	return n
}
