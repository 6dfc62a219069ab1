package quality

// Tier buckets a confidence score.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Source names matching acquisition sources.
const (
	SourceAutoCaption   = "auto_caption"
	SourceTranscriptAPI = "transcript_api"
	SourceSpeechToText  = "speech_to_text"
)

// Policy holds the scoring table.
type Policy struct {
	Base map[string]float64

	NoisePenalty    float64
	NoisePenaltyCap float64

	ErrorPenaltyPerThousand float64
	ErrorPenaltyCap         float64

	ShortWords   int
	ShortPenalty float64
	LongWords    int
	LongBonus    float64

	HighDiversity    float64
	DiversityBonus   float64
	LowDiversity     float64
	DiversityPenalty float64

	HighThreshold   float64
	MediumThreshold float64
}

// DefaultPolicy returns the default scoring table.
func DefaultPolicy() Policy {
	return Policy{
		Base: map[string]float64{
			SourceAutoCaption:   0.60,
			SourceSpeechToText:  0.70,
			SourceTranscriptAPI: 0.80,
		},
		NoisePenalty:            0.02,
		NoisePenaltyCap:         0.15,
		ErrorPenaltyPerThousand: 0.01,
		ErrorPenaltyCap:         0.20,
		ShortWords:              200,
		ShortPenalty:            0.15,
		LongWords:               2000,
		LongBonus:               0.05,
		HighDiversity:           0.40,
		DiversityBonus:          0.05,
		LowDiversity:            0.15,
		DiversityPenalty:        0.10,
		HighThreshold:           0.75,
		MediumThreshold:         0.55,
	}
}

// WithBases returns a copy of p with the given source bases. Zero values
// keep the current base.
func (p Policy) WithBases(autoCaption, transcriptAPI, speechToText float64) Policy {
	base := make(map[string]float64, len(p.Base))
	for k, v := range p.Base {
		base[k] = v
	}
	for source, v := range map[string]float64{
		SourceAutoCaption:   autoCaption,
		SourceTranscriptAPI: transcriptAPI,
		SourceSpeechToText:  speechToText,
	} {
		if v > 0 {
			base[source] = v
		}
	}
	p.Base = base
	return p
}

// WithThresholds returns a copy of p with tier breakpoints. Zero values
// keep the current breakpoint.
func (p Policy) WithThresholds(high, medium float64) Policy {
	if high > 0 {
		p.HighThreshold = high
	}
	if medium > 0 {
		p.MediumThreshold = medium
	}
	return p
}

// TierFor maps a score to a tier.
func (p Policy) TierFor(score float64) Tier {
	switch {
	case score >= p.HighThreshold:
		return TierHigh
	case score >= p.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

func (p Policy) baseFor(source string) float64 {
	if v, ok := p.Base[source]; ok {
		return v
	}
	lowest := 0.0
	first := true
	for _, v := range p.Base {
		if first || v < lowest {
			lowest, first = v, false
		}
	}
	return lowest
}
