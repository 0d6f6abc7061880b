package tts

import "github.com/MrWong99/scriptcast/pkg/types"

// Variant is an abstract voice flavour chosen from the turn's tone. Each
// adapter maps a variant onto one of its own voices.
type Variant string

const (
	VariantFormal  Variant = "formal"
	VariantWarm    Variant = "warm"
	VariantDefault Variant = "default"
)

// Speaking rates in words per minute.
const (
	RateSlow     = 120
	RateModerate = 150
	RateFast     = 180
)

// VariantFor maps a tone to its voice variant. Unknown and empty tones map to
// [VariantDefault].
func VariantFor(tone types.Tone) Variant {
	switch tone {
	case types.ToneProfessional, types.ToneAuthoritative, types.ToneAnalytical:
		return VariantFormal
	case types.ToneConversational, types.TonePassionate:
		return VariantWarm
	default:
		return VariantDefault
	}
}

// RateFor maps a pace to a speaking rate in words per minute. Unknown and
// empty paces map to [RateModerate].
func RateFor(pace types.Pace) int {
	switch pace {
	case types.PaceSlow:
		return RateSlow
	case types.PaceFast:
		return RateFast
	default:
		return RateModerate
	}
}

// SpeedFor returns the pace as a multiplier of the moderate rate
// (0.8, 1.0 or 1.2).
func SpeedFor(pace types.Pace) float64 {
	return float64(RateFor(pace)) / RateModerate
}
