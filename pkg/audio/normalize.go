package audio

import "math"

// FullScale is the largest positive 16-bit sample value.
const FullScale = 32767

// DefaultHeadroomDB is the headroom left below full scale by [Normalize].
const DefaultHeadroomDB = 0.1

// Peak returns the largest absolute sample value in samples.
func Peak(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Normalize scales seg in place so that its peak sits headroomDB below full
// scale. Silent segments are left untouched. It returns seg for chaining.
func Normalize(seg *Segment, headroomDB float64) *Segment {
	peak := Peak(seg.Samples)
	if peak == 0 {
		return seg
	}
	target := float64(FullScale) * math.Pow(10, -headroomDB/20)
	Gain(seg.Samples, target/float64(peak))
	return seg
}

// Gain multiplies every sample by factor, rounding to nearest and clamping to
// the 16-bit range.
func Gain(samples []int16, factor float64) {
	for i, s := range samples {
		samples[i] = clamp16(int32(math.Round(float64(s) * factor)))
	}
}
