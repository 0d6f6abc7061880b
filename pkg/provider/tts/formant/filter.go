package formant

import "math"

// biquad is one second-order section in transposed direct form II. The a0
// coefficient is normalised to 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// butterworthLowpass returns the two sections of a 4th-order Butterworth
// low-pass filter with the cutoff given as a fraction of Nyquist (0 < wn < 1),
// designed with the bilinear transform.
func butterworthLowpass(wn float64) []biquad {
	k := math.Tan(math.Pi * wn / 2)
	qs := [2]float64{
		1 / (2 * math.Cos(math.Pi/8)),
		1 / (2 * math.Cos(3*math.Pi/8)),
	}
	sections := make([]biquad, 0, len(qs))
	for _, q := range qs {
		norm := 1 / (1 + k/q + k*k)
		b0 := k * k * norm
		sections = append(sections, biquad{
			b0: b0,
			b1: 2 * b0,
			b2: b0,
			a1: 2 * (k*k - 1) * norm,
			a2: (1 - k/q + k*k) * norm,
		})
	}
	return sections
}

// run filters x in place. The section state starts at the steady state for a
// constant input equal to x[0], which suppresses the start-up transient of a
// unity-DC-gain filter.
func (s biquad) run(x []float64) {
	if len(x) == 0 {
		return
	}
	z2 := (s.b2 - s.a2) * x[0]
	z1 := (s.b1-s.a1)*x[0] + z2
	for i, in := range x {
		out := s.b0*in + z1
		z1 = s.b1*in - s.a1*out + z2
		z2 = s.b2*in - s.a2*out
		x[i] = out
	}
}

// filtfilt applies the cascade forward and then backward, giving zero phase
// shift and twice the filter order in magnitude. The signal is padded at both
// ends with its odd reflection to reduce edge transients.
func filtfilt(sections []biquad, x []float64) []float64 {
	pad := min(filtfiltPadLen, len(x)-1)
	if pad < 0 {
		return x
	}
	n := len(x)
	ext := make([]float64, n+2*pad)
	for i := range pad {
		ext[i] = 2*x[0] - x[pad-i]
		ext[pad+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	for _, s := range sections {
		s.run(ext)
	}
	reverse(ext)
	for _, s := range sections {
		s.run(ext)
	}
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
