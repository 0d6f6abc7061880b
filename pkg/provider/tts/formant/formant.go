// Package formant provides a synthetic-signal TTS provider that renders text
// as a deterministic, speech-like tone pattern.
//
// It is the terminal backend of the fallback chain: it needs no engine,
// network or model, and never fails. The output does not carry the words; it
// carries their rhythm (one enveloped slot per word) and a pitch that tracks
// the requested tone and pace, so a listener can still tell speakers apart.
//
// Output is mono signed 16-bit PCM at 22050 Hz. For a fixed seed the same
// (text, tone, pace) always yields bit-identical samples.
package formant

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

const (
	// SampleRate is the native output rate of the generator.
	SampleRate = audio.CanonicalSampleRate

	// SecondsPerWord is the duration allotted to each word of input text.
	SecondsPerWord = 0.5

	// EmptyDuration is the length of the silent segment returned for empty text.
	EmptyDuration = 100 * time.Millisecond

	// DefaultSeed seeds the noise generator when no seed is configured.
	DefaultSeed int64 = 42

	vibratoHz      = 5.0
	vibratoDepth   = 0.1
	noiseSigma     = 0.02
	peakLevel      = 0.7
	cutoffNyquist  = 0.3
	fullScale      = 32767.0
	movingAvgTaps  = 3
	filtfiltPadLen = 15
)

// Smoothing selects the low-pass stage applied after noise is added.
type Smoothing string

const (
	// SmoothButterworth applies a 4th-order Butterworth low-pass at 0.3 ×
	// Nyquist, forward and backward for zero phase shift.
	SmoothButterworth Smoothing = "butterworth"

	// SmoothMovingAverage applies a centred 3-tap moving average.
	SmoothMovingAverage Smoothing = "moving_average"
)

// formants lists the components as (multiple of base frequency, amplitude).
var formants = [...]struct{ mult, amp float64 }{
	{1.0, 0.3},
	{2.5, 0.2},
	{4.0, 0.15},
	{6.0, 0.1},
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSeed sets the noise generator seed.
func WithSeed(seed int64) Option {
	return func(p *Provider) { p.seed = seed }
}

// WithSmoothing selects the low-pass stage. Unknown values fall back to
// [SmoothButterworth].
func WithSmoothing(s Smoothing) Option {
	return func(p *Provider) { p.smoothing = s }
}

// Provider implements tts.Provider with the formant generator. It holds no
// mutable state and is safe for concurrent use.
type Provider struct {
	seed      int64
	smoothing Smoothing
}

// New creates a new formant Provider.
func New(opts ...Option) *Provider {
	p := &Provider{seed: DefaultSeed, smoothing: SmoothButterworth}
	for _, o := range opts {
		o(p)
	}
	if p.smoothing != SmoothMovingAverage {
		p.smoothing = SmoothButterworth
	}
	return p
}

// BaseFrequency returns the fundamental frequency in Hz for the given tone and
// pace.
func BaseFrequency(tone types.Tone, pace types.Pace) float64 {
	var f float64
	switch tone {
	case types.ToneProfessional:
		f = 180
	case types.ToneAuthoritative:
		f = 160
	case types.ToneConversational:
		f = 200
	case types.ToneAnalytical:
		f = 170
	case types.TonePassionate:
		f = 190
	default:
		f = 175
	}
	switch pace {
	case types.PaceSlow:
		f *= 0.9
	case types.PaceFast:
		f *= 1.1
	}
	return f
}

// Synthesize renders text as a formant pattern. It never returns an error.
func (p *Provider) Synthesize(_ context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		return audio.Silence(EmptyDuration, audio.Canonical), nil
	}
	voice = voice.Normalized()

	n := int(float64(words) * SecondsPerWord * SampleRate)
	signal := make([]float64, n)

	base := BaseFrequency(voice.Tone, voice.Pace)
	for i := range signal {
		t := float64(i) / SampleRate
		mod := 1 + vibratoDepth*math.Sin(2*math.Pi*vibratoHz*t)
		var v float64
		for _, f := range formants {
			v += f.amp * math.Sin(2*math.Pi*base*f.mult*t*mod)
		}
		signal[i] = v
	}

	applyEnvelope(signal, words)

	rng := rand.New(rand.NewPCG(uint64(p.seed), uint64(p.seed)))
	for i := range signal {
		signal[i] += rng.NormFloat64() * noiseSigma
	}

	switch p.smoothing {
	case SmoothMovingAverage:
		signal = movingAverage(signal, movingAvgTaps)
	default:
		signal = filtfilt(butterworthLowpass(cutoffNyquist), signal)
	}

	return &audio.Segment{
		Samples:    quantize(signal, peakLevel),
		SampleRate: SampleRate,
		Channels:   1,
	}, nil
}

// applyEnvelope divides signal into words equal slots and shapes each with a
// linear attack over the first quarter, a flat middle half and a linear decay
// over the last quarter.
func applyEnvelope(signal []float64, words int) {
	slot := len(signal) / words
	if slot == 0 {
		return
	}
	quarter := slot / 4
	for w := range words {
		start := w * slot
		end := start + slot
		if w == words-1 {
			end = len(signal)
		}
		length := end - start
		for j := range length {
			var g float64
			switch {
			case quarter > 0 && j < quarter:
				g = float64(j) / float64(quarter)
			case quarter > 0 && j >= length-quarter:
				g = float64(length-1-j) / float64(quarter)
			default:
				g = 1
			}
			signal[start+j] *= g
		}
	}
}

// quantize scales signal so its peak sits at level × full scale and converts
// it to int16.
func quantize(signal []float64, level float64) []int16 {
	var peak float64
	for _, v := range signal {
		peak = max(peak, math.Abs(v))
	}
	out := make([]int16, len(signal))
	if peak == 0 {
		return out
	}
	gain := level * fullScale / peak
	for i, v := range signal {
		out[i] = int16(math.Round(v * gain))
	}
	return out
}

// movingAverage convolves x with a box kernel of the given width, keeping the
// input length and treating samples beyond either edge as zero.
func movingAverage(x []float64, taps int) []float64 {
	out := make([]float64, len(x))
	half := taps / 2
	for i := range x {
		var sum float64
		for k := i - half; k <= i+half; k++ {
			if k >= 0 && k < len(x) {
				sum += x[k]
			}
		}
		out[i] = sum / float64(taps)
	}
	return out
}
