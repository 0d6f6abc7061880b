package voice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/scriptcast/internal/observe"
	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/formant"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// ErrSynthesisFault is returned when the synthetic generator itself fails. It
// is the only per-turn synthesis failure that reaches the caller.
var ErrSynthesisFault = errors.New("voice: synthesis fault")

// syntheticName labels the synthetic generator in logs and errors.
const syntheticName = "synthetic"

// SynthesizerOption configures a [Synthesizer].
type SynthesizerOption func(*Synthesizer)

// WithChain sets the real backend chain, usually a
// *resilience.TTSFallback. Without a chain every turn uses the synthetic
// generator.
func WithChain(p tts.Provider) SynthesizerOption {
	return func(s *Synthesizer) {
		s.chain = p
	}
}

// WithSynthetic replaces the synthetic generator. Defaults to formant.New().
func WithSynthetic(p tts.Provider) SynthesizerOption {
	return func(s *Synthesizer) {
		s.synthetic = p
	}
}

// WithRegistry shares a profile registry. Defaults to a fresh registry.
func WithRegistry(r *Registry) SynthesizerOption {
	return func(s *Synthesizer) {
		s.registry = r
	}
}

// WithMetrics sets the metric instruments. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) SynthesizerOption {
	return func(s *Synthesizer) {
		s.metrics = m
	}
}

// WithHeadroom sets the per-turn normalisation headroom in dB.
func WithHeadroom(db float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.headroom = db
	}
}

// Synthesizer renders single dialogue turns into canonical audio. Real
// backend failures are absorbed; only a synthetic generator failure is
// returned. It is safe for concurrent use as long as the configured providers
// are.
type Synthesizer struct {
	registry  *Registry
	chain     tts.Provider
	synthetic tts.Provider
	metrics   *observe.Metrics
	headroom  float64
	conv      *audio.Converter
}

// NewSynthesizer returns a Synthesizer configured by opts.
func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{headroom: audio.DefaultHeadroomDB}
	for _, o := range opts {
		o(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry(nil)
	}
	if s.synthetic == nil {
		s.synthetic = formant.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.conv = &audio.Converter{Target: audio.Canonical}
	return s
}

// Registry returns the profile registry used by the synthesizer.
func (s *Synthesizer) Registry() *Registry {
	return s.registry
}

// SynthesizeTurn validates turn, resolves the speaker's profile and returns
// a normalised canonical segment. Validation failures wrap
// [types.ErrMalformedTurn] and no backend is invoked.
func (s *Synthesizer) SynthesizeTurn(ctx context.Context, turn types.DialogueTurn) (*audio.Segment, error) {
	if err := turn.Validate(); err != nil {
		return nil, fmt.Errorf("voice: %w", err)
	}

	ctx, span := observe.StartSpan(ctx, "voice.SynthesizeTurn",
		trace.WithAttributes(attribute.String("speaker", turn.Speaker)),
	)
	defer span.End()

	profile := s.registry.RegisterOrGet(turn.Speaker, turn.Voice)

	seg, source, err := s.render(ctx, turn.Text, profile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("source", source))
	s.metrics.RecordTurn(ctx, source)

	seg = Shape(s.conv.Convert(seg), profile)
	return audio.Normalize(seg, s.headroom), nil
}

// render runs the backend chain and falls back to the synthetic generator.
// Text without any words goes straight to the synthetic generator, which
// renders it as a short near-silent segment.
func (s *Synthesizer) render(ctx context.Context, text string, profile types.VoiceProfile) (*audio.Segment, string, error) {
	voice := profile.Characteristics()
	log := observe.Logger(ctx).With("speaker", profile.Name)

	if s.chain != nil && strings.TrimSpace(text) != "" {
		seg, err := s.chain.Synthesize(ctx, text, voice)
		if err == nil && seg != nil {
			return seg, observe.SourceBackend, nil
		}
		log.Warn("voice: all speech backends failed, using synthetic voice", "err", err)
	}

	seg, err := tts.Guard(ctx, syntheticName, s.synthetic, text, voice)
	if err != nil {
		return nil, "", fmt.Errorf("%w: speaker %q: %w", ErrSynthesisFault, profile.Name, err)
	}
	return seg, observe.SourceSynthetic, nil
}

// Shape applies the profile's pitch and speed modifiers by rate-change
// resampling: a factor above 1 raises pitch and shortens the segment. A
// combined factor of 1 returns seg untouched.
func Shape(seg *audio.Segment, profile types.VoiceProfile) *audio.Segment {
	factor := profile.PitchModifier * profile.SpeedModifier
	if factor <= 0 || math.Abs(factor-1) < 1e-9 || len(seg.Samples) == 0 {
		return seg
	}
	src := int(math.Round(float64(seg.SampleRate) * factor))
	return &audio.Segment{
		Samples:    audio.Resample(seg.Samples, seg.Channels, src, seg.SampleRate),
		SampleRate: seg.SampleRate,
		Channels:   seg.Channels,
	}
}
