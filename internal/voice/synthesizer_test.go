package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/scriptcast/internal/observe"
	"github.com/MrWong99/scriptcast/internal/resilience"
	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/coqui"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/formant"
	ttsmock "github.com/MrWong99/scriptcast/pkg/provider/tts/mock"
	"github.com/MrWong99/scriptcast/pkg/types"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// turnCount returns the scriptcast.turns sum for the given source.
func turnCount(t *testing.T, reader *sdkmetric.ManualReader, source string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "scriptcast.turns" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("scriptcast.turns has data %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("source"); ok && v.AsString() == source {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func chainOf(t *testing.T, providers ...tts.Provider) *resilience.TTSFallback {
	t.Helper()
	names := []string{"local", "os", "cloud"}
	fb := resilience.NewTTSFallback(providers[0], names[0], resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	})
	for i, p := range providers[1:] {
		fb.AddFallback(names[i+1], p)
	}
	return fb
}

var sarahTurn = types.DialogueTurn{
	Speaker: "Sarah",
	Text:    "Welcome to the show.",
	Voice:   types.VoiceCharacteristics{Tone: types.ToneProfessional, Pace: types.PaceModerate},
}

func TestSynthesizeTurn_BackendSegmentIsCanonicalised(t *testing.T) {
	native := &audio.Segment{Samples: make([]int16, 2*24000), SampleRate: 24000, Channels: 2}
	for i := range native.Samples {
		native.Samples[i] = int16(i%200 - 100)
	}
	backend := &ttsmock.Provider{Segment: native}
	metrics, reader := newTestMetrics(t)

	s := NewSynthesizer(WithChain(chainOf(t, backend)), WithMetrics(metrics))
	seg, err := s.SynthesizeTurn(context.Background(), sarahTurn)
	if err != nil {
		t.Fatalf("SynthesizeTurn: %v", err)
	}

	if seg.Format() != audio.Canonical {
		t.Errorf("format = %s, want %s", seg.Format(), audio.Canonical)
	}
	if seg.Frames() != audio.CanonicalSampleRate {
		t.Errorf("frames = %d, want one second at 22050 Hz", seg.Frames())
	}
	if peak := audio.Peak(seg.Samples); peak > audio.FullScale || peak < audio.FullScale*98/100 {
		t.Errorf("peak = %d, want normalised just below full scale", peak)
	}
	if got := backend.SynthesizeCalls[0].Voice; got.Tone != types.ToneProfessional || got.Emphasis != types.DefaultEmphasis {
		t.Errorf("backend voice = %+v", got)
	}
	if n := turnCount(t, reader, observe.SourceBackend); n != 1 {
		t.Errorf("backend turns = %d, want 1", n)
	}
}

func TestSynthesizeTurn_FallsBackToSynthetic(t *testing.T) {
	failing := []*ttsmock.Provider{
		{SynthesizeErr: errors.New("piper: binary not found")},
		{PanicWith: "espeak crashed"},
		{SynthesizeErr: tts.Unavailable("gtts", errors.New("status 429"))},
	}
	metrics, reader := newTestMetrics(t)

	s := NewSynthesizer(
		WithChain(chainOf(t, failing[0], failing[1], failing[2])),
		WithMetrics(metrics),
	)
	seg, err := s.SynthesizeTurn(context.Background(), sarahTurn)
	if err != nil {
		t.Fatalf("SynthesizeTurn: %v", err)
	}
	for i, p := range failing {
		if p.CallCount() != 1 {
			t.Errorf("backend %d called %d times, want 1", i, p.CallCount())
		}
	}
	// Four words at half a second each.
	if seg.Duration() != 2*time.Second {
		t.Errorf("duration = %v, want 2s", seg.Duration())
	}
	if n := turnCount(t, reader, observe.SourceSynthetic); n != 1 {
		t.Errorf("synthetic turns = %d, want 1", n)
	}
}

func TestSynthesizeTurn_SilentBackendFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := audio.WriteWAVFile(path, &audio.Segment{SampleRate: audio.Canonical.SampleRate, Channels: 1}); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	headerOnly, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(headerOnly)
	}))
	defer srv.Close()

	backend, err := coqui.New(srv.URL)
	if err != nil {
		t.Fatalf("coqui.New: %v", err)
	}
	metrics, reader := newTestMetrics(t)
	s := NewSynthesizer(WithChain(chainOf(t, backend)), WithMetrics(metrics))

	seg, err := s.SynthesizeTurn(context.Background(), sarahTurn)
	if err != nil {
		t.Fatalf("SynthesizeTurn: %v", err)
	}
	if seg.Duration() != 2*time.Second {
		t.Errorf("duration = %v, want 2s", seg.Duration())
	}
	if n := turnCount(t, reader, observe.SourceSynthetic); n != 1 {
		t.Errorf("synthetic turns = %d, want 1", n)
	}
}

func TestSynthesizeTurn_NoChainUsesSynthetic(t *testing.T) {
	s := NewSynthesizer(WithSynthetic(formant.New(formant.WithSeed(7))))
	a, err := s.SynthesizeTurn(context.Background(), sarahTurn)
	if err != nil {
		t.Fatalf("SynthesizeTurn: %v", err)
	}
	b, err := s.SynthesizeTurn(context.Background(), sarahTurn)
	if err != nil {
		t.Fatalf("SynthesizeTurn: %v", err)
	}
	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a.Samples[i], b.Samples[i])
		}
	}
}

func TestSynthesizeTurn_EmptyTextSkipsChain(t *testing.T) {
	backend := &ttsmock.Provider{}
	s := NewSynthesizer(WithChain(chainOf(t, backend)))

	seg, err := s.SynthesizeTurn(context.Background(), types.DialogueTurn{Speaker: "Sarah", Text: "  "})
	if err != nil {
		t.Fatalf("SynthesizeTurn: %v", err)
	}
	if backend.CallCount() != 0 {
		t.Errorf("backend called %d times for empty text", backend.CallCount())
	}
	if seg.Duration() != formant.EmptyDuration {
		t.Errorf("duration = %v, want %v", seg.Duration(), formant.EmptyDuration)
	}
}

func TestSynthesizeTurn_MalformedTurn(t *testing.T) {
	tests := map[string]types.DialogueTurn{
		"missing speaker": {Text: "hello"},
		"unknown tone":    {Speaker: "Sarah", Text: "hello", Voice: types.VoiceCharacteristics{Tone: "sarcastic"}},
		"unknown pace":    {Speaker: "Sarah", Text: "hello", Voice: types.VoiceCharacteristics{Pace: "warp"}},
	}
	for name, turn := range tests {
		t.Run(name, func(t *testing.T) {
			backend := &ttsmock.Provider{}
			synthetic := &ttsmock.Provider{}
			s := NewSynthesizer(WithChain(chainOf(t, backend)), WithSynthetic(synthetic))

			_, err := s.SynthesizeTurn(context.Background(), turn)
			if !errors.Is(err, types.ErrMalformedTurn) {
				t.Fatalf("err = %v, want ErrMalformedTurn", err)
			}
			if backend.CallCount()+synthetic.CallCount() != 0 {
				t.Error("a backend was invoked for a malformed turn")
			}
			if s.Registry().Len() != 0 {
				t.Error("a profile was registered for a malformed turn")
			}
		})
	}
}

func TestSynthesizeTurn_SyntheticFault(t *testing.T) {
	tests := map[string]*ttsmock.Provider{
		"error": {SynthesizeErr: errors.New("out of memory")},
		"panic": {PanicWith: "index out of range"},
	}
	for name, synthetic := range tests {
		t.Run(name, func(t *testing.T) {
			backend := &ttsmock.Provider{SynthesizeErr: errors.New("down")}
			s := NewSynthesizer(WithChain(chainOf(t, backend)), WithSynthetic(synthetic))

			_, err := s.SynthesizeTurn(context.Background(), sarahTurn)
			if !errors.Is(err, ErrSynthesisFault) {
				t.Fatalf("err = %v, want ErrSynthesisFault", err)
			}
		})
	}
}

func TestSynthesizeTurn_UsesRegisteredProfile(t *testing.T) {
	backend := &ttsmock.Provider{}
	s := NewSynthesizer(WithChain(chainOf(t, backend)))

	first := sarahTurn
	second := sarahTurn
	second.Voice = types.VoiceCharacteristics{Tone: types.TonePassionate, Pace: types.PaceFast}

	for _, turn := range []types.DialogueTurn{first, second} {
		if _, err := s.SynthesizeTurn(context.Background(), turn); err != nil {
			t.Fatalf("SynthesizeTurn: %v", err)
		}
	}
	for i, c := range backend.SynthesizeCalls {
		if c.Voice.Tone != types.ToneProfessional || c.Voice.Pace != types.PaceModerate {
			t.Errorf("call %d voice = %+v, want the first registered profile", i, c.Voice)
		}
	}
}

func TestShape(t *testing.T) {
	seg := audio.Silence(time.Second, audio.Canonical)

	unchanged := Shape(seg, types.NewVoiceProfile("Sarah", types.VoiceCharacteristics{}))
	if unchanged != seg {
		t.Error("unit modifiers should return the segment untouched")
	}

	p := types.NewVoiceProfile("Sarah", types.VoiceCharacteristics{})
	p.SpeedModifier = 2
	faster := Shape(seg, p)
	if faster.Duration() != 500*time.Millisecond || faster.Format() != audio.Canonical {
		t.Errorf("speed 2: %v %s, want 500ms canonical", faster.Duration(), faster.Format())
	}

	p.SpeedModifier = 1
	p.PitchModifier = 0.5
	slower := Shape(seg, p)
	if slower.Duration() != 2*time.Second {
		t.Errorf("pitch 0.5: %v, want 2s", slower.Duration())
	}
}
