package formant

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/types"
)

func synth(t *testing.T, p *Provider, text string, v types.VoiceCharacteristics) *audio.Segment {
	t.Helper()
	seg, err := p.Synthesize(context.Background(), text, v)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	return seg
}

func TestSynthesize_Deterministic(t *testing.T) {
	v := types.VoiceCharacteristics{Tone: types.ToneProfessional, Pace: types.PaceModerate}
	a := synth(t, New(), "Welcome to the show.", v)
	b := synth(t, New(), "Welcome to the show.", v)

	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a.Samples[i], b.Samples[i])
		}
	}
}

func TestSynthesize_SeedChangesNoise(t *testing.T) {
	v := types.VoiceCharacteristics{Tone: types.ToneNeutral}
	a := synth(t, New(WithSeed(1)), "hello there", v)
	b := synth(t, New(WithSeed(2)), "hello there", v)
	same := true
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical output")
	}
}

func TestSynthesize_DurationLaw(t *testing.T) {
	tests := []struct {
		text  string
		words int
	}{
		{"Welcome.", 1},
		{"Thanks Sarah.", 2},
		{"one two three four five six seven", 7},
		{"  spaced   out\twords \n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			seg := synth(t, New(), tt.text, types.VoiceCharacteristics{})
			want := time.Duration(float64(tt.words) * SecondsPerWord * float64(time.Second))
			slot := time.Duration(SecondsPerWord * float64(time.Second))
			if diff := seg.Duration() - want; diff < -slot || diff > slot {
				t.Errorf("duration = %v, want %v ± %v", seg.Duration(), want, slot)
			}
			if seg.SampleRate != SampleRate || seg.Channels != 1 {
				t.Errorf("format = %s, want 22050Hz mono", seg.Format())
			}
		})
	}
}

func TestSynthesize_EmptyTextIsShortSilence(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		seg := synth(t, New(), text, types.VoiceCharacteristics{})
		if seg.Duration() != EmptyDuration {
			t.Errorf("duration = %v, want %v", seg.Duration(), EmptyDuration)
		}
		if seg.Frames() == 0 {
			t.Error("expected a non-empty segment")
		}
		if audio.Peak(seg.Samples) != 0 {
			t.Error("expected silence")
		}
	}
}

func TestSynthesize_PeakAtSeventyPercent(t *testing.T) {
	for _, s := range []Smoothing{SmoothButterworth, SmoothMovingAverage} {
		t.Run(string(s), func(t *testing.T) {
			seg := synth(t, New(WithSmoothing(s)), "a short test sentence", types.VoiceCharacteristics{Tone: types.TonePassionate})
			want := int(math.Round(peakLevel * fullScale))
			if got := audio.Peak(seg.Samples); got < want-1 || got > want+1 {
				t.Errorf("peak = %d, want %d", got, want)
			}
		})
	}
}

func TestSynthesize_WordSlotsHaveTroughs(t *testing.T) {
	seg := synth(t, New(), "one two", types.VoiceCharacteristics{})
	slot := seg.Frames() / 2

	// Energy around the boundary between the words is far below the energy
	// in the middle of a word.
	rms := func(from, to int) float64 {
		var sum float64
		for _, s := range seg.Samples[from:to] {
			sum += float64(s) * float64(s)
		}
		return math.Sqrt(sum / float64(to-from))
	}
	edge := rms(slot-200, slot+200)
	mid := rms(slot/2-200, slot/2+200)
	if edge*4 > mid {
		t.Errorf("boundary rms %.1f not well below mid-word rms %.1f", edge, mid)
	}
}

func TestBaseFrequency(t *testing.T) {
	tests := []struct {
		tone types.Tone
		pace types.Pace
		want float64
	}{
		{types.ToneProfessional, types.PaceModerate, 180},
		{types.ToneAuthoritative, types.PaceModerate, 160},
		{types.ToneConversational, types.PaceModerate, 200},
		{types.ToneAnalytical, types.PaceModerate, 170},
		{types.TonePassionate, types.PaceModerate, 190},
		{types.ToneNeutral, types.PaceModerate, 175},
		{types.ToneProfessional, types.PaceSlow, 162},
		{types.ToneConversational, types.PaceFast, 220},
	}
	for _, tt := range tests {
		if got := BaseFrequency(tt.tone, tt.pace); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BaseFrequency(%s, %s) = %v, want %v", tt.tone, tt.pace, got, tt.want)
		}
	}
}

func TestButterworth_DCGainIsUnity(t *testing.T) {
	x := make([]float64, 2000)
	for i := range x {
		x[i] = 0.5
	}
	y := filtfilt(butterworthLowpass(cutoffNyquist), x)
	for i, v := range y {
		if math.Abs(v-0.5) > 1e-6 {
			t.Fatalf("y[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestButterworth_AttenuatesHighFrequencies(t *testing.T) {
	// A tone at 0.8 × Nyquist sits well inside the stop band.
	x := make([]float64, 4000)
	for i := range x {
		x[i] = math.Sin(math.Pi * 0.8 * float64(i))
	}
	y := filtfilt(butterworthLowpass(cutoffNyquist), x)
	var peak float64
	for _, v := range y[500:3500] {
		peak = max(peak, math.Abs(v))
	}
	if peak > 0.01 {
		t.Errorf("stop-band peak = %v, want < 0.01", peak)
	}
}

func TestMovingAverage_KeepsLength(t *testing.T) {
	got := movingAverage([]float64{3, 3, 3, 3}, 3)
	want := []float64{2, 3, 3, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
