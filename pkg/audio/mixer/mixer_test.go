package mixer_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/audio/mixer"
)

// tone returns a canonical segment of d filled with a constant value so that
// parts can be told apart in the assembled track.
func tone(d time.Duration, value int16) *audio.Segment {
	seg := audio.Silence(d, audio.Canonical)
	for i := range seg.Samples {
		seg.Samples[i] = value
	}
	return seg
}

func TestAssemble_OrderAndPauses(t *testing.T) {
	a := mixer.New()
	parts := []mixer.Part{
		{Speaker: "A", Segment: tone(time.Second, 1000)},
		{Speaker: "B", Segment: tone(time.Second, 2000)},
		{Speaker: "A", Segment: tone(time.Second, 3000)},
	}

	seg, marks, err := a.AssembleWithMarks(parts)
	if err != nil {
		t.Fatalf("AssembleWithMarks: %v", err)
	}
	if got, want := seg.Duration(), 4*time.Second; got != want {
		t.Fatalf("duration = %v, want %v", got, want)
	}
	if len(marks) != 3 {
		t.Fatalf("got %d marks, want 3", len(marks))
	}

	wantStarts := []time.Duration{0, 1500 * time.Millisecond, 3 * time.Second}
	for i, m := range marks {
		if m.Speaker != parts[i].Speaker {
			t.Errorf("mark %d speaker = %q, want %q", i, m.Speaker, parts[i].Speaker)
		}
		if m.Start != wantStarts[i] {
			t.Errorf("mark %d start = %v, want %v", i, m.Start, wantStarts[i])
		}
		if m.End-m.Start != time.Second {
			t.Errorf("mark %d length = %v, want 1s", i, m.End-m.Start)
		}
	}

	// Normalisation scales every part by the same factor, so the ordering of
	// levels survives and the gaps stay silent.
	rate := audio.CanonicalSampleRate
	at := func(d time.Duration) int16 { return seg.Samples[int(d)*rate/int(time.Second)] }
	if !(at(500*time.Millisecond) < at(2*time.Second) && at(2*time.Second) < at(3500*time.Millisecond)) {
		t.Errorf("parts out of order: %d, %d, %d", at(500*time.Millisecond), at(2*time.Second), at(3500*time.Millisecond))
	}
	if at(1200*time.Millisecond) != 0 || at(2700*time.Millisecond) != 0 {
		t.Error("pauses between speakers should be silent")
	}
}

func TestAssemble_NoPauseForSameSpeaker(t *testing.T) {
	a := mixer.New()
	seg, err := a.Assemble([]mixer.Part{
		{Speaker: "A", Segment: tone(time.Second, 100)},
		{Speaker: "A", Segment: tone(time.Second, 100)},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if seg.Duration() != 2*time.Second {
		t.Errorf("duration = %v, want 2s", seg.Duration())
	}
}

func TestAssemble_SinglePartHasNoPause(t *testing.T) {
	seg, err := mixer.New().Assemble([]mixer.Part{{Speaker: "A", Segment: tone(time.Second, 100)}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if seg.Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", seg.Duration())
	}
}

func TestAssemble_CustomPause(t *testing.T) {
	a := mixer.New(mixer.WithPause(250 * time.Millisecond))
	seg, err := a.Assemble([]mixer.Part{
		{Speaker: "A", Segment: tone(time.Second, 100)},
		{Speaker: "B", Segment: tone(time.Second, 100)},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if want := 2250 * time.Millisecond; seg.Duration() != want {
		t.Errorf("duration = %v, want %v", seg.Duration(), want)
	}
}

func TestAssemble_Normalises(t *testing.T) {
	seg, err := mixer.New().Assemble([]mixer.Part{
		{Speaker: "A", Segment: tone(100*time.Millisecond, 500)},
		{Speaker: "B", Segment: tone(100*time.Millisecond, -8000)},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	peak := audio.Peak(seg.Samples)
	if peak < 32000 || peak > audio.FullScale {
		t.Errorf("peak = %d, want just below full scale", peak)
	}
}

func TestAssemble_InputsUntouched(t *testing.T) {
	in := tone(100*time.Millisecond, 500)
	if _, err := mixer.New().Assemble([]mixer.Part{{Speaker: "A", Segment: in}}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if in.Samples[0] != 500 {
		t.Errorf("input sample = %d, want 500", in.Samples[0])
	}
}

func TestAssemble_EmptyInput(t *testing.T) {
	if _, err := mixer.New().Assemble(nil); !errors.Is(err, mixer.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}

func TestAssemble_FormatMismatch(t *testing.T) {
	_, err := mixer.New().Assemble([]mixer.Part{
		{Speaker: "A", Segment: tone(100*time.Millisecond, 1)},
		{Speaker: "B", Segment: audio.Silence(100*time.Millisecond, audio.Format{SampleRate: 24000, Channels: 1})},
	})
	if !errors.Is(err, mixer.ErrFormatMismatch) {
		t.Errorf("err = %v, want ErrFormatMismatch", err)
	}
}

func TestAssemble_NilSegment(t *testing.T) {
	if _, err := mixer.New().Assemble([]mixer.Part{{Speaker: "A"}}); err == nil {
		t.Error("expected error for a part without a segment")
	}
}

func TestExport_WritesCanonicalWAV(t *testing.T) {
	a := mixer.New()
	seg, err := a.Assemble([]mixer.Part{
		{Speaker: "A", Segment: tone(300*time.Millisecond, 1000)},
		{Speaker: "B", Segment: tone(300*time.Millisecond, -1000)},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	dir := t.TempDir()
	path, err := a.Export(seg, filepath.Join(dir, "episode.wav"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("path %q is not absolute", path)
	}

	back, err := audio.ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if back.Format() != audio.Canonical {
		t.Errorf("format = %s, want %s", back.Format(), audio.Canonical)
	}
	if back.Frames() != seg.Frames() {
		t.Errorf("frames = %d, want %d", back.Frames(), seg.Frames())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir holds %d entries, want only the WAV", len(entries))
	}
}

func TestExport_FailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "episode.wav")
	if _, err := mixer.New().Export(tone(time.Second, 1), path); err == nil {
		t.Fatal("expected error for missing output directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("stat %s: %v, want not-exist", path, err)
	}
}
