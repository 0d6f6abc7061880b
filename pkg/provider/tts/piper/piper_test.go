package piper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// touch creates an empty file standing in for an ONNX model.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// argValue returns the value following flag in args.
func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

type call struct {
	stdin string
	name  string
	args  []string
}

// fakePiper returns a runner that records the call and writes a 22050 Hz WAV
// of the given length to the --output_file path.
func fakePiper(calls *[]call, frames int) tts.Runner {
	return func(_ context.Context, stdin, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, call{stdin: stdin, name: name, args: args})
		seg := &audio.Segment{Samples: make([]int16, frames), SampleRate: 22050, Channels: 1}
		for i := range seg.Samples {
			seg.Samples[i] = int16(i % 100)
		}
		return nil, audio.WriteWAVFile(argValue(args, "--output_file"), seg)
	}
}

func TestSynthesize_BuildsCommandAndDecodes(t *testing.T) {
	dir := t.TempDir()
	def := touch(t, dir, "default.onnx")
	formal := touch(t, dir, "formal.onnx")

	var calls []call
	p, err := New(def,
		WithModels(map[tts.Variant]string{tts.VariantFormal: formal}),
		WithBinary("/opt/piper/piper"),
		WithTempDir(dir),
		WithRunner(fakePiper(&calls, 11025)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seg, err := p.Synthesize(context.Background(), "Welcome.", types.VoiceCharacteristics{
		Tone: types.ToneProfessional,
		Pace: types.PaceSlow,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if seg.Frames() != 11025 || seg.SampleRate != 22050 {
		t.Errorf("segment = %d frames at %d Hz, want 11025 at 22050", seg.Frames(), seg.SampleRate)
	}

	if len(calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(calls))
	}
	c := calls[0]
	if c.name != "/opt/piper/piper" {
		t.Errorf("binary = %q", c.name)
	}
	if c.stdin != "Welcome.\n" {
		t.Errorf("stdin = %q", c.stdin)
	}
	if got := argValue(c.args, "--model"); got != formal {
		t.Errorf("--model = %q, want the formal model", got)
	}
	if got := argValue(c.args, "--length_scale"); got != "1.250" {
		t.Errorf("--length_scale = %q, want 1.250 for a slow pace", got)
	}
	if slices.Contains(c.args, "--speaker") {
		t.Error("unexpected --speaker for a single-speaker model")
	}

	// The scoped output file is gone.
	if _, err := os.Stat(argValue(c.args, "--output_file")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp output still present: %v", err)
	}
}

func TestSynthesize_FallsBackToDefaultModel(t *testing.T) {
	dir := t.TempDir()
	def := touch(t, dir, "default.onnx")

	var calls []call
	p, err := New(def, WithSpeaker(3), WithTempDir(dir), WithRunner(fakePiper(&calls, 100)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", types.VoiceCharacteristics{Tone: types.TonePassionate}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := argValue(calls[0].args, "--model"); got != def {
		t.Errorf("--model = %q, want the default model", got)
	}
	if got := argValue(calls[0].args, "--speaker"); got != "3" {
		t.Errorf("--speaker = %q, want 3", got)
	}
}

func TestSynthesize_EngineFailureRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	def := touch(t, dir, "default.onnx")

	var outPath string
	failing := func(_ context.Context, _, _ string, args ...string) ([]byte, error) {
		outPath = argValue(args, "--output_file")
		return nil, errors.New("exit status 1: model load failed")
	}
	p, err := New(def, WithTempDir(dir), WithRunner(failing))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Synthesize(context.Background(), "hello", types.VoiceCharacteristics{})
	if !errors.Is(err, tts.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
	if _, err := os.Stat(outPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp output still present: %v", err)
	}
}

func TestSynthesize_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	var calls []call
	p, err := New(touch(t, dir, "m.onnx"), WithTempDir(dir), WithRunner(fakePiper(&calls, 0)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hello", types.VoiceCharacteristics{}); !errors.Is(err, tts.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Error("expected error for a missing model file")
	}
}

func TestAvailable_MissingBinary(t *testing.T) {
	p, err := New(touch(t, t.TempDir(), "m.onnx"), WithBinary("definitely-not-a-real-piper-binary"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Available() {
		t.Error("Available() = true for a missing binary")
	}
}
