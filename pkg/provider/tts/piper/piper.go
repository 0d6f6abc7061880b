// Package piper provides a local TTS provider that runs the Piper neural
// speech engine (https://github.com/rhasspy/piper) as a subprocess, one process
// per turn. It implements the tts.Provider interface.
//
// Piper writes a WAV file into a scoped temporary file that is decoded and
// removed before Synthesize returns. The voice variant derived from the turn's
// tone selects the ONNX model; the pace maps to Piper's --length_scale.
package piper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

const defaultBinary = "piper"

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Piper Provider.
type Option func(*Provider)

// WithBinary sets the Piper executable name or path. Defaults to "piper"
// resolved through PATH.
func WithBinary(path string) Option {
	return func(p *Provider) {
		p.binary = path
	}
}

// WithModels maps voice variants to model paths. A variant without an entry
// uses the default model passed to [New].
func WithModels(models map[tts.Variant]string) Option {
	return func(p *Provider) {
		for k, v := range models {
			if v != "" {
				p.models[k] = v
			}
		}
	}
}

// WithSpeaker selects a speaker id for multi-speaker models.
func WithSpeaker(id int) Option {
	return func(p *Provider) {
		p.speaker = id
	}
}

// WithTempDir sets the directory for Piper's temporary output files.
// Defaults to the OS temp directory.
func WithTempDir(dir string) Option {
	return func(p *Provider) {
		p.tempDir = dir
	}
}

// WithRunner replaces the subprocess runner.
func WithRunner(r tts.Runner) Option {
	return func(p *Provider) {
		p.run = r
	}
}

// Provider implements tts.Provider with the Piper CLI. It is safe for
// concurrent use; each call runs its own process.
type Provider struct {
	binary  string
	models  map[tts.Variant]string
	speaker int
	tempDir string
	run     tts.Runner
}

// New creates a Piper Provider using model as the default voice. model must be
// an existing .onnx file.
func New(model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("piper: model must not be empty")
	}
	p := &Provider{
		binary:  defaultBinary,
		models:  map[tts.Variant]string{tts.VariantDefault: model},
		speaker: -1,
		run:     tts.ExecRunner,
	}
	for _, o := range opts {
		o(p)
	}
	for v, m := range p.models {
		if _, err := os.Stat(m); err != nil {
			return nil, fmt.Errorf("piper: model for %s voice: %w", v, err)
		}
	}
	return p, nil
}

// Available reports whether the Piper binary can be found.
func (p *Provider) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// Synthesize runs Piper for text and decodes its WAV output. All failures wrap
// tts.ErrBackendUnavailable.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.Unavailable("piper", errors.New("empty text"))
	}

	var seg *audio.Segment
	err := tts.WithTempFile(p.tempDir, "piper-*.wav", func(path string) error {
		if _, err := p.run(ctx, text+"\n", p.binary, p.args(voice, path)...); err != nil {
			return err
		}
		var err error
		seg, err = audio.ReadWAVFile(path)
		return err
	})
	if err != nil {
		return nil, tts.Unavailable("piper", err)
	}
	if seg.Frames() == 0 {
		return nil, tts.Unavailable("piper", errors.New("engine produced no audio"))
	}
	return seg, nil
}

// args builds the Piper command line for one synthesis.
func (p *Provider) args(voice types.VoiceCharacteristics, outPath string) []string {
	args := []string{
		"--model", p.modelFor(tts.VariantFor(voice.Tone)),
		"--output_file", outPath,
		"--length_scale", strconv.FormatFloat(1/tts.SpeedFor(voice.Pace), 'f', 3, 64),
	}
	if p.speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}
	return args
}

func (p *Provider) modelFor(v tts.Variant) string {
	if m, ok := p.models[v]; ok {
		return m
	}
	return p.models[tts.VariantDefault]
}
