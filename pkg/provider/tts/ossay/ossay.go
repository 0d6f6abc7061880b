// Package ossay provides a TTS provider backed by the operating system's
// built-in speech engine. It implements the tts.Provider interface.
//
// The engine is chosen by platform:
//
//   - linux: espeak-ng (or espeak) writing a WAV file via -w
//   - darwin: the say command writing 16-bit little-endian WAV via -o
//   - windows: System.Speech (SAPI) driven through PowerShell
//
// Each engine writes into a scoped temporary WAV file that is decoded and
// removed before Synthesize returns. Text is always passed on stdin, never on
// the command line.
package ossay

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// Platform identifies an OS speech engine.
type Platform string

const (
	PlatformESpeak  Platform = "espeak"
	PlatformMacSay  Platform = "say"
	PlatformWinSAPI Platform = "sapi"
)

// PlatformFor returns the speech engine used on the given GOOS value.
func PlatformFor(goos string) (Platform, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return PlatformESpeak, nil
	case "darwin":
		return PlatformMacSay, nil
	case "windows":
		return PlatformWinSAPI, nil
	}
	return "", fmt.Errorf("ossay: no speech engine for %s", goos)
}

// defaultVoices holds the per-platform voice for each variant. SAPI entries
// are gender hints passed to SelectVoiceByHints.
var defaultVoices = map[Platform]map[tts.Variant]string{
	PlatformESpeak: {
		tts.VariantFormal:  "en-us+m3",
		tts.VariantWarm:    "en-us+f2",
		tts.VariantDefault: "en-us",
	},
	PlatformMacSay: {
		tts.VariantFormal:  "Daniel",
		tts.VariantWarm:    "Samantha",
		tts.VariantDefault: "Alex",
	},
	PlatformWinSAPI: {
		tts.VariantFormal:  "Male",
		tts.VariantWarm:    "Female",
		tts.VariantDefault: "NotSet",
	},
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithPlatform forces a speech engine instead of detecting it from the OS.
func WithPlatform(pl Platform) Option {
	return func(p *Provider) {
		p.platform = pl
	}
}

// WithBinary overrides the engine executable (espeak-ng, say or powershell).
func WithBinary(path string) Option {
	return func(p *Provider) {
		p.binary = path
	}
}

// WithVoices overrides the engine voice for one or more variants.
func WithVoices(voices map[tts.Variant]string) Option {
	return func(p *Provider) {
		p.overrides = voices
	}
}

// WithTempDir sets the directory for temporary output files.
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

// Provider implements tts.Provider with the OS speech engine. It is safe for
// concurrent use.
type Provider struct {
	platform  Platform
	binary    string
	voices    map[tts.Variant]string
	overrides map[tts.Variant]string
	tempDir   string
	run       tts.Runner
}

// New creates a Provider for the current OS. It fails when the platform has no
// supported engine; it does not check that the engine is installed (see
// [Provider.Available]).
func New(opts ...Option) (*Provider, error) {
	p := &Provider{run: tts.ExecRunner}
	for _, o := range opts {
		o(p)
	}
	if p.platform == "" {
		pl, err := PlatformFor(runtime.GOOS)
		if err != nil {
			return nil, err
		}
		p.platform = pl
	}
	base, ok := defaultVoices[p.platform]
	if !ok {
		return nil, fmt.Errorf("ossay: unknown platform %q", p.platform)
	}
	p.voices = make(map[tts.Variant]string, len(base))
	for k, v := range base {
		p.voices[k] = v
	}
	for k, v := range p.overrides {
		if v != "" {
			p.voices[k] = v
		}
	}
	if p.binary == "" {
		p.binary = p.defaultBinary()
	}
	return p, nil
}

// Platform returns the engine in use.
func (p *Provider) Platform() Platform { return p.platform }

// Available reports whether the engine executable can be found.
func (p *Provider) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

func (p *Provider) defaultBinary() string {
	switch p.platform {
	case PlatformMacSay:
		return "say"
	case PlatformWinSAPI:
		return "powershell"
	default:
		if _, err := exec.LookPath("espeak-ng"); err != nil {
			if _, err := exec.LookPath("espeak"); err == nil {
				return "espeak"
			}
		}
		return "espeak-ng"
	}
}

// Synthesize renders text with the OS engine. All failures wrap
// tts.ErrBackendUnavailable.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.Unavailable("ossay", errors.New("empty text"))
	}

	var seg *audio.Segment
	err := tts.WithTempFile(p.tempDir, "ossay-*.wav", func(path string) error {
		if _, err := p.run(ctx, text, p.binary, p.args(voice, path)...); err != nil {
			return err
		}
		var err error
		seg, err = audio.ReadWAVFile(path)
		return err
	})
	if err != nil {
		return nil, tts.Unavailable("ossay", err)
	}
	if seg.Frames() == 0 {
		return nil, tts.Unavailable("ossay", errors.New("engine produced no audio"))
	}
	return seg, nil
}

// args builds the engine command line writing to outPath.
func (p *Provider) args(voice types.VoiceCharacteristics, outPath string) []string {
	name := p.voiceFor(tts.VariantFor(voice.Tone))
	switch p.platform {
	case PlatformMacSay:
		return []string{
			"-v", name,
			"-r", strconv.Itoa(tts.RateFor(voice.Pace)),
			"-o", outPath,
			"--file-format=WAVE",
			"--data-format=LEI16@" + strconv.Itoa(audio.CanonicalSampleRate),
			"-f", "-",
		}
	case PlatformWinSAPI:
		return []string{
			"-NoProfile", "-NonInteractive", "-Command",
			sapiScript(name, SAPIRate(voice.Pace), outPath),
		}
	default:
		return []string{
			"-v", name,
			"-s", strconv.Itoa(tts.RateFor(voice.Pace)),
			"-w", outPath,
			"--stdin",
		}
	}
}

func (p *Provider) voiceFor(v tts.Variant) string {
	if name, ok := p.voices[v]; ok {
		return name
	}
	return p.voices[tts.VariantDefault]
}

// SAPIRate maps a pace to the SpeechSynthesizer.Rate scale (-10..10).
func SAPIRate(pace types.Pace) int {
	switch pace {
	case types.PaceSlow:
		return -2
	case types.PaceFast:
		return 2
	default:
		return 0
	}
}

// sapiScript returns the PowerShell program that reads text from stdin and
// speaks it into outPath.
func sapiScript(gender string, rate int, outPath string) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$t = [Console]::In.ReadToEnd(); ")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	if gender != "" && gender != "NotSet" {
		fmt.Fprintf(&b, "$s.SelectVoiceByHints([System.Speech.Synthesis.VoiceGender]::%s); ", gender)
	}
	fmt.Fprintf(&b, "$s.Rate = %d; ", rate)
	fmt.Fprintf(&b, "$s.SetOutputToWaveFile(%s); ", psQuote(outPath))
	b.WriteString("$s.Speak($t); $s.Dispose()")
	return b.String()
}

// psQuote returns s as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
