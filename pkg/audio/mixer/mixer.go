// Package mixer assembles synthesized turns into one continuous track.
//
// Parts are concatenated in the order given. A short silence is inserted
// wherever the speaker changes, the whole track is peak-normalised once, and
// [Assembler.Export] writes it as a 16-bit PCM WAV file.
package mixer

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/MrWong99/scriptcast/pkg/audio"
)

// DefaultPause is the silence inserted between consecutive parts spoken by
// different speakers.
const DefaultPause = 500 * time.Millisecond

var (
	// ErrEmptyInput is returned when there is nothing to assemble.
	ErrEmptyInput = errors.New("mixer: no segments to assemble")

	// ErrFormatMismatch is returned when parts do not share one sample rate and
	// channel count.
	ErrFormatMismatch = errors.New("mixer: segment formats differ")
)

// Part is one speaker's synthesized contribution, in script order.
type Part struct {
	Speaker string
	Segment *audio.Segment
}

// Mark records where a part landed in the assembled track.
type Mark struct {
	Speaker string
	Start   time.Duration
	End     time.Duration
}

// Option configures an [Assembler].
type Option func(*Assembler)

// WithPause sets the silence inserted at speaker changes. Zero disables it;
// negative values are ignored.
func WithPause(d time.Duration) Option {
	return func(a *Assembler) {
		if d >= 0 {
			a.pause = d
		}
	}
}

// WithHeadroom sets how far below full scale, in dB, the final peak sits.
func WithHeadroom(db float64) Option {
	return func(a *Assembler) {
		if db >= 0 {
			a.headroomDB = db
		}
	}
}

// Assembler concatenates parts into one track. It holds no per-run state and
// is safe for concurrent use.
type Assembler struct {
	pause      time.Duration
	headroomDB float64
}

// New creates an [Assembler].
func New(opts ...Option) *Assembler {
	a := &Assembler{
		pause:      DefaultPause,
		headroomDB: audio.DefaultHeadroomDB,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Pause returns the configured inter-speaker pause.
func (a *Assembler) Pause() time.Duration {
	return a.pause
}

// Assemble concatenates parts in order and normalises the result. The input
// segments are not modified.
func (a *Assembler) Assemble(parts []Part) (*audio.Segment, error) {
	seg, _, err := a.AssembleWithMarks(parts)
	return seg, err
}

// AssembleWithMarks is like [Assembler.Assemble] and also reports the span
// each part occupies in the track.
func (a *Assembler) AssembleWithMarks(parts []Part) (*audio.Segment, []Mark, error) {
	if len(parts) == 0 {
		return nil, nil, ErrEmptyInput
	}
	for i, p := range parts {
		if p.Segment == nil {
			return nil, nil, fmt.Errorf("mixer: part %d (%s) has no segment", i, p.Speaker)
		}
	}

	format := parts[0].Segment.Format()
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, nil, fmt.Errorf("mixer: part 0 has invalid format %s", format)
	}
	pause := audio.Silence(a.pause, format)

	total := 0
	for i, p := range parts {
		if f := p.Segment.Format(); f != format {
			return nil, nil, fmt.Errorf("%w: part %d is %s, want %s", ErrFormatMismatch, i, f, format)
		}
		total += len(p.Segment.Samples)
		if i > 0 && p.Speaker != parts[i-1].Speaker {
			total += len(pause.Samples)
		}
	}

	out := &audio.Segment{
		Samples:    make([]int16, 0, total),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}
	marks := make([]Mark, 0, len(parts))
	for i, p := range parts {
		if i > 0 && p.Speaker != parts[i-1].Speaker {
			out.Samples = append(out.Samples, pause.Samples...)
		}
		start := out.Duration()
		out.Samples = append(out.Samples, p.Segment.Samples...)
		marks = append(marks, Mark{Speaker: p.Speaker, Start: start, End: out.Duration()})
	}

	audio.Normalize(out, a.headroomDB)
	return out, marks, nil
}

// Export writes seg to path as a 16-bit PCM WAV file and returns the absolute
// path. The file appears atomically; on failure nothing is left at path.
func (a *Assembler) Export(seg *audio.Segment, path string) (string, error) {
	if seg == nil {
		return "", ErrEmptyInput
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("mixer: resolve output path: %w", err)
	}
	if err := audio.WriteWAVFile(abs, seg); err != nil {
		return "", fmt.Errorf("mixer: export: %w", err)
	}
	return abs, nil
}
