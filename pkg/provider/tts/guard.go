package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// Unavailable wraps err with [ErrBackendUnavailable] and the backend name.
// Errors that already wrap it are only prefixed.
func Unavailable(backend string, err error) error {
	if errors.Is(err, ErrBackendUnavailable) {
		return fmt.Errorf("%s: %w", backend, err)
	}
	return fmt.Errorf("%s: %w: %w", backend, ErrBackendUnavailable, err)
}

// Guard calls p.Synthesize and converts a panic into an error wrapping
// [ErrBackendUnavailable]. Errors returned by p that do not already wrap
// ErrBackendUnavailable are wrapped as well, as is a nil or empty-format
// segment. A segment without frames for non-blank text is rejected too.
func Guard(ctx context.Context, name string, p Provider, text string, voice types.VoiceCharacteristics) (seg *audio.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			seg = nil
			err = Unavailable(name, fmt.Errorf("panic: %v", r))
		}
	}()

	seg, err = p.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, Unavailable(name, err)
	}
	if seg == nil || seg.SampleRate <= 0 || seg.Channels <= 0 {
		return nil, Unavailable(name, errors.New("backend returned no audio"))
	}
	if seg.Frames() == 0 && strings.TrimSpace(text) != "" {
		return nil, Unavailable(name, errors.New("backend returned no audio"))
	}
	return seg, nil
}

// WithTempFile creates an empty temporary file in dir (the OS temp directory
// when dir is empty) using pattern, passes its path to fn and removes the file
// on every exit path, including a panic inside fn.
func WithTempFile(dir, pattern string, fn func(path string) error) error {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("tts: create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := f.Close(); err != nil {
		return fmt.Errorf("tts: close temp file: %w", err)
	}
	return fn(path)
}
