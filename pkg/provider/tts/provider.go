// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps one speech engine (a local Piper binary, the operating
// system's speech API, a cloud endpoint or the built-in formant generator) and
// presents a uniform batch interface: one call turns a single piece of text
// into one complete [audio.Segment].
//
// Providers report every failure as an error wrapping [ErrBackendUnavailable]
// so the fallback chain can treat all backends alike. Providers never panic
// across the interface boundary; see [Guard].
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// ErrBackendUnavailable is wrapped by every error a provider returns. The
// fallback chain absorbs it and moves on to the next backend.
var ErrBackendUnavailable = errors.New("tts: backend unavailable")

// Kind identifies the backend category that occupies a slot in the chain.
type Kind string

const (
	KindLocal     Kind = "local"
	KindOS        Kind = "os"
	KindCloud     Kind = "cloud"
	KindSynthetic Kind = "synthetic"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice characteristics and returns
	// the complete segment in the backend's native format. The caller converts
	// it to the canonical format.
	//
	// Empty text is valid input; a provider may either return a short segment
	// or an error wrapping ErrBackendUnavailable.
	//
	// Returns an error wrapping ErrBackendUnavailable if the engine is missing,
	// the request fails, the output cannot be decoded, or ctx is cancelled.
	Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error)
}
