package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// DefaultBackendTimeout bounds a single backend call when no timeout is
// configured.
const DefaultBackendTimeout = 30 * time.Second

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// TTSFallback implements [tts.Provider] by trying a fixed, ordered list of
// speech backends. Each call runs through [tts.Guard] under its own timeout,
// so a hung or panicking backend costs at most one timeout per turn.
//
// When every backend fails the returned error wraps both [ErrAllFailed] and
// [tts.ErrBackendUnavailable]; callers decide what to do next.
type TTSFallback struct {
	group   *FallbackGroup[namedBackend]
	timeout time.Duration
}

// namedBackend carries the backend name into the call so errors and panics
// are attributed to it.
type namedBackend struct {
	name string
	tts.Provider
}

// TTSFallbackOption configures a [TTSFallback].
type TTSFallbackOption func(*TTSFallback)

// WithBackendTimeout sets the per-backend call timeout. Non-positive values
// keep [DefaultBackendTimeout].
func WithBackendTimeout(d time.Duration) TTSFallbackOption {
	return func(f *TTSFallback) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewTTSFallback creates a [TTSFallback] with primary as the first backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig, opts ...TTSFallbackOption) *TTSFallback {
	f := &TTSFallback{
		group:   NewFallbackGroup(namedBackend{primaryName, primary}, primaryName, cfg),
		timeout: DefaultBackendTimeout,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddFallback registers an additional backend after the existing ones.
func (f *TTSFallback) AddFallback(name string, p tts.Provider) {
	f.group.AddFallback(name, namedBackend{name, p})
}

// Breaker returns the circuit breaker of the named backend, or nil.
func (f *TTSFallback) Breaker(name string) *CircuitBreaker {
	return f.group.Breaker(name)
}

// Backends returns the backend names in the order they are tried.
func (f *TTSFallback) Backends() []string {
	return f.group.Names()
}

// Timeout returns the per-backend call timeout.
func (f *TTSFallback) Timeout() time.Duration {
	return f.timeout
}

// Synthesize implements [tts.Provider]. It returns the first segment produced
// by a backend, in that backend's native format.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	seg, err := ExecuteWithResult(f.group, func(b namedBackend) (*audio.Segment, error) {
		if err := ctx.Err(); err != nil {
			return nil, tts.Unavailable("chain", err)
		}
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		return tts.Guard(callCtx, b.name, b.Provider, text, voice)
	})
	if err != nil {
		return nil, tts.Unavailable("chain", err)
	}
	return seg, nil
}
