// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to hand controlled segments (or failures) to the fallback chain
// and to verify which text and voice characteristics reached each backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Segment: &audio.Segment{Samples: make([]int16, 22050), SampleRate: 22050, Channels: 1},
//	}
//	seg, _ := p.Synthesize(ctx, "Hello.", voice)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the VoiceCharacteristics passed to Synthesize.
	Voice types.VoiceCharacteristics
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Segment is cloned and returned by Synthesize when no error is configured.
	// A nil Segment yields one second of canonical-format silence.
	Segment *audio.Segment

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// PanicWith, if non-nil, makes Synthesize panic with this value.
	PanicWith any

	// BlockUntilDone makes Synthesize wait for ctx to be cancelled and return
	// ctx.Err(), simulating a hung engine.
	BlockUntilDone bool

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	seg, err, panicWith, block := p.Segment, p.SynthesizeErr, p.PanicWith, p.BlockUntilDone
	p.mu.Unlock()

	if panicWith != nil {
		panic(panicWith)
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return audio.Silence(time.Second, audio.Canonical), nil
	}
	return seg.Clone(), nil
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
