// Package audio defines the in-memory PCM segment type and the conversion,
// normalisation and WAV container helpers shared by backend adapters, the turn
// synthesizer and the assembler.
//
// All PCM handled by this package is signed 16-bit. Multi-channel samples are
// interleaved (L, R, L, R, ...).
package audio

import (
	"encoding/binary"
	"time"
)

const (
	// CanonicalSampleRate is the sample rate every segment is converted to
	// before it enters the assembler, and the rate of the exported track.
	CanonicalSampleRate = 22050

	// CanonicalChannels is the channel count of the exported track (mono).
	CanonicalChannels = 1

	// BitDepth is the only sample width handled by this package.
	BitDepth = 16
)

// Canonical is the [Format] of every segment handed to the assembler.
var Canonical = Format{SampleRate: CanonicalSampleRate, Channels: CanonicalChannels}

// Segment is an in-memory buffer of PCM samples. A segment is owned by the
// component that produced it until it is handed to the next stage; callers
// must not mutate a segment they have passed on.
type Segment struct {
	// Samples holds interleaved signed 16-bit PCM.
	Samples []int16

	// SampleRate in Hz (e.g., 22050 for the canonical format, 24000 for OpenAI).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Format returns the segment's sample rate and channel count.
func (s *Segment) Format() Format {
	return Format{SampleRate: s.SampleRate, Channels: s.Channels}
}

// Frames returns the number of sample frames (samples per channel).
func (s *Segment) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// Duration returns the playback length of the segment.
func (s *Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Clone returns a deep copy of s.
func (s *Segment) Clone() *Segment {
	out := *s
	out.Samples = make([]int16, len(s.Samples))
	copy(out.Samples, s.Samples)
	return &out
}

// Bytes returns the samples as little-endian PCM bytes.
func (s *Segment) Bytes() []byte {
	buf := make([]byte, len(s.Samples)*2)
	for i, v := range s.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// FromPCM16 builds a segment from little-endian signed 16-bit PCM bytes.
// A trailing odd byte is dropped.
func FromPCM16(pcm []byte, sampleRate, channels int) *Segment {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return &Segment{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Silence returns a segment of d worth of zero samples in format f.
func Silence(d time.Duration, f Format) *Segment {
	frames := int(d * time.Duration(f.SampleRate) / time.Second)
	if frames < 0 {
		frames = 0
	}
	return &Segment{
		Samples:    make([]int16, frames*f.Channels),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
	}
}
