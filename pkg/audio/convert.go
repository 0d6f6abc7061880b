package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a segment.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "22050Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Converter converts segments to a target format. It logs the first format
// mismatch at debug level so that a backend with an unexpected native format
// is visible without flooding the log on every turn. It is safe for
// concurrent use.
type Converter struct {
	Target         Format
	warnedMismatch sync.Once
}

// Convert converts seg to the target format. If the source format already
// matches the target, seg is returned unchanged (zero allocation).
// Conversion order: downmix first, then resample (avoids resampling stereo
// when the target is mono).
func (c *Converter) Convert(seg *Segment) *Segment {
	if seg.SampleRate == c.Target.SampleRate && seg.Channels == c.Target.Channels {
		return seg
	}

	c.warnedMismatch.Do(func() {
		slog.Debug("audio format mismatch: converting",
			"from", formatString(seg.SampleRate, seg.Channels),
			"to", formatString(c.Target.SampleRate, c.Target.Channels),
		)
	})
	return Convert(seg, c.Target)
}

// Convert returns seg converted to format f. Only mono and stereo sources are
// supported; sources with more channels keep their first two channels.
func Convert(seg *Segment, f Format) *Segment {
	samples := seg.Samples
	channels := seg.Channels

	if channels > 2 {
		samples = firstTwoChannels(samples, channels)
		channels = 2
	}

	if channels != f.Channels {
		if channels == 2 && f.Channels == 1 {
			samples = StereoToMono(samples)
		} else if channels == 1 && f.Channels == 2 {
			samples = MonoToStereo(samples)
		}
		channels = f.Channels
	}

	if seg.SampleRate != f.SampleRate {
		samples = Resample(samples, channels, seg.SampleRate, f.SampleRate)
	}

	return &Segment{Samples: samples, SampleRate: f.SampleRate, Channels: channels}
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// StereoToMono averages L+R per stereo frame. Uses int32 arithmetic to
// prevent overflow.
func StereoToMono(stereo []int16) []int16 {
	frames := len(stereo) / 2
	out := make([]int16, frames)
	for i := range frames {
		avg := (int32(stereo[i*2]) + int32(stereo[i*2+1])) / 2
		out[i] = clamp16(avg)
	}
	return out
}

// Resample converts interleaved PCM with the given channel count from srcRate
// to dstRate using linear interpolation. If the rates are equal or either is
// non-positive, the input is returned unchanged.
func Resample(samples []int16, channels, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < channels {
		return samples
	}
	srcFrames := len(samples) / channels
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]int16, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for ch := range channels {
			s0 := float64(samples[srcIdx*channels+ch])
			s1 := float64(samples[next*channels+ch])
			out[i*channels+ch] = int16(s0*(1-frac) + s1*frac)
		}
	}
	return out
}

func firstTwoChannels(samples []int16, channels int) []int16 {
	frames := len(samples) / channels
	out := make([]int16, frames*2)
	for i := range frames {
		out[i*2] = samples[i*channels]
		out[i*2+1] = samples[i*channels+1]
	}
	return out
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
