package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

// ErrInvalidWAV is returned when a byte stream is not a decodable PCM WAV file.
var ErrInvalidWAV = errors.New("audio: invalid WAV data")

// DecodeWAV reads a PCM WAV container from r and returns its samples as a
// 16-bit [Segment]. 8-, 24- and 32-bit integer sources are rescaled to 16 bits.
func DecodeWAV(r io.ReadSeeker) (*Segment, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode WAV: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, ErrInvalidWAV
	}

	depth := int(dec.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = to16(v, depth)
	}
	return &Segment{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// DecodeWAVBytes is a convenience wrapper around [DecodeWAV] for in-memory data.
func DecodeWAVBytes(data []byte) (*Segment, error) {
	return DecodeWAV(bytes.NewReader(data))
}

// ReadWAVFile opens and decodes the WAV file at path.
func ReadWAVFile(path string) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// EncodeWAV writes seg to w as a 16-bit PCM WAV container.
func EncodeWAV(w io.WriteSeeker, seg *Segment) error {
	if seg.SampleRate <= 0 || seg.Channels <= 0 {
		return fmt.Errorf("audio: encode WAV: invalid format %s", seg.Format())
	}
	enc := wav.NewEncoder(w, seg.SampleRate, BitDepth, seg.Channels, wavFormatPCM)

	data := make([]int, len(seg.Samples))
	for i, s := range seg.Samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: seg.Channels, SampleRate: seg.SampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise WAV: %w", err)
	}
	return nil
}

// WriteWAVFile writes seg to path. The file is written to a temporary sibling
// first and renamed into place, so path either holds a complete file or is
// left untouched.
func WriteWAVFile(path string, seg *Segment) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".scriptcast-*.wav.part")
	if err != nil {
		return fmt.Errorf("audio: create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = EncodeWAV(tmp, seg); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("audio: close %q: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("audio: rename to %q: %w", path, err)
	}
	return nil
}

// to16 rescales an integer sample of the given bit depth to 16 bits.
// 8-bit WAV data is unsigned with a 128 offset.
func to16(v, depth int) int16 {
	switch depth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return clamp16(int32(v >> 8))
	case 32:
		return clamp16(int32(v >> 16))
	default:
		return clamp16(int32(v))
	}
}
