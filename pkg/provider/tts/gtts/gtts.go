// Package gtts provides a cloud TTS provider backed by the Google Translate
// text-to-speech endpoint. It needs no API key and implements the tts.Provider
// interface.
//
// The endpoint accepts at most 100 characters per request, so text is split at
// sentence and word boundaries into chunks that are fetched in order, each as
// an MP3 clip. Clips are decoded in-process and concatenated into one mono
// segment. Requests are rate limited to avoid being blocked.
//
// Tone selects the regional accent through the Google domain used (for
// example translate.google.co.uk); a slow pace sets the endpoint's slow flag.
package gtts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gopxl/beep/mp3"
	"golang.org/x/time/rate"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

const (
	// MaxChunkChars is the longest text the endpoint accepts per request.
	MaxChunkChars = 100

	defaultLanguage          = "en"
	defaultRequestsPerMinute = 50
	defaultTimeout           = 15 * time.Second
	endpointFmt              = "https://translate.google.%s"
	ttsPath                  = "/translate_tts"
	userAgent                = "Mozilla/5.0 (compatible; scriptcast)"

	// maxClipBytes bounds a single MP3 response.
	maxClipBytes = 8 << 20

	decodeBufFrames = 1024
)

// TLDFor returns the Google top-level domain that selects the accent for tone.
func TLDFor(tone types.Tone) string {
	switch tone {
	case types.ToneAuthoritative:
		return "co.uk"
	case types.ToneConversational:
		return "com.au"
	default:
		return "com"
	}
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language code (e.g., "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithRequestsPerMinute sets the request rate limit. Defaults to 50.
func WithRequestsPerMinute(n int) Option {
	return func(p *Provider) {
		p.requestsPerMinute = n
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint pins the base URL (scheme and host) for every request, which
// disables the tone-dependent accent domain.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// Provider implements tts.Provider with the Google Translate TTS endpoint. It
// is safe for concurrent use; the rate limiter is shared.
type Provider struct {
	language          string
	requestsPerMinute int
	endpoint          string
	httpClient        *http.Client
	limiter           *rate.Limiter
	decode            func([]byte) (*audio.Segment, error)
}

// New creates a new gTTS Provider.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		language:          defaultLanguage,
		requestsPerMinute: defaultRequestsPerMinute,
		httpClient:        &http.Client{Timeout: defaultTimeout},
		decode:            decodeMP3,
	}
	for _, o := range opts {
		o(p)
	}
	if p.language == "" {
		return nil, errors.New("gtts: language must not be empty")
	}
	if p.requestsPerMinute <= 0 {
		return nil, fmt.Errorf("gtts: requests per minute must be positive, got %d", p.requestsPerMinute)
	}
	p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.requestsPerMinute)), 1)
	return p, nil
}

// Synthesize fetches and decodes speech for text. All failures wrap
// tts.ErrBackendUnavailable.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	chunks := SplitText(text, MaxChunkChars)
	if len(chunks) == 0 {
		return nil, tts.Unavailable("gtts", errors.New("empty text"))
	}

	base := p.endpoint
	if base == "" {
		base = fmt.Sprintf(endpointFmt, TLDFor(voice.Tone))
	}
	slow := voice.Pace == types.PaceSlow

	var out *audio.Segment
	for i, chunk := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, tts.Unavailable("gtts", fmt.Errorf("rate limit wait: %w", err))
		}
		clip, err := p.fetch(ctx, base, chunk, i, len(chunks), slow)
		if err != nil {
			return nil, tts.Unavailable("gtts", err)
		}
		seg, err := p.decode(clip)
		if err != nil {
			return nil, tts.Unavailable("gtts", fmt.Errorf("chunk %d: %w", i, err))
		}
		if out == nil {
			out = seg
			continue
		}
		seg = audio.Convert(seg, out.Format())
		out.Samples = append(out.Samples, seg.Samples...)
	}
	return out, nil
}

// fetch downloads the MP3 clip for one chunk.
func (p *Provider) fetch(ctx context.Context, base, chunk string, idx, total int, slow bool) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", p.language)
	q.Set("q", chunk)
	q.Set("total", fmt.Sprint(total))
	q.Set("idx", fmt.Sprint(idx))
	q.Set("textlen", fmt.Sprint(utf8.RuneCountInString(chunk)))
	if slow {
		q.Set("ttsspeed", "0.3")
	} else {
		q.Set("ttsspeed", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+ttsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", ttsPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", ttsPath, resp.StatusCode)
	}

	clip, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(clip) == 0 {
		return nil, errors.New("empty response")
	}
	if len(clip) > maxClipBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxClipBytes)
	}
	return clip, nil
}

// decodeMP3 decodes an MP3 clip into a mono 16-bit segment at the clip's
// native rate.
func decodeMP3(data []byte) (*audio.Segment, error) {
	stream, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decode MP3: %w", err)
	}
	defer stream.Close()

	samples := make([]int16, 0, max(stream.Len(), 0))
	buf := make([][2]float64, decodeBufFrames)
	for {
		n, ok := stream.Stream(buf)
		for _, frame := range buf[:n] {
			v := frame[0]
			if format.NumChannels > 1 {
				v = (frame[0] + frame[1]) / 2
			}
			samples = append(samples, floatTo16(v))
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("decode MP3: %w", err)
	}
	if len(samples) == 0 {
		return nil, errors.New("decode MP3: no audio frames")
	}
	return &audio.Segment{
		Samples:    samples,
		SampleRate: int(format.SampleRate),
		Channels:   1,
	}, nil
}

// floatTo16 converts a sample in [-1, 1] to int16 with clamping.
func floatTo16(v float64) int16 {
	v = math.Round(v * 32767)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SplitText breaks text into chunks of at most limit runes. It prefers to cut
// after sentence punctuation, then at whitespace, and only splits inside a
// word when a single word exceeds limit. Whitespace-only input yields no
// chunks.
func SplitText(text string, limit int) []string {
	text = strings.Join(strings.Fields(text), " ")
	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			chunks = append(chunks, text)
			break
		}
		cut := cutPoint(text, limit)
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}

// cutPoint returns the byte offset at which to split text so that the head
// holds at most limit runes.
func cutPoint(text string, limit int) int {
	// Byte offset just past the limit-th rune.
	end := 0
	for i := 0; i < limit; i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}

	head := text[:end]
	if i := strings.LastIndexFunc(head, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';' || r == ':' || r == ','
	}); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexFunc(head, unicode.IsSpace); i > 0 {
		return i
	}
	return end
}
