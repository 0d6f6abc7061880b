// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider interface.
//
// Each Synthesize call opens one WebSocket, sends the whole turn followed by a
// flush, and collects the streamed PCM chunks until the server marks the
// stream final.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

const (
	defaultEndpoint  = "wss://api.elevenlabs.io"
	streamPathFmt    = "/v1/text-to-speech/%s/stream-input"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_22050"
)

// DefaultVoices maps variants to ElevenLabs premade voice ids.
var DefaultVoices = map[tts.Variant]string{
	tts.VariantFormal:  "pNInz6obpgDQGcFmaJgB", // Adam
	tts.VariantWarm:    "EXAVITQu4vr4xnSDxMaL", // Bella
	tts.VariantDefault: "21m00Tcm4TlvDq8ikWAM", // Rachel
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format. Only raw PCM formats
// ("pcm_<rate>") are supported.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithVoices overrides the voice id used for one or more variants.
func WithVoices(voices map[tts.Variant]string) Option {
	return func(p *Provider) {
		for k, v := range voices {
			p.voices[k] = v
		}
	}
}

// WithEndpoint overrides the WebSocket base URL (scheme and host).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	endpoint     string
	voices       map[tts.Variant]string
	sampleRate   int
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		endpoint:     defaultEndpoint,
		voices:       make(map[tts.Variant]string, len(DefaultVoices)),
	}
	for k, v := range DefaultVoices {
		p.voices[k] = v
	}
	for _, o := range opts {
		o(p)
	}
	rate, err := parsePCMFormat(p.outputFormat)
	if err != nil {
		return nil, err
	}
	p.sampleRate = rate
	return p, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	Flush         bool           `json:"flush,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"` // error or info
	Error   string `json:"error,omitempty"`
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// Synthesize opens a WebSocket to ElevenLabs, sends text and collects the
// returned PCM into one segment. All failures wrap tts.ErrBackendUnavailable.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.Unavailable("elevenlabs", errors.New("empty text"))
	}
	voiceID := p.voiceFor(tts.VariantFor(voice.Tone))

	conn, _, err := websocket.Dial(ctx, p.streamURL(voiceID), nil)
	if err != nil {
		return nil, tts.Unavailable("elevenlabs", fmt.Errorf("dial: %w", err))
	}
	defer conn.CloseNow()
	conn.SetReadLimit(-1)

	// ElevenLabs requires a non-empty first text value.
	boi := boiMessage{
		Text: " ",
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           tts.SpeedFor(voice.Pace),
		},
		XiAPIKey: p.apiKey,
	}
	for _, msg := range []any{boi, textMessage{Text: text + " ", Flush: true}, textMessage{Text: ""}} {
		b, err := json.Marshal(msg)
		if err != nil {
			return nil, tts.Unavailable("elevenlabs", fmt.Errorf("marshal: %w", err))
		}
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return nil, tts.Unavailable("elevenlabs", fmt.Errorf("send: %w", err))
		}
	}

	pcm, err := readAudio(ctx, conn)
	if err != nil {
		return nil, tts.Unavailable("elevenlabs", err)
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if len(pcm) < 2 {
		return nil, tts.Unavailable("elevenlabs", errors.New("no audio received"))
	}
	return audio.FromPCM16(pcm, p.sampleRate, 1), nil
}

// readAudio reads messages until the server sends isFinal or closes the
// connection normally, and returns the concatenated PCM.
func readAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var buf bytes.Buffer
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && buf.Len() > 0 {
				return buf.Bytes(), nil
			}
			return nil, fmt.Errorf("read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("server error: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("decode audio chunk: %w", err)
			}
			buf.Write(pcm)
		}
		if resp.IsFinal {
			return buf.Bytes(), nil
		}
	}
}

func (p *Provider) voiceFor(v tts.Variant) string {
	if id, ok := p.voices[v]; ok && id != "" {
		return id
	}
	return p.voices[tts.VariantDefault]
}

// streamURL constructs the WebSocket URL for a given voice.
func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	return p.endpoint + fmt.Sprintf(streamPathFmt, url.PathEscape(voiceID)) + "?" + q.Encode()
}

// parsePCMFormat extracts the sample rate from an output format such as
// "pcm_22050".
func parsePCMFormat(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q (want pcm_<rate>)", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid sample rate in output format %q", format)
	}
	return n, nil
}
