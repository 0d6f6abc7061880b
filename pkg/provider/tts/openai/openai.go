// Package openai provides a cloud TTS provider backed by the OpenAI speech
// endpoint. It implements the tts.Provider interface.
//
// Audio is requested as raw 24 kHz mono 16-bit PCM, so no container decoding
// is needed. The voice variant selects the OpenAI voice and the pace maps to
// the request's speed. With an instruction-following model such as
// gpt-4o-mini-tts, tone and emphasis are also passed as speaking
// instructions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = oai.SpeechModelTTS1

// SampleRate is the rate of OpenAI's raw PCM output.
const SampleRate = 24000

// maxInputChars is the longest input the speech endpoint accepts.
const maxInputChars = 4096

// DefaultVoices maps variants to OpenAI voices.
var DefaultVoices = map[tts.Variant]string{
	tts.VariantFormal:  "onyx",
	tts.VariantWarm:    "nova",
	tts.VariantDefault: "alloy",
}

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voices map[tts.Variant]string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	voices       map[tts.Variant]string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithVoices overrides the OpenAI voice used for one or more variants.
func WithVoices(voices map[tts.Variant]string) Option {
	return func(c *config) {
		c.voices = voices
	}
}

// New constructs a new OpenAI speech Provider.
// If model is empty, DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	// Retries are left to the fallback chain.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	voices := make(map[tts.Variant]string, len(DefaultVoices))
	for k, v := range DefaultVoices {
		voices[k] = v
	}
	for k, v := range cfg.voices {
		if v != "" {
			voices[k] = v
		}
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model, voices: voices}, nil
}

// Synthesize implements tts.Provider. All failures wrap
// tts.ErrBackendUnavailable.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceCharacteristics) (*audio.Segment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.Unavailable("openai", errors.New("empty text"))
	}
	if len([]rune(text)) > maxInputChars {
		return nil, tts.Unavailable("openai", fmt.Errorf("text exceeds %d characters", maxInputChars))
	}

	params := oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.voiceFor(tts.VariantFor(voice.Tone))),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
		Speed:          oai.Float(tts.SpeedFor(voice.Pace)),
	}
	if p.model == oai.SpeechModelGPT4oMiniTTS {
		params.Instructions = oai.String(Instructions(voice))
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, tts.Unavailable("openai", fmt.Errorf("speech: %w", err))
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.Unavailable("openai", fmt.Errorf("read audio: %w", err))
	}
	if len(pcm) < 2 {
		return nil, tts.Unavailable("openai", errors.New("empty audio response"))
	}
	return audio.FromPCM16(pcm, SampleRate, 1), nil
}

func (p *Provider) voiceFor(v tts.Variant) string {
	if name, ok := p.voices[v]; ok {
		return name
	}
	return p.voices[tts.VariantDefault]
}

// Instructions renders voice characteristics as a speaking instruction for
// instruction-following speech models.
func Instructions(v types.VoiceCharacteristics) string {
	v = v.Normalized()
	return fmt.Sprintf("Speak in a %s tone at a %s pace, with %s emphasis.", v.Tone, v.Pace, v.Emphasis)
}
