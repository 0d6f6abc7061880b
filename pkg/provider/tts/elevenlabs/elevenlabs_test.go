package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// fakeServer is a minimal ElevenLabs stream-input endpoint. It records the
// request path, query and text messages, then replies with the configured
// frames.
type fakeServer struct {
	mu       sync.Mutex
	path     string
	query    map[string]string
	messages []map[string]any
	replies  []audioResponse
}

func (f *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()

		f.mu.Lock()
		f.path = r.URL.Path
		f.query = map[string]string{
			"model_id":      r.URL.Query().Get("model_id"),
			"output_format": r.URL.Query().Get("output_format"),
		}
		f.mu.Unlock()

		// Read until the end-of-input message {"text":""}.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Errorf("unmarshal client message: %v", err)
				return
			}
			f.mu.Lock()
			f.messages = append(f.messages, m)
			f.mu.Unlock()
			if m["text"] == "" {
				break
			}
		}
		for _, reply := range f.replies {
			b, _ := json.Marshal(reply)
			if err := conn.Write(r.Context(), websocket.MessageText, b); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

func pcmChunk(samples ...int16) string {
	seg := &audio.Segment{Samples: samples}
	return base64.StdEncoding.EncodeToString(seg.Bytes())
}

func newTestProvider(t *testing.T, srv *httptest.Server, opts ...Option) *Provider {
	t.Helper()
	opts = append([]Option{WithEndpoint("ws" + strings.TrimPrefix(srv.URL, "http"))}, opts...)
	p, err := New("test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSynthesize_CollectsChunksUntilFinal(t *testing.T) {
	f := &fakeServer{replies: []audioResponse{
		{Audio: pcmChunk(1, 2, 3)},
		{Audio: pcmChunk(4, 5)},
		{IsFinal: true},
	}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv)
	seg, err := p.Synthesize(context.Background(), "Thanks Sarah.", types.VoiceCharacteristics{
		Tone: types.ToneConversational,
		Pace: types.PaceFast,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if seg.SampleRate != 22050 || seg.Channels != 1 {
		t.Errorf("format = %s, want 22050Hz mono", seg.Format())
	}
	want := []int16{1, 2, 3, 4, 5}
	if len(seg.Samples) != len(want) {
		t.Fatalf("samples = %v, want %v", seg.Samples, want)
	}
	for i := range want {
		if seg.Samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, seg.Samples[i], want[i])
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path != "/v1/text-to-speech/"+DefaultVoices[tts.VariantWarm]+"/stream-input" {
		t.Errorf("path = %q, want the warm voice", f.path)
	}
	if f.query["model_id"] != defaultModel || f.query["output_format"] != defaultOutputFmt {
		t.Errorf("query = %v", f.query)
	}
	if len(f.messages) != 3 {
		t.Fatalf("got %d client messages, want 3 (BOI, text, end)", len(f.messages))
	}
	if f.messages[0]["xi_api_key"] != "test-key" {
		t.Errorf("BOI missing api key: %v", f.messages[0])
	}
	vs, _ := f.messages[0]["voice_settings"].(map[string]any)
	if speed, _ := vs["speed"].(float64); speed < 1.19 || speed > 1.21 {
		t.Errorf("speed = %v, want 1.2 for a fast pace", vs["speed"])
	}
	if f.messages[1]["text"] != "Thanks Sarah. " {
		t.Errorf("text message = %v", f.messages[1])
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	f := &fakeServer{replies: []audioResponse{{Error: "quota_exceeded", Message: "out of credits"}}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := newTestProvider(t, srv).Synthesize(context.Background(), "hello", types.VoiceCharacteristics{})
	if !errors.Is(err, tts.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestSynthesize_NoAudio(t *testing.T) {
	f := &fakeServer{replies: []audioResponse{{IsFinal: true}}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := newTestProvider(t, srv).Synthesize(context.Background(), "hello", types.VoiceCharacteristics{})
	if !errors.Is(err, tts.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestSynthesize_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestProvider(t, srv).Synthesize(context.Background(), "hello", types.VoiceCharacteristics{})
	if !errors.Is(err, tts.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestStreamURL(t *testing.T) {
	p, err := New("key", WithModel("eleven_multilingual_v2"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := p.streamURL("abc123")
	want := "wss://api.elevenlabs.io/v1/text-to-speech/abc123/stream-input?model_id=eleven_multilingual_v2&output_format=pcm_22050"
	if got != want {
		t.Errorf("streamURL = %q, want %q", got, want)
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("expected model %q, got %q", defaultModel, p.model)
	}
	if p.sampleRate != 22050 {
		t.Errorf("expected sample rate 22050, got %d", p.sampleRate)
	}
}

func TestNew_WithOptions(t *testing.T) {
	p, err := New("key",
		WithModel("eleven_multilingual_v2"),
		WithOutputFormat("pcm_24000"),
		WithVoices(map[tts.Variant]string{tts.VariantFormal: "custom"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" {
		t.Errorf("expected model 'eleven_multilingual_v2', got %q", p.model)
	}
	if p.sampleRate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", p.sampleRate)
	}
	if got := p.voiceFor(tts.VariantFormal); got != "custom" {
		t.Errorf("formal voice = %q, want custom", got)
	}
	if got := p.voiceFor(tts.VariantWarm); got != DefaultVoices[tts.VariantWarm] {
		t.Errorf("warm voice = %q, want the default", got)
	}
}

func TestNew_RejectsNonPCMFormat(t *testing.T) {
	for _, f := range []string{"mp3_44100_128", "pcm_", "pcm_abc"} {
		if _, err := New("key", WithOutputFormat(f)); err == nil {
			t.Errorf("expected error for output format %q", f)
		}
	}
}
