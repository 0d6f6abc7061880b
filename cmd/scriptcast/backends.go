package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/scriptcast/internal/config"
	"github.com/MrWong99/scriptcast/internal/observe"
	"github.com/MrWong99/scriptcast/internal/resilience"
	"github.com/MrWong99/scriptcast/pkg/provider/tts"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/coqui"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/formant"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/gtts"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/openai"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/ossay"
	"github.com/MrWong99/scriptcast/pkg/provider/tts/piper"
)

// availability is implemented by backends that depend on a local executable.
type availability interface {
	Available() bool
}

// registerBuiltinProviders wires all built-in backend factories into reg.
// Each factory receives a config.BackendEntry and constructs the backend from
// its top-level fields and its options map.
func registerBuiltinProviders(reg *config.Registry) {
	// ── local ─────────────────────────────────────────────────────────────────

	reg.Register("piper", func(entry config.BackendEntry) (tts.Provider, error) {
		opts := []piper.Option{piper.WithSpeaker(entry.OptInt("speaker", -1))}
		if bin := entry.OptString("binary"); bin != "" {
			opts = append(opts, piper.WithBinary(bin))
		}
		if dir := entry.OptString("temp_dir"); dir != "" {
			opts = append(opts, piper.WithTempDir(dir))
		}
		if models := variants(entry.OptStringMap("models")); len(models) > 0 {
			opts = append(opts, piper.WithModels(models))
		}
		return piper.New(entry.Model, opts...)
	})

	reg.Register("coqui", func(entry config.BackendEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if speakers := variants(entry.OptStringMap("speakers")); len(speakers) > 0 {
			opts = append(opts, coqui.WithSpeakers(speakers))
		}
		timeout, err := entry.OptDuration("timeout", 0)
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, coqui.WithTimeout(timeout))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── os ────────────────────────────────────────────────────────────────────

	reg.Register("say", func(entry config.BackendEntry) (tts.Provider, error) {
		platform := ossay.Platform(entry.OptString("platform"))
		if platform == "" {
			var err error
			if platform, err = ossay.PlatformFor(runtime.GOOS); err != nil {
				return nil, err
			}
		}
		opts := []ossay.Option{ossay.WithPlatform(platform)}
		if bin := entry.OptString("binary"); bin != "" {
			opts = append(opts, ossay.WithBinary(bin))
		}
		if dir := entry.OptString("temp_dir"); dir != "" {
			opts = append(opts, ossay.WithTempDir(dir))
		}
		if voices := variants(entry.OptStringMap("voices")); len(voices) > 0 {
			opts = append(opts, ossay.WithVoices(voices))
		}
		return ossay.New(opts...)
	})

	// ── cloud ─────────────────────────────────────────────────────────────────

	reg.Register("gtts", func(entry config.BackendEntry) (tts.Provider, error) {
		var opts []gtts.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, gtts.WithLanguage(lang))
		}
		if rpm := entry.OptInt("requests_per_minute", 0); rpm > 0 {
			opts = append(opts, gtts.WithRequestsPerMinute(rpm))
		}
		if entry.BaseURL != "" {
			opts = append(opts, gtts.WithEndpoint(entry.BaseURL))
		}
		return gtts.New(opts...)
	})

	reg.Register("elevenlabs", func(entry config.BackendEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := entry.OptString("output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if voices := variants(entry.OptStringMap("voices")); len(voices) > 0 {
			opts = append(opts, elevenlabs.WithVoices(voices))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.Register("openai", func(entry config.BackendEntry) (tts.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if voices := variants(entry.OptStringMap("voices")); len(voices) > 0 {
			opts = append(opts, openai.WithVoices(voices))
		}
		timeout, err := entry.OptDuration("timeout", 0)
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, openai.WithTimeout(timeout))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range reg.Names() {
		slog.Debug("registered backend", "name", name)
	}
}

// variants converts a variant-name keyed table from the options map.
func variants(m map[string]string) map[tts.Variant]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[tts.Variant]string, len(m))
	for k, v := range m {
		out[tts.Variant(k)] = v
	}
	return out
}

// slotStatus describes the outcome of constructing one configured slot.
type slotStatus struct {
	Kind     string
	Name     string
	Provider tts.Provider
	Err      error
}

// createSlots constructs every configured slot in chain order. A slot whose
// backend cannot be constructed, or whose executable is missing, carries the
// reason in Err.
func createSlots(cfg *config.Config, reg *config.Registry) []slotStatus {
	var out []slotStatus
	for _, slot := range cfg.Backends.Slots() {
		st := slotStatus{Kind: slot.Kind, Name: slot.Entry.Name}
		p, err := reg.Create(slot.Entry)
		if err != nil {
			st.Err = err
		} else if a, ok := p.(availability); ok && !a.Available() {
			st.Err = errors.New("executable not found")
		} else {
			st.Provider = p
		}
		out = append(out, st)
	}
	return out
}

// buildChain assembles the real backends into a fallback chain. Slots that
// cannot be constructed are skipped with a log line. It returns nil when no
// real backend is usable, in which case every turn is rendered synthetically.
func buildChain(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) *resilience.TTSFallback {
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Backends.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.Backends.CircuitBreaker.ResetTimeout,
		},
		OnAttempt: func(name string, elapsed time.Duration, err error) {
			metrics.RecordBackendAttempt(context.Background(), name, elapsed, err)
		},
	}

	var chain *resilience.TTSFallback
	for _, st := range createSlots(cfg, reg) {
		if st.Err != nil {
			if errors.Is(st.Err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown backend, skipping", "slot", st.Kind, "name", st.Name)
			} else {
				slog.Warn("backend unavailable, skipping", "slot", st.Kind, "name", st.Name, "err", st.Err)
			}
			continue
		}
		if chain == nil {
			chain = resilience.NewTTSFallback(st.Provider, st.Name, fbCfg,
				resilience.WithBackendTimeout(cfg.Backends.Timeout))
		} else {
			chain.AddFallback(st.Name, st.Provider)
		}
		slog.Info("backend ready", "slot", st.Kind, "name", st.Name)
	}
	if chain == nil {
		slog.Warn("no speech backend available, every turn will use the synthetic voice")
	}
	return chain
}

// newSynthetic builds the formant generator from the synthetic section.
func newSynthetic(cfg config.SyntheticConfig) *formant.Provider {
	smoothing := formant.SmoothButterworth
	if cfg.Smoothing == config.SmoothingMovingAverage {
		smoothing = formant.SmoothMovingAverage
	}
	return formant.New(formant.WithSeed(cfg.SeedValue()), formant.WithSmoothing(smoothing))
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the configured speech backends and whether they can be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg := config.NewRegistry()
			registerBuiltinProviders(reg)

			w := cmd.OutOrStdout()
			for _, st := range createSlots(cfg, reg) {
				status := "ok"
				if st.Err != nil {
					status = "unavailable: " + st.Err.Error()
				}
				fmt.Fprintf(w, "%-6s %-11s %s\n", st.Kind, st.Name, status)
			}
			fmt.Fprintf(w, "%-6s %-11s %s\n", "final", "synthetic", "ok")
			return nil
		},
	}
}
