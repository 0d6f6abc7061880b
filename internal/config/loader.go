package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known backend names per chain slot.
// Used by [Validate] to warn about unrecognised backend names.
var ValidBackendNames = map[string][]string{
	"local": {"piper", "coqui"},
	"os":    {"say"},
	"cloud": {"gtts", "elevenlabs", "openai"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config].
func Load(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("config: expand %q: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. An empty document yields the
// default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return finish(cfg)
}

// Default returns the configuration used when no file is given: no real
// backends, so every turn is rendered by the synthetic generator, plus any
// environment overrides.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	dir, err := homedir.Expand(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("config: expand output.dir: %w", err)
	}
	cfg.Output.Dir = dir
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Output.SampleRate < 0 || (cfg.Output.SampleRate > 0 && (cfg.Output.SampleRate < 8000 || cfg.Output.SampleRate > 48000)) {
		errs = append(errs, fmt.Errorf("output.sample_rate %d is out of range [8000, 48000]", cfg.Output.SampleRate))
	}
	if cfg.Output.PauseMS != nil && *cfg.Output.PauseMS < 0 {
		errs = append(errs, fmt.Errorf("output.pause_ms %d must not be negative", *cfg.Output.PauseMS))
	}

	for _, slot := range cfg.Backends.Slots() {
		validateBackendName(slot.Kind, slot.Entry.Name)
	}
	if cfg.Backends.Timeout < 0 {
		errs = append(errs, fmt.Errorf("backends.timeout %s must not be negative", cfg.Backends.Timeout))
	}
	if s := cfg.Backends.Synthetic.Smoothing; s != "" && !s.IsValid() {
		errs = append(errs, fmt.Errorf("backends.synthetic.smoothing %q is invalid; valid values: butterworth, moving_average", s))
	}
	if cfg.Backends.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("backends.circuit_breaker.max_failures %d must not be negative", cfg.Backends.CircuitBreaker.MaxFailures))
	}
	if len(cfg.Backends.Slots()) == 0 {
		slog.Warn("no speech backends configured; every turn will use the synthetic fallback")
	}

	seen := make(map[string]int, len(cfg.Personas))
	for i, p := range cfg.Personas {
		prefix := fmt.Sprintf("personas[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := seen[p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of personas[%d]", prefix, p.Name, prev))
			}
			seen[p.Name] = i
		}
		if p.Tone != "" && !p.Tone.IsValid() {
			errs = append(errs, fmt.Errorf("%s.tone %q is invalid; valid values: professional, authoritative, conversational, analytical, passionate, neutral", prefix, p.Tone))
		}
		if p.Pace != "" && !p.Pace.IsValid() {
			errs = append(errs, fmt.Errorf("%s.pace %q is invalid; valid values: slow, moderate, fast", prefix, p.Pace))
		}
		if p.PitchModifier != 0 && (p.PitchModifier < 0.5 || p.PitchModifier > 2.0) {
			errs = append(errs, fmt.Errorf("%s.pitch_modifier %.2f is out of range [0.5, 2.0]", prefix, p.PitchModifier))
		}
		if p.SpeedModifier != 0 && (p.SpeedModifier < 0.5 || p.SpeedModifier > 2.0) {
			errs = append(errs, fmt.Errorf("%s.speed_modifier %.2f is out of range [0.5, 2.0]", prefix, p.SpeedModifier))
		}
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is not found in the
// [ValidBackendNames] list for the given slot.
func validateBackendName(kind, name string) {
	known, ok := ValidBackendNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name; may be a typo or a third-party backend",
		"slot", kind,
		"name", name,
		"known", known,
	)
}
