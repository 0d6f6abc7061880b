// Package config provides the configuration schema, loader, environment
// overrides and backend registry for scriptcast.
package config

import (
	"time"

	"github.com/MrWong99/scriptcast/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Smoothing selects the low-pass stage of the synthetic fallback.
type Smoothing string

const (
	SmoothingButterworth   Smoothing = "butterworth"
	SmoothingMovingAverage Smoothing = "moving_average"
)

// IsValid reports whether s is a recognised smoothing mode.
func (s Smoothing) IsValid() bool {
	return s == SmoothingButterworth || s == SmoothingMovingAverage
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultOutputDir      = "~/scriptcast"
	DefaultSampleRate     = 22050
	DefaultPauseMS        = 500
	DefaultBackendTimeout = 30 * time.Second
	DefaultSyntheticSeed  = 42
	DefaultMaxFailures    = 3
	DefaultResetTimeout   = time.Minute
)

// Config is the root configuration structure for scriptcast.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Output   OutputConfig    `yaml:"output"`
	Backends BackendsConfig  `yaml:"backends"`
	Personas []PersonaConfig `yaml:"personas"`
}

// ServerConfig holds logging and the optional metrics listener.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics and the health
	// endpoints during a run (e.g., ":9464"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// OutputConfig controls where and how the final track is written.
type OutputConfig struct {
	// Dir is the directory relative output paths are resolved against.
	// A leading ~ is expanded to the user's home directory.
	Dir string `yaml:"dir"`

	// SampleRate of the exported WAV. Turns are always assembled at 22050 Hz;
	// any other rate is produced by resampling the finished track.
	SampleRate int `yaml:"sample_rate"`

	// PauseMS is the silence inserted between turns of different speakers.
	// Nil selects [DefaultPauseMS]; 0 disables the pause.
	PauseMS *int `yaml:"pause_ms"`
}

// Pause returns the configured inter-speaker pause.
func (o OutputConfig) Pause() time.Duration {
	if o.PauseMS == nil {
		return DefaultPauseMS * time.Millisecond
	}
	return time.Duration(*o.PauseMS) * time.Millisecond
}

// BackendsConfig declares the speech backend chain. Slots are tried in the
// fixed order local, os, cloud; the synthetic generator always closes the
// chain and cannot be disabled.
type BackendsConfig struct {
	Local     BackendEntry    `yaml:"local"`
	OS        BackendEntry    `yaml:"os"`
	Cloud     BackendEntry    `yaml:"cloud"`
	Synthetic SyntheticConfig `yaml:"synthetic"`

	// Timeout bounds each backend call.
	Timeout time.Duration `yaml:"timeout"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Slots returns the configured real-backend slots in chain order. Slots
// without a name are omitted.
func (b BackendsConfig) Slots() []Slot {
	var slots []Slot
	for _, s := range []Slot{
		{Kind: "local", Entry: b.Local},
		{Kind: "os", Entry: b.OS},
		{Kind: "cloud", Entry: b.Cloud},
	} {
		if s.Entry.Name != "" {
			slots = append(slots, s)
		}
	}
	return slots
}

// Slot is one position in the backend chain.
type Slot struct {
	Kind  string
	Entry BackendEntry
}

// BackendEntry is the common configuration block shared by all backends.
// The Name field is used to look up the constructor in the [Registry].
type BackendEntry struct {
	// Name selects the registered backend (e.g., "piper", "say", "gtts").
	Name string `yaml:"name"`

	// APIKey authenticates cloud backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model or voice file within the backend.
	Model string `yaml:"model"`

	// Options holds backend-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// SyntheticConfig tunes the formant fallback generator.
type SyntheticConfig struct {
	// Seed for the noise generator. Nil selects [DefaultSyntheticSeed].
	Seed *int64 `yaml:"seed"`

	// Smoothing selects the low-pass stage.
	Smoothing Smoothing `yaml:"smoothing"`
}

// SeedValue returns the configured seed or the default.
func (s SyntheticConfig) SeedValue() int64 {
	if s.Seed == nil {
		return DefaultSyntheticSeed
	}
	return *s.Seed
}

// CircuitBreakerConfig tunes the breaker in front of each real backend.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// PersonaConfig pre-registers a speaker's voice before a run. Personas that
// are not listed get a profile from the characteristics of their first turn.
type PersonaConfig struct {
	Name          string     `yaml:"name"`
	Tone          types.Tone `yaml:"tone"`
	Pace          types.Pace `yaml:"pace"`
	Emphasis      string     `yaml:"emphasis"`
	PitchModifier float64    `yaml:"pitch_modifier"`
	SpeedModifier float64    `yaml:"speed_modifier"`
}

// Profile converts the persona to a voice profile. Zero modifiers become 1.0.
func (p PersonaConfig) Profile() types.VoiceProfile {
	prof := types.NewVoiceProfile(p.Name, types.VoiceCharacteristics{
		Tone:     p.Tone,
		Pace:     p.Pace,
		Emphasis: p.Emphasis,
	})
	if p.PitchModifier != 0 {
		prof.PitchModifier = p.PitchModifier
	}
	if p.SpeedModifier != 0 {
		prof.SpeedModifier = p.SpeedModifier
	}
	return prof
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Output.SampleRate == 0 {
		c.Output.SampleRate = DefaultSampleRate
	}
	if c.Backends.Timeout == 0 {
		c.Backends.Timeout = DefaultBackendTimeout
	}
	if c.Backends.Synthetic.Smoothing == "" {
		c.Backends.Synthetic.Smoothing = SmoothingButterworth
	}
	if c.Backends.CircuitBreaker.MaxFailures == 0 {
		c.Backends.CircuitBreaker.MaxFailures = DefaultMaxFailures
	}
	if c.Backends.CircuitBreaker.ResetTimeout == 0 {
		c.Backends.CircuitBreaker.ResetTimeout = DefaultResetTimeout
	}
}
