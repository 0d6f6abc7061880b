package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by [ApplyEnv].
const EnvPrefix = "SCRIPTCAST_"

// envOverrides lists the settings that may come from the environment. Secrets
// belong here rather than in the YAML file.
type envOverrides struct {
	LogLevel         string        `env:"LOG_LEVEL"`
	MetricsAddr      string        `env:"METRICS_ADDR"`
	OutputDir        string        `env:"OUTPUT_DIR"`
	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT"`
	ElevenLabsAPIKey string        `env:"ELEVENLABS_API_KEY"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
}

// ApplyEnv overrides cfg with SCRIPTCAST_* environment variables. API keys
// are applied to every slot using the matching backend whose api_key is
// empty in the file.
func ApplyEnv(cfg *Config) error {
	o, err := env.ParseAsWithOptions[envOverrides](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}

	if o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(o.LogLevel)
	}
	if o.MetricsAddr != "" {
		cfg.Server.MetricsAddr = o.MetricsAddr
	}
	if o.OutputDir != "" {
		cfg.Output.Dir = o.OutputDir
	}
	if o.BackendTimeout != 0 {
		cfg.Backends.Timeout = o.BackendTimeout
	}

	keys := map[string]string{
		"elevenlabs": o.ElevenLabsAPIKey,
		"openai":     o.OpenAIAPIKey,
	}
	for _, e := range []*BackendEntry{&cfg.Backends.Local, &cfg.Backends.OS, &cfg.Backends.Cloud} {
		if key := keys[e.Name]; key != "" && e.APIKey == "" {
			e.APIKey = key
		}
	}
	return nil
}
