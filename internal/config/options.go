package config

import (
	"fmt"
	"time"
)

// OptString extracts a string option. Returns "" if the key is absent or not
// a string.
func (e BackendEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptInt extracts an integer option. YAML numbers decode as int or float64;
// both are accepted. Returns def if the key is absent or not a number.
func (e BackendEntry) OptInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// OptDuration extracts a duration option written as a Go duration string
// ("15s") or a number of seconds.
func (e BackendEntry) OptDuration(key string, def time.Duration) (time.Duration, error) {
	switch v := e.Options[key].(type) {
	case nil:
		return def, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("option %q: unsupported type %T", key, e.Options[key])
}

// OptStringMap extracts a map of strings, such as a variant to voice table.
// Non-string values are skipped.
func (e BackendEntry) OptStringMap(key string) map[string]string {
	raw, ok := e.Options[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
