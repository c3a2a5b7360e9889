// Package config resolves configuration values for entityxtract.
//
// Lookup priority for a key: environment variable, top-level config key,
// dotted-path lookup (e.g. "OPENROUTER.DEFAULT_MODEL"), then a deep
// search for the bare key anywhere in the nested config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Resolver answers string-keyed configuration lookups.
type Resolver struct {
	v *viper.Viper
}

// Load reads config.yaml (or config.yml) from the given search paths.
// A missing config file is not an error; lookups then resolve from the
// environment only.
func Load(paths ...string) (*Resolver, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Resolver{v: v}, nil
}

// FromFile reads one specific config file.
func FromFile(path string) (*Resolver, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return &Resolver{v: v}, nil
}

// Get resolves a configuration value by key, or "" if not found.
func (r *Resolver) Get(key string) string {
	// Environment takes precedence. Dots map to underscores so nested
	// keys stay addressable (OPENROUTER.API_KEY -> OPENROUTER_API_KEY).
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if val, ok := os.LookupEnv(envKey); ok {
		return val
	}

	// Top-level and dotted-path lookup (viper handles both).
	if r.v.IsSet(key) {
		return r.v.GetString(key)
	}

	// Deep search for the bare key anywhere in the nested structure.
	if val, ok := deepFind(r.v.AllSettings(), strings.ToLower(key)); ok {
		return fmt.Sprintf("%v", val)
	}

	return ""
}

// GetDefault resolves a key, falling back to def when unset.
func (r *Resolver) GetDefault(key, def string) string {
	if val := r.Get(key); val != "" {
		return val
	}
	return def
}

// deepFind walks nested maps and slices for the first occurrence of key.
func deepFind(data any, key string) (any, bool) {
	switch node := data.(type) {
	case map[string]any:
		if val, ok := node[key]; ok {
			return val, true
		}
		for _, v := range node {
			if found, ok := deepFind(v, key); ok {
				return found, true
			}
		}
	case []any:
		for _, item := range node {
			if found, ok := deepFind(item, key); ok {
				return found, true
			}
		}
	}
	return nil, false
}
