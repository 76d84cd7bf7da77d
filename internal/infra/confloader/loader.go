// Package confloader provides configuration loading for stashkv.
//
// It uses Koanf to merge configuration sources with the priority
// Env > File > Default.
package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "STASHKV_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges all sources and unmarshals into target. The target should
// already carry default values; file settings override them and
// environment variables override both.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads configuration from environment variables.
// Variables use the format STASHKV_SECTION_KEY; for example
// STASHKV_SERVER_ADDR=0.0.0.0:6379 maps to server.addr.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap loads configuration from a map. Used by tests.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Get returns a raw value by key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}
