package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "NAVAJO_"

// Loader reads the configuration from, in increasing priority: defaults,
// the YAML file and NAVAJO_ environment variables.
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

// WithConfigFile sets the configuration file path. A missing file is an
// error; use Load for the optional default location.
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

// Load returns Default() overlaid with the file and the environment, then
// validated.
func (l *Loader) Load() (*File, error) {
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", l.filePath, err)
		}
	}

	// NAVAJO_TLS__CERT_FILE -> tls.cert_file
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Keys returns every key set by the file or the environment.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

// Load reads path, or the default config path when path is empty. A
// missing default file yields the defaults.
func Load(path string) (*File, error) {
	if path == "" {
		defaultPath, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(defaultPath); err == nil {
			path = defaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return NewLoader(WithConfigFile(path)).Load()
}
