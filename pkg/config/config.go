// Package config loads echoctl settings from YAML.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds the echoctl configuration.
type Config struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Backlog int    `yaml:"backlog"`
	Log     Log    `yaml:"log"`
	History int    `yaml:"history"`
}

// Log controls the diagnostics written to stderr.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Address: "127.0.0.1",
		Port:    0,
		Backlog: 4,
		Log: Log{
			Level:  "info",
			Format: FormatConsole,
		},
		History: 4096,
	}
}

// DefaultPath returns ~/.ipecho/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ipecho", "config.yaml")
	}
	return filepath.Join(home, ".ipecho", "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range [0, 65535]", c.Port)
	}
	if c.Backlog < 1 {
		return errors.Errorf("backlog must be at least 1, got %d", c.Backlog)
	}
	if c.History < 0 {
		return errors.Errorf("history must not be negative, got %d", c.History)
	}
	switch strings.ToLower(c.Log.Format) {
	case FormatConsole, FormatJSON:
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses Log.Level.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.Log.Level)))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "log level %q", c.Log.Level)
	}
	return lvl, nil
}
