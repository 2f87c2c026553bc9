package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/scigolib/h5store"
)

// Config holds the defaults read from h5ctl.yaml. Command line flags
// override them.
type Config struct {
	// Level recompresses datasets copied by cp, 0 to 9. -1 keeps the
	// source storage.
	Level    int    `yaml:"level"`
	Codec    string `yaml:"codec"`
	Shuffle  bool   `yaml:"shuffle"`
	Workers  int    `yaml:"workers,omitempty"`
	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{Level: -1, Codec: "deflate", LogLevel: "info"}
}

// defaultConfigPath returns h5ctl.yaml in the user configuration
// directory, such as ~/.config on Linux.
func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "h5ctl.yaml"), nil
}

// loadConfig reads the config file at path. An empty path reads the
// default location, where a missing file yields the defaults.
func loadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return defaultConfig(), nil //nolint:nilerr // no config directory, no config
		}
		path = p
	}
	data, err := os.ReadFile(path) //nolint:gosec // user-specified config path
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig decodes a YAML config, rejecting unknown keys.
func parseConfig(data []byte) (*Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the value ranges.
func (c *Config) Validate() error {
	if c.Level < -1 || c.Level > 9 {
		return fmt.Errorf("level %d out of range -1..9", c.Level)
	}
	if _, err := parseCodec(c.Codec); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	_, err := c.logLevel()
	return err
}

// logLevel parses LogLevel.
func (c *Config) logLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func parseCodec(s string) (h5store.Codec, error) {
	for _, c := range []h5store.Codec{h5store.CodecDeflate, h5store.CodecZstd, h5store.CodecLZ4} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown codec %q, want deflate, zstd or lz4", s)
}
