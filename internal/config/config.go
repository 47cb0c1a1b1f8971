// Package config loads ledgerd configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the file. Each one, when set, wins
// over both the default and the file value.
const (
	EnvDB           = "LEDGERD_DB"
	EnvAddr         = "LEDGERD_ADDR"
	EnvLogLevel     = "LEDGERD_LOG_LEVEL"
	EnvApplyOnStart = "LEDGERD_APPLY_ON_START"
	EnvBackupDir    = "LEDGERD_BACKUP_DIR"
)

// Config is the full ledgerd configuration.
type Config struct {
	// DB is the SQLite database path.
	DB string `yaml:"db"`

	// Addr is the listen address for the JSON API.
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ApplyOnStart runs a generation sweep when the server starts.
	ApplyOnStart bool `yaml:"apply_on_start"`

	// BackupDir, when set, receives a database snapshot on server
	// start and shutdown (at most one per calendar day).
	BackupDir string `yaml:"backup_dir"`
}

// Default returns the configuration used when no file and no
// environment overrides are present.
func Default() Config {
	return Config{
		DB:           "ledgerd.db",
		Addr:         ":8080",
		LogLevel:     "info",
		ApplyOnStart: true,
	}
}

// Load reads the YAML file at path and applies environment overrides.
// A missing file is not an error, the defaults simply apply; a
// malformed file is. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults and environment apply.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true) // Reject unknown fields
			if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if _, err := cfg.Level(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvDB); ok {
		c.DB = v
	}
	if v, ok := os.LookupEnv(EnvAddr); ok {
		c.Addr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvApplyOnStart); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvApplyOnStart, err)
		}
		c.ApplyOnStart = b
	}
	if v, ok := os.LookupEnv(EnvBackupDir); ok {
		c.BackupDir = v
	}
	return nil
}

// Level maps LogLevel onto slog. Empty means info.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.LogLevel)
}
