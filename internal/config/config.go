// Package config provides configuration for the gpas CLI.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration read from the environment. Flag values are
// layered on top by the CLI; nothing in here is mutated after Load.
type Config struct {
	// Explicit binary locations. Empty means search PATH.
	ReadItAndKeepPath string `envconfig:"GPAS_READITANDKEEP_PATH"`
	SamtoolsPath      string `envconfig:"GPAS_SAMTOOLS_PATH"`

	// Directory holding reference genomes and country data. Empty means
	// use the data directory next to the executable.
	DataPath string `envconfig:"GPAS_DATA_PATH"`

	// Logging
	LogFile  string `envconfig:"GPAS_LOG_FILE"`
	LogLevel string `envconfig:"GPAS_LOG_LEVEL" default:"info"`
}

// Load reads configuration from GPAS_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// Level returns the slog level configured via GPAS_LOG_LEVEL.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
