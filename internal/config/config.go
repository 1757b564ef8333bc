// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level netreplay configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Convert ConvertConfig `mapstructure:"convert"`
	Probe   ProbeConfig   `mapstructure:"probe"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string           `mapstructure:"level"`  // debug | info | warn | error
	Format string           `mapstructure:"format"` // text | json
	File   FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig enables rotated file logging next to stderr output.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ConvertConfig carries conversion defaults.
type ConvertConfig struct {
	Layout string `mapstructure:"layout"` // linux-le-64 | linux-le-32
}

// ProbeConfig carries echo-probe recording defaults.
type ProbeConfig struct {
	Count      int    `mapstructure:"count"`
	IntervalMS int    `mapstructure:"interval_ms"`
	TimeoutMS  int    `mapstructure:"timeout_ms"`
	Tool       string `mapstructure:"tool"`
}

// Load reads the configuration file at path. An empty path searches for
// netreplay.yml in the working directory and /etc/netreplay, and a missing
// file there is not an error: defaults apply. Environment variables with the
// NETREPLAY_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		dir := filepath.Dir(path)
		filename := filepath.Base(path)
		ext := filepath.Ext(filename)
		v.SetConfigName(strings.TrimSuffix(filename, ext))
		v.SetConfigType(strings.TrimPrefix(ext, "."))
		v.AddConfigPath(dir)
	} else {
		v.SetConfigName("netreplay")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/netreplay")
	}

	v.SetEnvPrefix("NETREPLAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.File.MaxSizeMB == 0 {
		cfg.Log.File.MaxSizeMB = 50
	}
	if cfg.Log.File.MaxBackups == 0 {
		cfg.Log.File.MaxBackups = 3
	}
	if cfg.Convert.Layout == "" {
		cfg.Convert.Layout = "linux-le-64"
	}
	if cfg.Probe.Count == 0 {
		cfg.Probe.Count = 3
	}
	if cfg.Probe.IntervalMS == 0 {
		cfg.Probe.IntervalMS = 1000
	}
	if cfg.Probe.TimeoutMS == 0 {
		cfg.Probe.TimeoutMS = 2000
	}
	if cfg.Probe.Tool == "" {
		cfg.Probe.Tool = "evping"
	}
}
