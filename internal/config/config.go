// Package config loads courseswap host configuration.
//
// Values come from, in increasing precedence: built-in defaults, the config
// file, COURSESWAP_* environment variables, and command-line flags bound by
// the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// COURSESWAP_LOG_LEVEL for log.level.
const EnvPrefix = "COURSESWAP"

// Config holds all host settings.
type Config struct {
	DB      string        `mapstructure:"db"`
	Log     LogConfig     `mapstructure:"log"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Tracing TracingConfig `mapstructure:"tracing"`
	API     APIConfig     `mapstructure:"api"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// File, when set, additionally writes logs to a rotating file.
	File string `mapstructure:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `mapstructure:"max_backups"`
}

// EngineConfig holds swap engine options.
type EngineConfig struct {
	// RefundOnAccept returns superseded counter-offers to their owners
	// instead of forfeiting them.
	RefundOnAccept bool `mapstructure:"refund_on_accept"`
}

// CacheConfig controls the read cache in front of the store.
type CacheConfig struct {
	// TTL of cached reads. Zero disables expiry; negative disables the cache.
	// Off by default: other processes writing the same database file do not
	// invalidate it, so only queries may see entries up to TTL old.
	TTL time.Duration `mapstructure:"ttl"`
}

// TracingConfig holds dispatch tracing settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter is "stdout" or "file".
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	FilePath string `mapstructure:"file_path"`
}

// APIConfig holds HTTP host settings.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DB: "courseswap.db",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Cache: CacheConfig{
			TTL: -1,
		},
		Tracing: TracingConfig{
			Exporter: "stdout",
		},
		API: APIConfig{
			Listen: ":8080",
		},
	}
}

// SetDefaults registers Defaults() with v so every key is known to viper,
// which is required for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("db", d.DB)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("engine.refund_on_accept", d.Engine.RefundOnAccept)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("api.listen", d.API.Listen)
}

// Load reads configuration into a Config.
//
// Config lookup order:
//  1. cfgFile, when non-empty (must exist)
//  2. ./courseswap.yaml
//  3. ~/.config/courseswap/config.yaml
//
// A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if _, err := os.Stat("courseswap.yaml"); err == nil {
		v.SetConfigFile("courseswap.yaml")
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "courseswap"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg for errors.
func Validate(cfg Config) error {
	if cfg.DB == "" {
		return fmt.Errorf("db must not be empty")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_size_mb and log.max_backups must not be negative")
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tracing TracingConfig) error {
	switch tracing.Exporter {
	case "", "stdout", "file":
	default:
		return fmt.Errorf("tracing.exporter must be \"stdout\" or \"file\", got %q", tracing.Exporter)
	}
	if tracing.Enabled && tracing.Exporter == "file" && tracing.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
