// Package config provides the configuration schema and loader for the
// soundbank bot. Settings come from an optional YAML file overlaid by
// environment variables; the Discord token and command prefix are
// expected to arrive through the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity for the bot.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for soundbank.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Playback PlaybackConfig `yaml:"playback"`
	Upload   UploadConfig   `yaml:"upload"`
}

// DiscordConfig holds gateway credentials and the command prefix.
type DiscordConfig struct {
	// Token is the Discord bot token. Environment-only by convention,
	// but the YAML key exists for local development.
	Token string `yaml:"token" env:"DISCORD_TOKEN"`

	// Prefix is the command prefix (e.g., "!").
	Prefix string `yaml:"prefix" env:"SOUNDBANK_PREFIX"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls slog verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"SOUNDBANK_LOG_LEVEL"`

	// MetricsAddr is the listen address for the /metrics endpoint.
	// Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr" env:"SOUNDBANK_METRICS_ADDR"`
}

// StorageConfig holds the on-disk layout.
type StorageConfig struct {
	// SoundsDir is the root directory holding one subdirectory per guild.
	SoundsDir string `yaml:"sounds_dir" env:"SOUNDBANK_SOUNDS_DIR"`

	// TempDir holds in-flight uploads, one file per uploading user.
	TempDir string `yaml:"temp_dir" env:"SOUNDBANK_TEMP_DIR"`
}

// PlaybackConfig holds playback tuning.
type PlaybackConfig struct {
	// DefaultVolume is applied to every new stream. 1 plays clips unchanged.
	DefaultVolume float64 `yaml:"default_volume" env:"SOUNDBANK_DEFAULT_VOLUME"`
}

// UploadConfig holds add-sound flow tuning.
type UploadConfig struct {
	// SessionTTL is how long an unfinished add-sound session survives.
	SessionTTL time.Duration `yaml:"session_ttl" env:"SOUNDBANK_SESSION_TTL"`
}

// applyDefaults fills unset fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Discord.Prefix == "" {
		cfg.Discord.Prefix = "!"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.SoundsDir == "" {
		cfg.Storage.SoundsDir = "sounds"
	}
	if cfg.Storage.TempDir == "" {
		cfg.Storage.TempDir = filepath.Join(os.TempDir(), "soundbank-uploads")
	}
	if cfg.Playback.DefaultVolume == 0 {
		cfg.Playback.DefaultVolume = 1
	}
	if cfg.Upload.SessionTTL == 0 {
		cfg.Upload.SessionTTL = 30 * time.Minute
	}
}
