// Package config provides the configuration schema and loader for the
// Narravox narration server.
package config

import "log/slog"

// LogLevel controls log verbosity for the Narravox server.
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

// Config is the root configuration structure for Narravox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds network and logging settings for the Narravox server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string. When empty the server falls
	// back to the in-memory store, which loses all data on restart.
	DSN string `yaml:"dsn"`
}

// ProvidersConfig declares credentials and endpoints for the external
// providers the server depends on.
type ProvidersConfig struct {
	ElevenLabs ProviderEntry `yaml:"elevenlabs"`
	FFmpegAPI  ProviderEntry `yaml:"ffmpeg_api"`
}

// ProviderEntry is the common configuration block shared by both provider
// types.
type ProviderEntry struct {
	// APIKey is the authentication credential for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`
}

// GenerationConfig tunes the audio-variant lifecycle.
type GenerationConfig struct {
	// MaxVariants caps how many variants a single chunk may hold.
	// Zero selects the default of 5.
	MaxVariants int `yaml:"max_variants"`
}

// SlogLevel converts the configured log level to its slog equivalent.
// Unset or unrecognised levels map to info.
func (c ServerConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
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
