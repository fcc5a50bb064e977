package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultListenAddr is used when server.listen_addr is not configured.
const DefaultListenAddr = ":8080"

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Generation
	if cfg.Generation.MaxVariants < 0 {
		errs = append(errs, fmt.Errorf("generation.max_variants %d must not be negative", cfg.Generation.MaxVariants))
	}

	// Provider availability warnings. The server can start without either
	// provider; the affected operations fail with clear errors instead.
	if cfg.Providers.ElevenLabs.APIKey == "" {
		slog.Warn("providers.elevenlabs.api_key is empty; audio generation will be unavailable")
	}
	if cfg.Providers.FFmpegAPI.APIKey == "" {
		slog.Warn("providers.ffmpeg_api.api_key is empty; concatenated export will be unavailable")
	}
	if cfg.Database.DSN == "" {
		slog.Warn("database.dsn is empty; falling back to the in-memory store, data is lost on restart")
	}

	return errors.Join(errs...)
}

// applyDefaults fills in default values for fields left unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
}
