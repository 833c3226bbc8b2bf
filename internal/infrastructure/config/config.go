// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Stream    StreamConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// TerminalConfig holds terminal engine configuration.
type TerminalConfig struct {
	// MaxLines bounds each session's transcript; oldest lines evict first.
	MaxLines int `envconfig:"TERM_MAX_LINES" default:"1000"`
	// MaxHistory bounds each session's command history.
	MaxHistory int `envconfig:"TERM_MAX_HISTORY" default:"500"`
	// WorkingDir is the starting directory for new sessions.
	WorkingDir string `envconfig:"TERM_WORKDIR" default:"/"`
	// Shell is the binary used for non-built-in commands.
	Shell string `envconfig:"TERM_SHELL" default:"/bin/sh"`
	// PalettePath optionally points at a YAML color theme.
	PalettePath string `envconfig:"TERM_PALETTE" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StreamConfig throttles WebSocket event delivery per connection.
type StreamConfig struct {
	EventsPerSecond int `envconfig:"STREAM_EPS" default:"120"`
	Burst           int `envconfig:"STREAM_BURST" default:"240"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Terminal: TerminalConfig{
			MaxLines:   1000,
			MaxHistory: 500,
			WorkingDir: "/",
			Shell:      "/bin/sh",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Stream: StreamConfig{
			EventsPerSecond: 120,
			Burst:           240,
		},
	}
}
