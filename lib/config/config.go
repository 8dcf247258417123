// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the environment variable [Load] reads the
// configuration file path from.
const EnvironmentVariable = "RENDEZVOUS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local testing. Plain ws:// public URLs are
	// allowed.
	Development Environment = "development"
	// Production requires a wss:// public URL.
	Production Environment = "production"
)

// Config is the signaling server configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Listen is the TCP address the server accepts websocket
	// connections on.
	Listen string `yaml:"listen"`

	// PublicURL is the externally reachable websocket URL of this
	// server. It becomes the server half of every HostID issued here,
	// so it must be the address clients dial.
	PublicURL string `yaml:"public_url"`

	// ShardID is stamped into every HostID issued by this process.
	ShardID uint8 `yaml:"shard_id"`

	// MaxLobbyAttempts bounds the random draws made when allocating a
	// lobby id for a game.
	MaxLobbyAttempts int `yaml:"max_lobby_attempts"`

	// MailboxSize is the capacity of each session's inbound mailbox.
	MailboxSize int `yaml:"mailbox_size"`

	// PingInterval is how often the server pings idle sockets. A
	// socket that does not answer within twice this interval is
	// closed.
	PingInterval time.Duration `yaml:"ping_interval"`

	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MetricsPath is the HTTP path prometheus metrics are served on.
	// Empty disables the endpoint.
	MetricsPath string `yaml:"metrics_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment:      Development,
		Listen:           ":8080",
		PublicURL:        "ws://localhost:8080",
		ShardID:          0,
		MaxLobbyAttempts: 64,
		MailboxSize:      32,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		MetricsPath:      "/metrics",
		LogLevel:         "info",
	}
}

// Load loads configuration from the file named by RENDEZVOUS_CONFIG,
// or returns [Default] when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Fields
// absent from the file keep their [Default] values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.PublicURL = expandVars(c.PublicURL)
	c.Listen = expandVars(c.Listen)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns from the
// process environment.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Level parses LogLevel. Validate reports an unparseable level.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}

	if c.PublicURL == "" {
		errs = append(errs, errors.New("public_url is required"))
	} else if parsed, err := url.Parse(c.PublicURL); err != nil {
		errs = append(errs, fmt.Errorf("public_url: %w", err))
	} else {
		switch parsed.Scheme {
		case "wss":
		case "ws":
			if c.Environment == Production {
				errs = append(errs, errors.New("public_url must use wss:// in production"))
			}
		default:
			errs = append(errs, fmt.Errorf("public_url must be a ws:// or wss:// URL, got scheme %q", parsed.Scheme))
		}
	}

	if c.MaxLobbyAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_lobby_attempts must be at least 1, got %d", c.MaxLobbyAttempts))
	}
	if c.MailboxSize < 1 {
		errs = append(errs, fmt.Errorf("mailbox_size must be at least 1, got %d", c.MailboxSize))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, fmt.Errorf("ping_interval must be positive, got %s", c.PingInterval))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write_timeout must be positive, got %s", c.WriteTimeout))
	}

	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("metrics_path must start with /, got %q", c.MetricsPath))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
