package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Errors    ErrorsConfig    `koanf:"errors"`
	Models    []domain.Model  `koanf:"models"`
	Hooks     []HookConfig    `koanf:"hooks"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"` // Duration string like "30s"
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, postgres, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
	// Database is the generic database configuration for multi-dialect support
	Database DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// DatabaseConfig is the generic database configuration supporting multiple dialects.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

// RealtimeConfig controls socket subscriptions and write announcements.
type RealtimeConfig struct {
	Enabled bool   `koanf:"enabled"`
	Mirror  bool   `koanf:"mirror"` // Echo announcements back to the socket that issued the write
	Path    string `koanf:"path"`
}

// RateLimitConfig configures the global token bucket. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

type ErrorsConfig struct {
	Expose bool `koanf:"expose"` // Include diagnostic detail in failure bodies
}

// HookConfig binds a webhook to an interrupt point of one model's actions.
type HookConfig struct {
	Model   string            `koanf:"model"`
	Name    string            `koanf:"name"` // create, beforeUpdate, afterUpdate
	URL     string            `koanf:"url"`
	Timeout string            `koanf:"timeout"`
	Retries int               `koanf:"retries"`
	OnError string            `koanf:"on_error"` // allow or deny (default)
	Headers map[string]string `koanf:"headers"`
	// BlockPrivate refuses webhook URLs resolving to private or loopback
	// addresses.
	BlockPrivate bool `koanf:"block_private"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (if present) and overlays BLUEPRINT_
// environment variables, where a double underscore separates key segments.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("BLUEPRINT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "BLUEPRINT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":            8080,
		"server.request_timeout": "30s",
		"storage.type":           "sqlite",
		"storage.sqlite.path":    "./data/blueprint.db",
		"realtime.path":          "/socket",
		"errors.expose":          true,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	for i := range c.Models {
		if err := c.Models[i].Normalize(); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
	}
	for i := range c.Hooks {
		h := &c.Hooks[i]
		if h.Model == "" || h.Name == "" || h.URL == "" {
			return fmt.Errorf("hooks[%d]: model, name and url are required", i)
		}
		h.URL = substituteEnvVars(h.URL)
		for k, v := range h.Headers {
			h.Headers[k] = substituteEnvVars(v)
		}
	}
	c.Storage.Database.DSN = substituteEnvVars(c.Storage.Database.DSN)
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
