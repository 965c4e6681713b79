// Package config loads the procflow configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvDatabase  = "PROCFLOW_DATABASE"
	EnvRedisAddr = "PROCFLOW_REDIS_ADDR"
	EnvLogLevel  = "PROCFLOW_LOG_LEVEL"
	EnvRedisPass = "PROCFLOW_REDIS_PASSWORD"
)

// Config is the procflow.yaml file.
type Config struct {
	Version  int    `yaml:"version"`
	Database string `yaml:"database"`
	LogLevel string `yaml:"log_level"`
	Limits   Limits `yaml:"limits"`
	Server   Server `yaml:"server"`
	Redis    Redis  `yaml:"redis"`
}

// Limits bound a single run.
type Limits struct {
	MaxNodes int `yaml:"max_nodes"`
	MaxDepth int `yaml:"max_depth"`
}

// Server configures the HTTP state-change feed.
type Server struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// Redis configures the shared run lock. An empty Addr selects the
// in-process lock.
type Redis struct {
	Addr         string        `yaml:"addr"`
	PasswordFile string        `yaml:"password_file"`
	Password     string        `yaml:"-"`
	Prefix       string        `yaml:"prefix"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:  1,
		Database: "./procflow.db",
		LogLevel: "info",
		Limits:   Limits{MaxNodes: 500, MaxDepth: 20},
		Server:   Server{Addr: ":8080", Metrics: true},
		Redis:    Redis{Prefix: "procflow:", LockTTL: 30 * time.Second},
	}
}

// Load reads path over the defaults, applies environment overrides and
// resolves secrets. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

func (c *Config) resolveSecrets() error {
	if c.Redis.PasswordFile != "" {
		content, err := os.ReadFile(c.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("failed to read redis password from %s: %w", c.Redis.PasswordFile, err)
		}
		c.Redis.Password = strings.TrimSpace(string(content))
		return nil
	}
	pass, err := ResolveSecret(EnvRedisPass)
	if err != nil {
		return err
	}
	c.Redis.Password = pass
	return nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if c.Database == "" {
		return errors.New("database must be set")
	}
	if c.Limits.MaxNodes <= 0 {
		return fmt.Errorf("limits.max_nodes must be positive, got %d", c.Limits.MaxNodes)
	}
	if c.Limits.MaxDepth <= 0 {
		return fmt.Errorf("limits.max_depth must be positive, got %d", c.Limits.MaxDepth)
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be positive, got %s", c.Redis.LockTTL)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}
