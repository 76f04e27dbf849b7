// Package config loads the node configuration: YAML on disk, then
// CHAINKERNEL_* environment overrides (optionally from a .env file).
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chainkernel/internal/alert"
	"github.com/ppiankov/chainkernel/internal/ratelimit"
)

// LogConfig selects the log level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"  env:"CHAINKERNEL_LOG_LEVEL"`
	Format string `yaml:"format" env:"CHAINKERNEL_LOG_FORMAT"`
}

// IndexerConfig selects the SQL projection store. Driver is "sqlite" or
// "postgres".
type IndexerConfig struct {
	Driver string `yaml:"driver" env:"CHAINKERNEL_INDEXER_DRIVER"`
	DSN    string `yaml:"dsn"    env:"CHAINKERNEL_INDEXER_DSN"`
}

// Config holds all node parameters.
type Config struct {
	// Root is the name the DAO root entity is derived from.
	Root     string `yaml:"root"      env:"CHAINKERNEL_ROOT"`
	GRPCAddr string `yaml:"grpc_addr" env:"CHAINKERNEL_GRPC_ADDR"`
	HTTPAddr string `yaml:"http_addr" env:"CHAINKERNEL_HTTP_ADDR"`
	EventLog string `yaml:"event_log" env:"CHAINKERNEL_EVENT_LOG"`
	// KillSwitchPolicy is a YAML file of kill-switch rules applied at
	// start and on every change.
	KillSwitchPolicy string `yaml:"killswitch_policy" env:"CHAINKERNEL_KILLSWITCH_POLICY"`

	Log        LogConfig                 `yaml:"log"`
	Indexer    IndexerConfig             `yaml:"indexer"`
	Alerts     []alert.AlertConfig       `yaml:"alerts"`
	RateLimits ratelimit.RateLimitConfig `yaml:"rate_limits"`
}

// Dir returns the default state directory, ~/.chainkernel.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chainkernel"
	}
	return filepath.Join(home, ".chainkernel")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Root:             "root",
		GRPCAddr:         "127.0.0.1:9470",
		HTTPAddr:         "127.0.0.1:9471",
		EventLog:         filepath.Join(dir, "events.jsonl"),
		KillSwitchPolicy: filepath.Join(dir, "killswitch.yaml"),
		Log:              LogConfig{Level: "info", Format: "text"},
		Indexer:          IndexerConfig{Driver: "sqlite", DSN: filepath.Join(dir, "index.db")},
	}
}

// Load reads the config at path over the defaults and applies env
// overrides. Empty path falls back to ~/.chainkernel/config.yaml. A
// missing file yields the defaults. The returned hash is the SHA-256 of
// the raw file bytes (of empty input when no file exists).
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}
	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process env
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	err := envdecode.Decode(cfg)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// Validate checks the fields the node cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return errors.New("config: root must not be empty")
	}
	switch c.Indexer.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown indexer driver %q", c.Indexer.Driver)
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			return fmt.Errorf("config: alert %d has no url", i)
		}
	}
	return nil
}
