package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultServerAddr   = "127.0.0.1:8080"
	DefaultLogLevel     = "info"
	DefaultWriteRetries = 3
	DefaultRetryBackoff = 25 * time.Millisecond
	DefaultUnreadRPS    = 2.0
	DefaultUnreadBurst  = 10
)

// Config represents the inbox configuration file (.inbox/config.yaml).
type Config struct {
	Identity string         `yaml:"identity,omitempty"` // default actor for CLI commands
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// DatabaseConfig locates the SQLite file. Empty path means ~/.inbox/inbox.db.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig controls retries of conflicting writes.
type StoreConfig struct {
	WriteRetries int           `yaml:"write_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// LimitsConfig rate-limits unread polling per identity.
type LimitsConfig struct {
	UnreadRPS   float64 `yaml:"unread_rps"`
	UnreadBurst int     `yaml:"unread_burst"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: DefaultServerAddr},
		Log:    LogConfig{Level: DefaultLogLevel},
		Store: StoreConfig{
			WriteRetries: DefaultWriteRetries,
			RetryBackoff: DefaultRetryBackoff,
		},
		Limits: LimitsConfig{
			UnreadRPS:   DefaultUnreadRPS,
			UnreadBurst: DefaultUnreadBurst,
		},
	}
}

// Path returns the config file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, ".inbox", "config.yaml")
}

// Load builds the configuration for dir.
// Resolution order: defaults, .inbox/config.yaml, .env, INBOX_* environment.
// Missing files are not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dir))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config.yaml under dir.
func Save(dir string, cfg *Config) error {
	inboxDir := filepath.Join(dir, ".inbox")
	if err := os.MkdirAll(inboxDir, 0755); err != nil {
		return fmt.Errorf("failed to create .inbox dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate fills zero values with defaults and rejects impossible ones.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Store.WriteRetries < 0 {
		return fmt.Errorf("store.write_retries must not be negative, got %d", c.Store.WriteRetries)
	}
	if c.Store.RetryBackoff < 0 {
		return fmt.Errorf("store.retry_backoff must not be negative, got %s", c.Store.RetryBackoff)
	}
	if c.Limits.UnreadRPS <= 0 {
		c.Limits.UnreadRPS = DefaultUnreadRPS
	}
	if c.Limits.UnreadBurst <= 0 {
		c.Limits.UnreadBurst = DefaultUnreadBurst
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("INBOX_USER"); v != "" {
		cfg.Identity = v
	}
	if v := os.Getenv("INBOX_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("INBOX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("INBOX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("INBOX_WRITE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid INBOX_WRITE_RETRIES %q: %w", v, err)
		}
		cfg.Store.WriteRetries = n
	}
	if v := os.Getenv("INBOX_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid INBOX_RETRY_BACKOFF %q: %w", v, err)
		}
		cfg.Store.RetryBackoff = d
	}
	if v := os.Getenv("INBOX_UNREAD_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid INBOX_UNREAD_RPS %q: %w", v, err)
		}
		cfg.Limits.UnreadRPS = f
	}
	if v := os.Getenv("INBOX_UNREAD_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid INBOX_UNREAD_BURST %q: %w", v, err)
		}
		cfg.Limits.UnreadBurst = n
	}
	return nil
}
