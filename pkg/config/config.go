// Package config handles MimirKB configuration via environment variables.
//
// MimirKB reads environment variables prefixed with MIMIRKB_ so that the
// same binary configures cleanly in shells, systemd units, and containers.
// An optional YAML file can supply the same settings; explicit environment
// variables win over the file.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Printf("store: %s (%s backend)\n", cfg.Store.Dir, cfg.Store.Backend)
//
// Environment Variables:
//   - MIMIRKB_STORE_DIR="./knowledge"
//   - MIMIRKB_STORE_BACKEND="file" or "badger"
//   - MIMIRKB_STORE_SYNC_WRITES=true
//   - MIMIRKB_STORE_CACHE_SIZE=256
//   - MIMIRKB_ENCRYPTION_PASSPHRASE="..." (badger backend only)
//   - MIMIRKB_MAX_TRAVERSAL_DEPTH=10
//   - MIMIRKB_MOVE_RETRY_LIMIT=5
//   - MIMIRKB_AUDIT_ENABLED=true
//   - MIMIRKB_AUDIT_LOG_PATH="./mimirkb-audit.jsonl"
//   - MIMIRKB_METRICS_ENABLED=true
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names for the store.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds all MimirKB configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Dir is the store root (file backend) or database directory (badger).
	Dir string `yaml:"dir"`

	// Backend is "file" (one document per entry, the default) or "badger".
	Backend string `yaml:"backend"`

	// SyncWrites forces fsync after each write (badger backend).
	SyncWrites bool `yaml:"sync_writes"`

	// CacheSize enables an in-memory LRU read cache of up to this many
	// decoded entries in front of the backend. 0 disables the cache.
	CacheSize int `yaml:"cache_size"`

	// EncryptionPassphrase enables at-rest encryption (badger backend).
	// Accepted from the environment only, never from the YAML file.
	EncryptionPassphrase string `yaml:"-"`
}

// EngineConfig tunes the graph engine.
type EngineConfig struct {
	MaxTraversalDepth int `yaml:"max_traversal_depth"`
	MoveRetryLimit    int `yaml:"move_retry_limit"`
}

// AuditConfig controls the JSONL mutation audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:     "./knowledge",
			Backend: BackendFile,
		},
		Engine: EngineConfig{
			MaxTraversalDepth: 10,
			MoveRetryLimit:    5,
		},
		Audit: AuditConfig{
			LogPath: "./mimirkb-audit.jsonl",
		},
	}
}

// LoadFromEnv builds a Config from environment variables, with defaults
// applied where variables are not set.
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Store.Dir = getEnv("MIMIRKB_STORE_DIR", cfg.Store.Dir)
	cfg.Store.Backend = strings.ToLower(getEnv("MIMIRKB_STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.SyncWrites = getEnvBool("MIMIRKB_STORE_SYNC_WRITES", cfg.Store.SyncWrites)
	cfg.Store.CacheSize = getEnvInt("MIMIRKB_STORE_CACHE_SIZE", cfg.Store.CacheSize)
	cfg.Store.EncryptionPassphrase = getEnv("MIMIRKB_ENCRYPTION_PASSPHRASE", "")

	cfg.Engine.MaxTraversalDepth = getEnvInt("MIMIRKB_MAX_TRAVERSAL_DEPTH", cfg.Engine.MaxTraversalDepth)
	cfg.Engine.MoveRetryLimit = getEnvInt("MIMIRKB_MOVE_RETRY_LIMIT", cfg.Engine.MoveRetryLimit)

	cfg.Audit.Enabled = getEnvBool("MIMIRKB_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.LogPath = getEnv("MIMIRKB_AUDIT_LOG_PATH", cfg.Audit.LogPath)

	cfg.Metrics.Enabled = getEnvBool("MIMIRKB_METRICS_ENABLED", cfg.Metrics.Enabled)

	return cfg
}

// LoadFile reads a YAML config file and overlays environment variables on
// top of it, so explicit env always wins.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	overlayEnv(cfg)
	return cfg, nil
}

// overlayEnv re-applies environment variables over a file-loaded config.
func overlayEnv(cfg *Config) {
	cfg.Store.Dir = getEnv("MIMIRKB_STORE_DIR", cfg.Store.Dir)
	cfg.Store.Backend = strings.ToLower(getEnv("MIMIRKB_STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.SyncWrites = getEnvBool("MIMIRKB_STORE_SYNC_WRITES", cfg.Store.SyncWrites)
	cfg.Store.CacheSize = getEnvInt("MIMIRKB_STORE_CACHE_SIZE", cfg.Store.CacheSize)
	cfg.Store.EncryptionPassphrase = getEnv("MIMIRKB_ENCRYPTION_PASSPHRASE", cfg.Store.EncryptionPassphrase)
	cfg.Engine.MaxTraversalDepth = getEnvInt("MIMIRKB_MAX_TRAVERSAL_DEPTH", cfg.Engine.MaxTraversalDepth)
	cfg.Engine.MoveRetryLimit = getEnvInt("MIMIRKB_MOVE_RETRY_LIMIT", cfg.Engine.MoveRetryLimit)
	cfg.Audit.Enabled = getEnvBool("MIMIRKB_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.LogPath = getEnv("MIMIRKB_AUDIT_LOG_PATH", cfg.Audit.LogPath)
	cfg.Metrics.Enabled = getEnvBool("MIMIRKB_METRICS_ENABLED", cfg.Metrics.Enabled)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendBadger:
	default:
		return fmt.Errorf("unknown store backend %q (use %q or %q)",
			c.Store.Backend, BackendFile, BackendBadger)
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store directory must not be empty")
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store cache size must not be negative")
	}
	if c.Store.EncryptionPassphrase != "" && c.Store.Backend != BackendBadger {
		return fmt.Errorf("encryption requires the %q backend", BackendBadger)
	}
	if c.Engine.MaxTraversalDepth < 1 {
		return fmt.Errorf("max traversal depth must be at least 1")
	}
	if c.Engine.MoveRetryLimit < 1 {
		return fmt.Errorf("move retry limit must be at least 1")
	}
	if c.Audit.Enabled && c.Audit.LogPath == "" {
		return fmt.Errorf("audit enabled but no log path configured")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
