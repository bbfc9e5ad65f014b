// Package config loads sqlscope configuration: which dialect to analyze
// with, the optional catalog connection, and cache tuning. It is decoupled
// from CLI concerns so the language server and other tools can load the
// same file.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/sqlscope/pkg/dialect"
)

// Default configuration values.
const (
	DefaultDialect      = "postgres"
	DefaultCacheTTL     = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxDepth     = 200
)

// Config is the full sqlscope configuration.
type Config struct {
	// Dialect is the registered dialect documents are analyzed with.
	Dialect string `koanf:"dialect"`

	// MaxDepth bounds syntax-tree depth before analysis gives up.
	MaxDepth int `koanf:"max_depth"`

	LogLevel string `koanf:"log_level"`

	Cache      CacheConfig       `koanf:"cache"`
	Connection *ConnectionConfig `koanf:"connection"`
}

// CacheConfig tunes the schema cache.
type CacheConfig struct {
	TTL          time.Duration `koanf:"ttl"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// ConnectionConfig describes the catalog database. Nil means no catalog;
// analysis runs without cross-checks.
type ConnectionConfig struct {
	Type     string            `koanf:"type"` // postgres or mysql
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schemas  []string          `koanf:"schemas"`
	Options  map[string]string `koanf:"options"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := dialect.Get(c.Dialect); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("config: max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.Connection != nil {
		switch c.Connection.Type {
		case "postgres", "mysql":
		case "":
			return fmt.Errorf("config: connection.type is required")
		default:
			return fmt.Errorf("config: unsupported connection type %q (postgres and mysql are supported)", c.Connection.Type)
		}
		if c.Connection.Database == "" {
			return fmt.Errorf("config: connection.database is required")
		}
	}
	return nil
}
