// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the delivery id cache; 0 disables eviction.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the memory store.
	ShardCount int `koanf:"shard_count"`

	// StoreDriver is memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// SourceWeights weighs sourceA and sourceB when an overall score is derived.
	SourceWeights map[string]float64 `koanf:"source_weights"`

	// SourceALabel and SourceBLabel name the score sources in CSV exports.
	SourceALabel string `koanf:"source_a_label"`
	SourceBLabel string `koanf:"source_b_label"`

	// ExportDateLayout is the Go layout of the CSV Date column.
	ExportDateLayout string `koanf:"export_date_layout"`

	// ExportTimezone is the IANA zone CSV dates are rendered in.
	ExportTimezone string `koanf:"export_timezone"`

	// ExportQuoteCSV switches CSV exports to RFC 4180 quoting.
	ExportQuoteCSV bool `koanf:"export_quote_csv"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU() * 2,
		DedupeSize:  100_000,
		ShardCount:  16,
		StoreDriver: StoreMemory,
		SQLitePath:  "data/devhistory.db",
		SourceWeights: map[string]float64{
			"sourceA": 1.0,
			"sourceB": 1.0,
		},
		SourceALabel:     "GitHub",
		SourceBLabel:     "LeetCode",
		ExportDateLayout: "1/2/2006",
		ExportTimezone:   "UTC",
	}
}

// Location resolves ExportTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ExportTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: export_timezone %q: %w", ErrInvalidConfig, c.ExportTimezone, err)
	}
	return loc, nil
}

// Validate reports the first setting the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("%w: shard_count must be positive, got %d", ErrInvalidConfig, c.ShardCount)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownStoreDriver, c.StoreDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	for name, w := range c.SourceWeights {
		if w < 0 {
			return fmt.Errorf("%w: source weight %s is negative", ErrInvalidConfig, name)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
