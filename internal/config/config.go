// Package config loads the analyzer configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// Run log ingestion
	Runs RunsConfig `toml:"runs"`

	// Deck definition
	Deck DeckConfig `toml:"deck"`

	// Analysis pipeline
	Analysis AnalysisConfig `toml:"analysis"`

	// Report/run persistence
	Database DatabaseConfig `toml:"database"`

	// Directory watching
	Watch WatchConfig `toml:"watch"`
}

// RunsConfig contains run log input settings.
type RunsConfig struct {
	Dir     string `toml:"dir"`     // Directory the simulation runner writes into
	Pattern string `toml:"pattern"` // File name pattern (e.g. "*.json")
}

// DeckConfig contains deck definition settings.
type DeckConfig struct {
	File string `toml:"file"` // Path to the deck definition TOML
}

// AnalysisConfig contains pipeline settings.
type AnalysisConfig struct {
	Workers int `toml:"workers"` // Accumulation shards (0 = NumCPU)
}

// DatabaseConfig contains persistence settings.
type DatabaseConfig struct {
	Path        string `toml:"path"`         // SQLite database path
	AutoMigrate bool   `toml:"auto_migrate"` // Apply pending migrations on open
}

// WatchConfig contains directory watching settings.
type WatchConfig struct {
	Settle            string  `toml:"settle"`               // Quiet period before a file counts as complete (e.g. "500ms")
	MaxFilesPerSecond float64 `toml:"max_files_per_second"` // Ingest rate cap
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Runs: RunsConfig{
			Dir:     "runs",
			Pattern: "*.json",
		},
		Deck: DeckConfig{
			File: "deck.toml",
		},
		Analysis: AnalysisConfig{
			Workers: 0,
		},
		Database: DatabaseConfig{
			Path:        "balance.db",
			AutoMigrate: true,
		},
		Watch: WatchConfig{
			Settle:            "500ms",
			MaxFilesPerSecond: 20,
		},
	}
}

// Load loads the configuration from path. A missing file yields the default
// configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// ParseSettle returns the watch settle period as a duration.
func (c *WatchConfig) ParseSettle() (time.Duration, error) {
	if c.Settle == "" {
		return 500 * time.Millisecond, nil
	}
	d, err := time.ParseDuration(c.Settle)
	if err != nil {
		return 0, fmt.Errorf("parse watch settle: %w", err)
	}
	return d, nil
}
