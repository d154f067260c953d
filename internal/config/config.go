// Package config resolves the effective dirsync configuration from three
// layers: built-in defaults, an optional TOML config file, and environment
// variable overrides. CLI flags are applied on top by the command layer.
package config

import (
	"fmt"
	"slices"
)

// Config is the effective configuration after all layers are merged.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// SortListings makes directory iteration deterministic.
	SortListings bool `toml:"sort_listings"`

	// QuarantineMalformed preserves an undecodable sidecar under a
	// .sync.corrupt-<timestamp> name instead of discarding it.
	QuarantineMalformed bool `toml:"quarantine_malformed"`

	// JournalEnabled controls the per-run audit database.
	JournalEnabled bool `toml:"journal_enabled"`

	// JournalPath overrides the default journal database location.
	JournalPath string `toml:"journal_path"`

	// WatchDebounceMS is the quiet period after a filesystem event before
	// watch mode triggers a re-sync.
	WatchDebounceMS int `toml:"watch_debounce_ms"`
}

// defaultWatchDebounceMS is the default quiet period for watch mode.
const defaultWatchDebounceMS = 500

// validLogLevels are the accepted log_level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "warn",
		SortListings:    true,
		JournalEnabled:  true,
		WatchDebounceMS: defaultWatchDebounceMS,
	}
}

// Validate checks value ranges after all layers are merged.
func Validate(cfg *Config) error {
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		return fmt.Errorf("log_level %q: must be one of %v", cfg.LogLevel, validLogLevels)
	}

	if cfg.WatchDebounceMS <= 0 {
		return fmt.Errorf("watch_debounce_ms %d: must be positive", cfg.WatchDebounceMS)
	}

	return nil
}
