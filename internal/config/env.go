package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Environment variable names recognized as overrides.
const (
	EnvConfigPath = "DIRSYNC_CONFIG"
	EnvLogLevel   = "DIRSYNC_LOG_LEVEL"
	EnvJournal    = "DIRSYNC_JOURNAL"
)

// EnvOverrides holds values read from the environment. Empty fields mean
// "not set".
type EnvOverrides struct {
	ConfigPath string
	LogLevel   string
	Journal    string // "0"/"false" disables the journal, a path redirects it
}

// ReadEnvOverrides collects the recognized environment variables.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	env := EnvOverrides{
		ConfigPath: os.Getenv(EnvConfigPath),
		LogLevel:   os.Getenv(EnvLogLevel),
		Journal:    os.Getenv(EnvJournal),
	}

	if env.ConfigPath != "" {
		logger.Debug("config path from environment", "path", env.ConfigPath)
	}

	return env
}

// Apply merges the overrides into cfg.
func (e EnvOverrides) Apply(cfg *Config) {
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}

	if e.Journal == "" {
		return
	}

	if enabled, err := strconv.ParseBool(e.Journal); err == nil {
		cfg.JournalEnabled = enabled
		return
	}

	// Not a boolean: treat as a journal database path.
	cfg.JournalPath = e.Journal
}
