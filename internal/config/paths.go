package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// appDirName is the directory name used under the user config and cache
// roots.
const appDirName = "dirsync"

// configFileName is the config file basename.
const configFileName = "config.toml"

// DefaultConfigPath returns the conventional config file location,
// typically ~/.config/dirsync/config.toml.
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}

	return filepath.Join(base, appDirName, configFileName), nil
}

// DefaultJournalPath returns the conventional journal database location,
// typically ~/.cache/dirsync/journal.db.
func DefaultJournalPath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache dir: %w", err)
	}

	return filepath.Join(base, appDirName, "journal.db"), nil
}
