package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load resolves the effective configuration. explicitPath comes from the
// --config flag; when empty, the environment and then the conventional
// location are tried. A missing config file is not an error — defaults
// apply — but an explicitly named file must exist.
func Load(explicitPath string, env EnvOverrides, logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	path, required := resolvePath(explicitPath, env)
	if path != "" {
		if err := loadFile(path, required, cfg, logger); err != nil {
			return nil, err
		}
	}

	env.Apply(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// resolvePath picks the config file path and whether it must exist.
func resolvePath(explicitPath string, env EnvOverrides) (path string, required bool) {
	if explicitPath != "" {
		return explicitPath, true
	}

	if env.ConfigPath != "" {
		return env.ConfigPath, true
	}

	conventional, err := DefaultConfigPath()
	if err != nil {
		return "", false
	}

	return conventional, false
}

// loadFile decodes one TOML file into cfg. Unknown keys are fatal with a
// listing of what was not understood.
func loadFile(path string, required bool, cfg *Config, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		logger.Debug("no config file, using defaults", "path", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	logger.Debug("config file parsed", "path", path)

	return nil
}
