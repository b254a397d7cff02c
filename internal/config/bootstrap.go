package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureUserConfig seeds the data dir with the bundled defaults on first run
// and reports the path the engine loads from. An existing user file is never
// touched, even when the bundled defaults change between releases.
func EnsureUserConfig(dataDir, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	switch _, err := os.Stat(userPath); {
	case err == nil:
		return userPath, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	defaults, err := os.ReadFile(defaultPath)
	if err != nil {
		return "", fmt.Errorf("read bundled config: %w", err)
	}
	if err := os.WriteFile(userPath, defaults, 0o644); err != nil {
		return "", fmt.Errorf("seed user config: %w", err)
	}
	return userPath, nil
}
