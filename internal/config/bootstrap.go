package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
)

//go:embed defaults.yml
var defaultConfig []byte

// DefaultYAML returns the config written on first start.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultConfig))
	copy(out, defaultConfig)
	return out
}

// EnsureUserConfig returns userPath, writing the embedded defaults there first
// if it does not exist yet.
func EnsureUserConfig(dataDir string, userPath string) (string, error) {
	if userPath == "" {
		userPath = filepath.Join(dataDir, "config.yml")
	}

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(userPath, defaultConfig, 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}
