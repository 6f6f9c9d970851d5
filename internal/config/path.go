package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "talkie"

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir, "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", appDir, "config.jsonc"), nil
}

// ResolveStoragePath returns storage.path, or talkie.db under the state dir.
func ResolveStoragePath(cfg Config) (string, error) {
	return stateFile(cfg.Storage.Path, "talkie.db")
}

// ResolveLogPath returns log.path, or log.jsonl under the state dir.
func ResolveLogPath(cfg Config) (string, error) {
	return stateFile(cfg.Log.Path, "log.jsonl")
}

// StateDir returns talkie's directory under XDG_STATE_HOME, falling back to
// ~/.local/state.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for state files")
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

func stateFile(explicit, name string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
