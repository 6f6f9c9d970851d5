package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loaded is a resolved config plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads and validates the config file over Default. A missing file is
// not an error; defaults come back with a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := findConfig(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default()}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
		return loaded, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	loaded.Exists = true
	loaded.Config, loaded.Warnings, err = Parse(string(content), loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return loaded, nil
}

// findConfig honours an explicit path as given. Otherwise config.jsonc wins
// over config.yaml in the config dir, and config.jsonc is reported when
// neither exists.
func findConfig(explicit string) (string, error) {
	path, err := ResolvePath(explicit)
	if err != nil || strings.TrimSpace(explicit) != "" {
		return path, err
	}
	for _, candidate := range []string{path, filepath.Join(filepath.Dir(path), "config.yaml")} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return path, nil
}
