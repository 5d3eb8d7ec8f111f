package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath returns the XDG-compliant default config path.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./mangaup.toml"
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "mangaup", "config.toml")
}

// Discover finds the config file. The config file is optional, so an empty
// path with a nil error means "none found".
//
// Search order:
//  1. MANGAUP_CONFIG environment variable (must exist when set)
//  2. ./mangaup.toml
//  3. $XDG_CONFIG_HOME/mangaup/config.toml
func Discover() (string, error) {
	if envPath := os.Getenv("MANGAUP_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("MANGAUP_CONFIG=%s: %w", envPath, err)
		}
		return envPath, nil
	}

	for _, p := range []string{"./mangaup.toml", DefaultPath()} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// ResolveHome returns the tool home directory: the configured value, then
// MANGAUP_HOME, then the directory containing the running executable.
func ResolveHome(configured string) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}
	if env := os.Getenv("MANGAUP_HOME"); env != "" {
		return filepath.Abs(env)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// DefaultHistoryPath is where run history lives when not configured.
func DefaultHistoryPath(home string) string {
	return filepath.Join(home, "data", "history.db")
}
