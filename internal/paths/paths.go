// Package paths provides centralized path resolution for wavi.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// baseOverride lets tests and the -data flag relocate the data directory.
var baseOverride string

// SetBaseDir overrides the wavi base directory for this process.
func SetBaseDir(dir string) {
	baseOverride = dir
}

// BaseDir returns the wavi base directory (~/.wavi).
func BaseDir() (string, error) {
	if baseOverride != "" {
		return baseOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wavi"), nil
}

// DataPath returns a path within the wavi data directory (~/.wavi/<subpath>).
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// EnsureBaseDir creates the data directory if it does not exist.
func EnsureBaseDir() error {
	base, err := BaseDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(base, 0750)
}

// ConfigPath returns the active wavi.json path.
// Priority: ./wavi.json (current dir) > ~/.wavi/wavi.json
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath() (string, error) {
	localPath := "wavi.json"
	if _, err := os.Stat(localPath); err == nil {
		absPath, err := filepath.Abs(localPath)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		return absPath, nil
	}

	globalPath, err := DataPath("wavi.json")
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	// No config found - valid state
	return "", nil
}

// DefaultConfigPath returns the default location for new configs (~/.wavi/wavi.json).
func DefaultConfigPath() (string, error) {
	return DataPath("wavi.json")
}

// LogPath returns the TUI log file path (~/.wavi/wavi.log).
func LogPath() (string, error) {
	return DataPath("wavi.log")
}

// SessionDBPath returns the WhatsApp session database path (~/.wavi/whatsapp.db).
func SessionDBPath() (string, error) {
	return DataPath("whatsapp.db")
}
