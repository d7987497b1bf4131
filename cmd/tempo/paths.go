package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/avickers/tempo/internal/settings"
)

// configDir resolves the per-user tempo directory, honoring TEMPO_HOME for
// tests and sandboxed setups.
func configDir() string {
	if dir := os.Getenv("TEMPO_HOME"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tempo")
}

func defaultDBPath() string     { return filepath.Join(configDir(), "tempo.db") }
func defaultSocketPath() string { return filepath.Join(configDir(), "daemon.sock") }
func defaultLockPath() string   { return filepath.Join(configDir(), "daemon.lock") }

// settingsPath picks the file matching the backend's serializer.
func settingsPath(backend settings.Backend) string {
	if backend == settings.BackendFlatFile {
		return filepath.Join(configDir(), "settings.toml")
	}
	return filepath.Join(configDir(), "settings.yaml")
}

func settingsBackend() settings.Backend {
	return settings.DetectBackend(runtime.GOOS)
}
