// Package cachedir resolves the on-disk layout of named chat caches
// under ~/.chatcache.
package cachedir

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatcache.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatcache")
}

// Dir returns the cache-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "caches", name)
}

// DBPath returns the SQLite database path for a cache.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "chat.db")
}

// LockPath returns the lock file path for a cache.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// LogDir returns the log directory for a cache.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the SDK log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "chatcache.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the cache directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
