// Package xdgpath centralizes the XDG base-directory lookups used by
// config, cache, and plugin discovery, mirroring the path-resolution
// helpers the teacher keeps in its own fs.go.
package xdgpath

import (
	"os"
	"path/filepath"
)

const appName = "scryforge"

// ConfigHome returns $XDG_CONFIG_HOME/scryforge, falling back to
// ~/.config/scryforge.
func ConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

// DataHome returns $XDG_DATA_HOME/scryforge, falling back to
// ~/.local/share/scryforge.
func DataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName)
}

// RuntimeDir returns $XDG_RUNTIME_DIR, falling back to /tmp, per spec.md §6.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return "/tmp"
}

// SocketPath returns the default JSON-RPC socket path:
// $XDG_RUNTIME_DIR/scryforge.sock, falling back to /tmp/scryforge.sock.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "scryforge.sock")
}

// ConfigFile returns $XDG_CONFIG_HOME/scryforge/config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigHome(), "config.toml")
}

// CacheFile returns $XDG_DATA_HOME/scryforge/cache.db.
func CacheFile() string {
	return filepath.Join(DataHome(), "cache.db")
}

// PluginRoots returns the well-known plugin search roots in priority order:
// user plugins first, then system plugins.
func PluginRoots() []string {
	return []string{
		filepath.Join(DataHome(), "plugins"),
		"/usr/share/scryforge/plugins",
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return "."
}
