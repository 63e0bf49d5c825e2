// Package config loads and validates the hub's daemon configuration file,
// grounded on the teacher's BurntSushi/toml-based config package: a
// defaults-then-overlay load, typed sections, and conversion of the
// integer sync_interval_minutes into a time.Duration.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"scryforge/internal/xdgpath"
)

// Config is the top-level daemon configuration, matching spec.md §6.
type Config struct {
	Daemon    Daemon                    `toml:"daemon"`
	Cache     Cache                     `toml:"cache"`
	Providers map[string]ProviderConfig `toml:"providers"`
}

// Daemon controls transport binding and logging.
type Daemon struct {
	BindAddress string `toml:"bind_address"`
	LogLevel    string `toml:"log_level"`
}

// Cache controls the cache store's location and retention policy.
type Cache struct {
	Path               string `toml:"path"`
	MaxItemsPerStream  int    `toml:"max_items_per_stream"`
}

// ProviderConfig is a [providers.<id>] section.
type ProviderConfig struct {
	Enabled             bool                   `toml:"enabled"`
	SyncIntervalMinutes int                    `toml:"sync_interval_minutes"`
	Settings            map[string]interface{} `toml:"settings"`
}

// SyncInterval converts SyncIntervalMinutes to a time.Duration.
func (p ProviderConfig) SyncInterval() time.Duration {
	return time.Duration(p.SyncIntervalMinutes) * time.Minute
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate enforces the rules spec.md §6 names.
func (c Config) Validate() error {
	if !validLogLevels[c.Daemon.LogLevel] {
		return errors.Errorf("daemon.log_level %q is not one of trace|debug|info|warn|error", c.Daemon.LogLevel)
	}
	if c.Daemon.BindAddress != "" {
		if _, err := parseBindAddress(c.Daemon.BindAddress); err != nil {
			return errors.Wrapf(err, "daemon.bind_address %q", c.Daemon.BindAddress)
		}
	}
	if c.Cache.MaxItemsPerStream <= 0 {
		return errors.Errorf("cache.max_items_per_stream must be > 0, got %d", c.Cache.MaxItemsPerStream)
	}
	for id, p := range c.Providers {
		if p.SyncIntervalMinutes <= 0 {
			return errors.Errorf("providers.%s.sync_interval_minutes must be > 0, got %d", id, p.SyncIntervalMinutes)
		}
	}
	return nil
}

// parseBindAddress accepts either a filesystem socket path or a host:port
// TCP address, per spec.md §6's "optionally a TCP listener".
func parseBindAddress(addr string) (string, error) {
	if filepath.IsAbs(addr) {
		return addr, nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", errors.Errorf("invalid port %q", port)
	}
	return host + ":" + port, nil
}

// Read loads the config from path, writing defaults to path if it does not
// exist (spec.md §6: "Missing file causes a default file to be written").
func Read(path string) (Config, error) {
	if path == "" {
		path = xdgpath.ConfigFile()
	}

	cfg := defaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "reading config from %s", path)
		}

		if err := writeDefault(path, cfg); err != nil {
			return Config{}, errors.Wrapf(err, "writing default config to %s", path)
		}

		return cfg, nil
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "unmarshaling toml config from %s", path)
	}

	return cfg, nil
}

func writeDefault(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating config directory for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating config file %s", path)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "encoding default config")
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		Daemon: Daemon{
			BindAddress: xdgpath.SocketPath(),
			LogLevel:    "info",
		},
		Cache: Cache{
			Path:              xdgpath.CacheFile(),
			MaxItemsPerStream: 1000,
		},
		Providers: map[string]ProviderConfig{},
	}
}
