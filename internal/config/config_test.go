package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadWritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Daemon.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Daemon.LogLevel)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected default config to be written: %v", err)
	}

	cfg2, err := Read(path)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if cfg2.Cache.MaxItemsPerStream != cfg.Cache.MaxItemsPerStream {
		t.Errorf("round-tripped config mismatch: %+v vs %+v", cfg, cfg2)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Daemon: Daemon{LogLevel: "info"}, Cache: Cache{MaxItemsPerStream: 1000}}, false},
		{"bad level", Config{Daemon: Daemon{LogLevel: "verbose"}, Cache: Cache{MaxItemsPerStream: 1000}}, true},
		{"bad max items", Config{Daemon: Daemon{LogLevel: "info"}, Cache: Cache{MaxItemsPerStream: 0}}, true},
		{
			"bad provider interval",
			Config{
				Daemon: Daemon{LogLevel: "info"}, Cache: Cache{MaxItemsPerStream: 1},
				Providers: map[string]ProviderConfig{"p": {SyncIntervalMinutes: 0}},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
