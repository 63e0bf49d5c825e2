package pluginloader

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"scryforge/internal/log"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func writeBytecode(t *testing.T, dir, pluginID, version string) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(bytecodeMagic[:])
	buf.Write(padded(pluginID, metaPluginIDLen))
	buf.Write(padded(version, metaPluginVersionLen))
	binary.Write(&buf, binary.LittleEndian, int64(1735689600))
	buf.Write(padded("fzbc-1.0", metaCompilerVerLen))

	if err := os.WriteFile(filepath.Join(dir, "plugin.fzb"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing bytecode: %v", err)
	}
}

func padded(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

const validManifest = `
capabilities = ["network", "cache_write"]

[plugin]
id = "acme-feed"
name = "Acme Feed"
version = "1.0.0"
plugin_type = "provider"

[provider]
id = "acme-feed"
has_feeds = true

[rate_limit]
requests_per_second = 2.0
`

func TestDiscoverAndLoadValidPluginReachesActive(t *testing.T) {
	root := t.TempDir()
	pluginDir := filepath.Join(root, "acme-feed")
	if err := os.Mkdir(pluginDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeManifest(t, pluginDir, validManifest)
	writeBytecode(t, pluginDir, "acme-feed", "1.0.0")

	l := New([]string{root}, log.NewStd())
	plugins := l.DiscoverAndLoad()

	if len(plugins) != 1 {
		t.Fatalf("expected 1 discovered plugin, got %d", len(plugins))
	}
	if plugins[0].State != StateActive {
		t.Errorf("state = %s, want active (reason: %s)", plugins[0].State, plugins[0].FailReason)
	}
}

func TestUnknownCapabilityFailsValidation(t *testing.T) {
	root := t.TempDir()
	pluginDir := filepath.Join(root, "bad-plugin")
	if err := os.Mkdir(pluginDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeManifest(t, pluginDir, `
capabilities = ["network", "telepathy"]

[plugin]
id = "bad-plugin"
version = "1.0.0"
plugin_type = "provider"
`)
	writeBytecode(t, pluginDir, "bad-plugin", "1.0.0")

	l := New([]string{root}, log.NewStd())
	plugins := l.DiscoverAndLoad()

	if len(plugins) != 1 || plugins[0].State != StateFailed {
		t.Fatalf("expected failed state for unknown capability, got %+v", plugins)
	}
	if plugins[0].FailReason == "" {
		t.Error("expected a non-empty failure reason")
	}
}

func TestBytecodePluginIDMismatchFails(t *testing.T) {
	root := t.TempDir()
	pluginDir := filepath.Join(root, "acme-feed")
	if err := os.Mkdir(pluginDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeManifest(t, pluginDir, validManifest)
	writeBytecode(t, pluginDir, "someone-else", "1.0.0")

	l := New([]string{root}, log.NewStd())
	plugins := l.DiscoverAndLoad()

	if len(plugins) != 1 || plugins[0].State != StateFailed {
		t.Fatalf("expected failed state for plugin id mismatch, got %+v", plugins)
	}
}

func TestMissingSearchRootIsSkippedNotFatal(t *testing.T) {
	l := New([]string{filepath.Join(t.TempDir(), "does-not-exist")}, log.NewStd())
	plugins := l.DiscoverAndLoad()
	if len(plugins) != 0 {
		t.Errorf("expected no plugins from a missing root, got %d", len(plugins))
	}
}
