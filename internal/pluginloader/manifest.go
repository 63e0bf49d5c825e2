// Package pluginloader discovers, parses, and validates plugin manifests
// and bytecode containers per spec.md §4.2, driving each plugin through
// the Discovered → ManifestParsed → Validated → Loaded → Active state
// machine.
package pluginloader

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// PluginType enumerates the manifest's plugin_type field.
type PluginType string

const (
	PluginTypeProvider  PluginType = "provider"
	PluginTypeAction    PluginType = "action"
	PluginTypeTheme     PluginType = "theme"
	PluginTypeExtension PluginType = "extension"
)

// Capability is one entry in the closed capability vocabulary from
// spec.md §4.2.
type Capability string

const (
	CapabilityNetwork       Capability = "network"
	CapabilityFileRead      Capability = "file_read"
	CapabilityFileWrite     Capability = "file_write"
	CapabilityCredentials   Capability = "credentials"
	CapabilityCacheRead     Capability = "cache_read"
	CapabilityCacheWrite    Capability = "cache_write"
	CapabilityEnvironment   Capability = "environment"
	CapabilityProcess       Capability = "process"
	CapabilityNotifications Capability = "notifications"
	CapabilityClipboard     Capability = "clipboard"
	CapabilityOpenURL       Capability = "open_url"
)

var knownCapabilities = map[Capability]bool{
	CapabilityNetwork: true, CapabilityFileRead: true, CapabilityFileWrite: true,
	CapabilityCredentials: true, CapabilityCacheRead: true, CapabilityCacheWrite: true,
	CapabilityEnvironment: true, CapabilityProcess: true, CapabilityNotifications: true,
	CapabilityClipboard: true, CapabilityOpenURL: true,
}

// Manifest is the parsed contents of a plugin's manifest.toml.
type Manifest struct {
	Plugin struct {
		ID             string     `toml:"id"`
		Name           string     `toml:"name"`
		Version        string     `toml:"version"`
		Description    string     `toml:"description"`
		Authors        []string   `toml:"authors"`
		License        string     `toml:"license"`
		Homepage       string     `toml:"homepage"`
		Repository     string     `toml:"repository"`
		PluginType     PluginType `toml:"plugin_type"`
		EntryPoint     string     `toml:"entry_point"`
		MinCoreVersion string     `toml:"min_core_version"`
	} `toml:"plugin"`

	Provider struct {
		ID             string `toml:"id"`
		DisplayName    string `toml:"display_name"`
		Icon           string `toml:"icon"`
		HasFeeds       bool   `toml:"has_feeds"`
		HasCollections bool   `toml:"has_collections"`
		HasSavedItems  bool   `toml:"has_saved_items"`
		HasCommunities bool   `toml:"has_communities"`
		OAuthProvider  string `toml:"oauth_provider"`
	} `toml:"provider"`

	Capabilities []Capability `toml:"capabilities"`

	RateLimit struct {
		RequestsPerSecond float64 `toml:"requests_per_second"`
		MaxConcurrent     int     `toml:"max_concurrent"`
		RetryDelayMs      int     `toml:"retry_delay_ms"`
	} `toml:"rate_limit"`

	Config map[string]interface{} `toml:"config"`
}

// ParseManifest reads and decodes a manifest.toml file at path, then
// applies entry_point's default.
func ParseManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "reading manifest %s", path)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "parsing manifest %s", path)
	}
	if m.Plugin.EntryPoint == "" {
		m.Plugin.EntryPoint = "plugin.fzb"
	}
	return m, nil
}

// Validate rejects a manifest whose declared capability set contains an
// unknown entry, per spec.md §4.2's CapabilityUnsatisfiable rule, and
// checks the required identity fields are present.
func (m Manifest) Validate() error {
	if m.Plugin.ID == "" {
		return errors.New("manifest: plugin.id is required")
	}
	if m.Plugin.Version == "" {
		return errors.New("manifest: plugin.version is required")
	}
	switch m.Plugin.PluginType {
	case PluginTypeProvider, PluginTypeAction, PluginTypeTheme, PluginTypeExtension:
	default:
		return errors.Errorf("manifest: unknown plugin_type %q", m.Plugin.PluginType)
	}
	for _, cap := range m.Capabilities {
		if !knownCapabilities[cap] {
			return &CapabilityUnsatisfiableError{Plugin: m.Plugin.ID, Capability: cap}
		}
	}
	return nil
}

// CapabilityUnsatisfiableError is returned when a manifest requests a
// capability outside the closed vocabulary.
type CapabilityUnsatisfiableError struct {
	Plugin     string
	Capability Capability
}

func (e *CapabilityUnsatisfiableError) Error() string {
	return "capability unsatisfiable: plugin " + e.Plugin + " requested unknown capability " + string(e.Capability)
}

// EntryPointPath joins pluginDir with the manifest's entry_point.
func (m Manifest) EntryPointPath(pluginDir string) string {
	return filepath.Join(pluginDir, m.Plugin.EntryPoint)
}
