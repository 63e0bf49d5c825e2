package pluginloader

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"scryforge/internal/log"
)

// State is a plugin's position in the Discovered → ManifestParsed →
// Validated → Loaded → Active state machine (spec.md §4.2). Any
// transition may instead yield Failed.
type State string

const (
	StateDiscovered    State = "discovered"
	StateManifestParsed State = "manifest_parsed"
	StateValidated     State = "validated"
	StateLoaded        State = "loaded"
	StateActive        State = "active"
	StateFailed        State = "failed"
)

// Plugin tracks one discovered plugin directory through the state
// machine.
type Plugin struct {
	Dir      string
	State    State
	FailReason string

	Manifest Manifest
	Bytecode BytecodeMetadata
}

// Loader discovers plugin directories under a set of search roots and
// drives each one through parse → validate → load.
type Loader struct {
	roots []string
	log   log.Log

	mu      sync.Mutex
	plugins map[string]*Plugin // keyed by directory
}

// New builds a Loader scanning roots (in order) for plugin directories.
func New(roots []string, logger log.Log) *Loader {
	return &Loader{roots: roots, log: logger, plugins: map[string]*Plugin{}}
}

// DiscoverAndLoad walks every search root, parsing and validating each
// plugin directory found, advancing it through the state machine. A
// failure on one plugin does not stop discovery of the others.
func (l *Loader) DiscoverAndLoad() []*Plugin {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, root := range l.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue // search root need not exist
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			l.loadOneLocked(dir)
		}
	}

	out := make([]*Plugin, 0, len(l.plugins))
	for _, p := range l.plugins {
		out = append(out, p)
	}
	return out
}

func (l *Loader) loadOneLocked(dir string) {
	p := &Plugin{Dir: dir, State: StateDiscovered}
	l.plugins[dir] = p

	manifestPath := filepath.Join(dir, "manifest.toml")
	manifest, err := ParseManifest(manifestPath)
	if err != nil {
		l.fail(p, errors.Wrap(err, "parsing manifest").Error())
		return
	}
	p.Manifest = manifest
	p.State = StateManifestParsed

	if err := manifest.Validate(); err != nil {
		l.fail(p, err.Error())
		return
	}
	p.State = StateValidated

	meta, err := ReadBytecodeMetadata(manifest.EntryPointPath(dir))
	if err != nil {
		l.fail(p, errors.Wrap(err, "reading bytecode").Error())
		return
	}
	if meta.PluginID != manifest.Plugin.ID {
		l.fail(p, errors.Errorf("bytecode plugin id %q does not match manifest id %q", meta.PluginID, manifest.Plugin.ID).Error())
		return
	}
	p.Bytecode = meta
	p.State = StateLoaded
	p.State = StateActive

	l.log.WithField("plugin", manifest.Plugin.ID).Infof("plugin active at %s", dir)
}

func (l *Loader) fail(p *Plugin, reason string) {
	p.State = StateFailed
	p.FailReason = reason
	l.log.WithField("plugin_dir", p.Dir).Errorf("plugin load failed: %s", reason)
}

// Plugins returns a snapshot of every tracked plugin.
func (l *Loader) Plugins() []*Plugin {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Plugin, 0, len(l.plugins))
	for _, p := range l.plugins {
		out = append(out, p)
	}
	return out
}

// Watch live-watches the search roots for newly created plugin
// directories, loading each as it appears. This supplements spec.md's
// static discovery-at-startup with the fsnotify-driven live reload the
// original Rust plugin manager implemented via polling (see
// SPEC_FULL.md §C.4). Watch blocks until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating plugin directory watcher")
	}
	defer watcher.Close()

	for _, root := range l.roots {
		if err := watcher.Add(root); err != nil {
			l.log.WithField("root", root).Errorf("cannot watch plugin root: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create) == 0 {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil || !info.IsDir() {
				continue
			}
			l.mu.Lock()
			l.loadOneLocked(ev.Name)
			l.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.Errorf("plugin watcher error: %v", err)
		}
	}
}
