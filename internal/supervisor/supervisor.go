// Package supervisor owns the hub's process-wide lifecycle: constructing
// every subsystem in dependency order, running until signaled, and
// tearing down in reverse with a bounded grace period (spec.md §4.9).
package supervisor

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"scryforge/internal/cachestore"
	"scryforge/internal/config"
	"scryforge/internal/credential"
	"scryforge/internal/log"
	"scryforge/internal/pluginloader"
	"scryforge/internal/provider"
	"scryforge/internal/provider/dummy"
	"scryforge/internal/provider/rss"
	"scryforge/internal/registry"
	"scryforge/internal/rpc"
	"scryforge/internal/scheduler"
	"scryforge/internal/search"
	"scryforge/internal/unified"
	"scryforge/internal/xdgpath"
)

// DefaultGraceTimeout bounds how long Shutdown waits for the scheduler's
// run loop to return after cancelling it.
const DefaultGraceTimeout = 10 * time.Second

// builtinProviders maps a provider "type" (settings.type, defaulting to
// the config section's id) to a constructor. Providers arriving as loaded
// plugins are tracked by the plugin loader but are not yet instantiable:
// this module does not implement an FZB bytecode interpreter (see
// DESIGN.md), so a plugin reaching StateActive is logged, not registered.
var builtinProviders = map[string]func(id string, pc config.ProviderConfig) (provider.Provider, error){
	dummy.ProviderID: func(id string, pc config.ProviderConfig) (provider.Provider, error) {
		return dummy.New(), nil
	},
	"rss": newRSSProvider,
}

func newRSSProvider(id string, pc config.ProviderConfig) (provider.Provider, error) {
	raw, _ := pc.Settings["feed_urls"].([]interface{})
	if len(raw) == 0 {
		return nil, errors.Errorf("providers.%s.settings.feed_urls must list at least one feed URL", id)
	}
	feeds := make(map[string]string, len(raw))
	for _, v := range raw {
		url, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("providers.%s.settings.feed_urls entries must be strings", id)
		}
		feeds[url] = url
	}
	return rss.New(id, id, feeds), nil
}

// Supervisor owns the cache handle, registry, scheduler, token-fetcher
// proxy, and RPC listener as a single long-lived container, constructed
// and torn down in the order spec.md §4.9 names.
type Supervisor struct {
	log log.Log
	cfg config.Config

	cache     *cachestore.Store
	fetcher   credential.TokenFetcher
	registry  *registry.Registry
	plugins   *pluginloader.Loader
	scheduler *scheduler.Scheduler
	server    *rpc.Server

	graceTimeout time.Duration

	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// New constructs every subsystem in startup order: open cache, construct
// token fetcher, construct registry, parse manifests, construct the
// scheduler, then register each configured provider with the registry
// and the scheduler. The RPC listener is opened
// separately by Start, once every other subsystem is ready to serve
// requests.
func New(cfg config.Config, logger log.Log) (*Supervisor, error) {
	cache, err := cachestore.Open(cfg.Cache.Path, cfg.Cache.MaxItemsPerStream, logger)
	if err != nil {
		return nil, errors.Wrap(err, "opening cache")
	}

	fetcher := credential.NewCachingFetcher(
		credential.NewDaemonFetcher(filepath.Join(xdgpath.RuntimeDir(), "credential.sock")),
		5*time.Minute,
		logger,
	)

	reg := registry.New(cache)

	plugins := pluginloader.New(xdgpath.PluginRoots(), logger)
	for _, p := range plugins.DiscoverAndLoad() {
		if p.State == pluginloader.StateActive {
			logger.WithField("plugin", p.Manifest.Plugin.ID).Infof("plugin active but not registered: bytecode execution is out of scope")
		}
	}

	sched := scheduler.New(reg, cache, logger)

	s := &Supervisor{
		log:          logger,
		cfg:          cfg,
		cache:        cache,
		fetcher:      fetcher,
		registry:     reg,
		plugins:      plugins,
		scheduler:    sched,
		graceTimeout: DefaultGraceTimeout,
	}

	if err := s.registerConfiguredProviders(context.Background()); err != nil {
		cache.Close()
		return nil, err
	}

	return s, nil
}

// WithGraceTimeout overrides DefaultGraceTimeout.
func (s *Supervisor) WithGraceTimeout(d time.Duration) *Supervisor {
	s.graceTimeout = d
	return s
}

func (s *Supervisor) registerConfiguredProviders(ctx context.Context) error {
	var registered []provider.Provider

	for id, pc := range s.cfg.Providers {
		providerType, _ := pc.Settings["type"].(string)
		if providerType == "" {
			providerType = id
		}

		ctor, ok := builtinProviders[providerType]
		if !ok {
			s.log.WithField("provider", id).Errorf("no builtin provider matches type %q, skipping", providerType)
			continue
		}
		p, err := ctor(id, pc)
		if err != nil {
			s.log.WithField("provider", id).Errorf("constructing provider: %v, skipping", err)
			continue
		}
		if err := s.registry.Register(ctx, p); err != nil {
			return errors.Wrapf(err, "registering provider %s", id)
		}
		s.scheduler.Configure(id, pc.SyncInterval(), pc.Enabled)
		registered = append(registered, p)
	}

	// Startup health checks hit the network for providers like rss; run
	// them concurrently so one slow or unreachable source doesn't delay
	// every other provider's startup probe (spec.md §4.9: "health_check is
	// invoked at startup").
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range registered {
		p := p
		g.Go(func() error {
			health, err := p.HealthCheck(gctx)
			if err != nil {
				s.log.WithField("provider", p.ID()).Errorf("startup health_check failed: %v", err)
				return nil
			}
			if !health.IsHealthy {
				s.log.WithField("provider", p.ID()).Errorf("startup health_check reports unhealthy: %s", health.Message)
			}
			return nil
		})
	}
	return g.Wait()
}

// Fetcher returns the credential proxy, so a caller (or test) can seed
// tokens before Start.
func (s *Supervisor) Fetcher() credential.TokenFetcher { return s.fetcher }

// Registry returns the provider registry.
func (s *Supervisor) Registry() *registry.Registry { return s.registry }

// Start opens the RPC listener over the wired subsystems and begins the
// scheduler's timer wheel in the background. It returns once the listener
// is accepting connections; call Wait to block until shutdown.
func (s *Supervisor) Start() error {
	searchEngine := search.New(s.cache)
	views := unified.New(s.cache, s.registry)
	handler := rpc.New(s.cache, s.registry, searchEngine, views, s.scheduler, s.log)
	s.server = rpc.NewServer(handler, s.log)

	bind := s.cfg.Daemon.BindAddress
	if bind == "" {
		bind = xdgpath.SocketPath()
	}
	if err := s.listen(bind); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	s.runDone = make(chan struct{})

	go func() {
		if err := s.plugins.Watch(runCtx); err != nil && err != context.Canceled {
			s.log.Errorf("plugin watcher stopped: %v", err)
		}
	}()

	go func() {
		defer close(s.runDone)
		if err := s.scheduler.Run(runCtx); err != nil && err != context.Canceled {
			s.log.Errorf("scheduler stopped: %v", err)
		}
	}()

	return nil
}

func (s *Supervisor) listen(bind string) error {
	if filepath.IsAbs(bind) {
		return s.server.ListenUnix(bind)
	}
	_, portStr, err := net.SplitHostPort(bind)
	if err != nil {
		return errors.Wrapf(err, "invalid daemon.bind_address %q", bind)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return errors.Wrapf(err, "invalid daemon.bind_address port %q", portStr)
	}
	return s.server.ListenTCP(port)
}

// Wait blocks until ctx is cancelled (typically by a signal handler in
// cmd/scryforge-hub), then performs an orderly Shutdown.
func (s *Supervisor) Wait(ctx context.Context) error {
	<-ctx.Done()
	return s.Shutdown()
}

// Shutdown tears down every subsystem in the reverse of startup order:
// RPC listener, scheduler, registry, cache. The scheduler's context is
// cancelled at once, which also cancels any sync in flight; Shutdown then
// waits up to the grace timeout for the scheduler's run loop to return.
// It does not wait for in-flight syncs to finish before cancelling them.
// An RPC call already in flight when
// Shutdown is called is allowed to finish; the listener simply stops
// accepting new connections.
func (s *Supervisor) Shutdown() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.server != nil {
		record(s.server.Shutdown())
	}

	if s.cancelRun != nil {
		quiesced := make(chan struct{})
		go func() {
			s.cancelRun()
			<-s.runDone
			close(quiesced)
		}()
		select {
		case <-quiesced:
		case <-time.After(s.graceTimeout):
			s.log.Errorf("scheduler did not quiesce within %s, forcing shutdown", s.graceTimeout)
		}
	}

	s.registry.Clear()

	if s.cache != nil {
		record(s.cache.Close())
	}

	return firstErr
}
