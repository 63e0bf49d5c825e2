// Package registry implements the in-memory, thread-safe provider
// registry (spec.md §4.3), grounded on the teacher's content.Repo pattern
// of a single owning container guarding access with a sync.RWMutex (see
// content/repo/sql/service.go's connection-pooled Service).
package registry

import (
	"context"
	"sync"

	"scryforge/internal/cachestore"
	"scryforge/internal/provider"
)

// Store is the subset of cachestore.Store the registry depends on, used to
// cascade a provider's streams (and, per I-2, their items) out of the
// cache when the provider itself is removed.
type Store interface {
	DeleteStreamsForProvider(ctx context.Context, providerID string) error
}

var _ Store = (*cachestore.Store)(nil)

// Registry owns provider instances by id with shared ownership: callers
// may hold a Provider value for the duration of a call while other
// readers proceed concurrently (spec.md §4.3, §5).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]provider.Provider
	store     Store

	// inFlight tracks ids with an unreleased Lease, so Register can
	// wait for any in-flight sync to finish before replacing an entry
	// (spec.md §4.3: "replaces the existing entry after quiescing any
	// in-flight sync for that id").
	inFlight map[string]chan struct{}

	// onRegister receives (non-blocking) the id of every registered
	// provider and is exposed by Notifications; the registry never
	// references the scheduler (spec.md §9 design note).
	onRegister chan string
}

// New returns an empty registry backed by store for provider-removal
// cascades.
func New(store Store) *Registry {
	return &Registry{
		providers:  map[string]provider.Provider{},
		inFlight:   map[string]chan struct{}{},
		onRegister: make(chan string, 64),
		store:      store,
	}
}

// Notifications returns the buffered channel (capacity 64) that receives
// each registered provider's id; a registration that finds it full is not
// recorded on it. The scheduler does not read this channel: it learns
// about providers through Scheduler.Configure.
func (r *Registry) Notifications() <-chan string {
	return r.onRegister
}

// Register adds or replaces a provider by id. Registration is idempotent:
// replacing an existing id waits for any in-flight lease on that id to
// release first (the holder releases it by calling the function Lease
// returned).
func (r *Registry) Register(ctx context.Context, p provider.Provider) error {
	id := p.ID()

	r.mu.Lock()
	waiter, busy := r.inFlight[id]
	r.mu.Unlock()

	if busy {
		select {
		case <-waiter:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.providers[id] = p
	r.mu.Unlock()

	select {
	case r.onRegister <- id:
	default:
	}

	return nil
}

// Get returns the provider for id, or ok=false if unregistered.
func (r *Registry) Get(id string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// List returns a snapshot of all registered providers.
func (r *Registry) List() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// Remove deletes the provider for id, waiting for the given inFlight
// marker channel (if any lease is currently held) to be released first,
// per spec.md §4.3: "Removal waits for in-flight operations to complete."
// It also cascades the removal into the cache store, deleting every
// stream (and, per I-2, every item) the provider owns, so a subsequent
// items.list against one of its streams reports NotFound rather than an
// empty result (spec.md's testable property at §5).
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	waiter, busy := r.inFlight[id]
	r.mu.Unlock()

	if busy {
		select {
		case <-waiter:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := r.store.DeleteStreamsForProvider(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.providers, id)
	r.mu.Unlock()
	return nil
}

// Clear removes every registered provider.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = map[string]provider.Provider{}
}

// Lease marks id as having an in-flight operation; the returned release
// function must be called exactly once to unblock any waiting
// Register/Remove call. Used by the scheduler around provider.Sync calls
// to implement single-flight-aware registration races.
func (r *Registry) Lease(id string) (release func()) {
	done := make(chan struct{})

	r.mu.Lock()
	r.inFlight[id] = done
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.inFlight[id] == done {
				delete(r.inFlight, id)
			}
			r.mu.Unlock()
			close(done)
		})
	}
}
