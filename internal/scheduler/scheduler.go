// Package scheduler implements the per-provider sync state machine and
// timer wheel described in spec.md §4.5: single-flight leases,
// exponential backoff, manual-trigger coalescing, and rate-limit
// pass-through.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"scryforge/internal/cachestore"
	"scryforge/internal/log"
	"scryforge/internal/model"
	"scryforge/internal/provider"
	"scryforge/internal/registry"
)

// Store is the subset of cachestore.Store the scheduler depends on.
type Store interface {
	UpsertStreams(ctx context.Context, streams []model.Stream) error
	UpsertItems(ctx context.Context, items []model.Item) error
	UpdateSyncState(ctx context.Context, providerID string, lastSync time.Time) error
}

var _ Store = (*cachestore.Store)(nil)

// maxConsecutiveFailures flips a provider to Unhealthy without evicting it
// from the registry (spec.md §4.9).
const maxConsecutiveFailures = 5

type providerState struct {
	enabled  bool
	interval time.Duration

	isSyncing   bool
	lastSync    *time.Time
	lastSuccess *time.Time
	lastError   string
	itemsSynced int
	nextSync    time.Time

	errorCount          int
	consecutiveFailures int
	healthy             bool
}

// Scheduler owns every provider's sync timing and in-flight state.
type Scheduler struct {
	registry *registry.Registry
	store    Store
	log      log.Log

	tickInterval time.Duration
	maxInFlight  int // 0 means "number of tracked providers", per spec.md §4.5
	now          func() time.Time

	mu       sync.Mutex
	states   map[string]*providerState
	inFlight int
}

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

// WithTickInterval overrides the default 1s cooperative timer wheel
// resolution; tests use a short interval to avoid slow suites.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithMaxInFlight overrides the default ceiling on concurrent syncs
// (number of configured providers).
func WithMaxInFlight(n int) Option {
	return func(s *Scheduler) { s.maxInFlight = n }
}

// New builds a Scheduler over reg and store.
func New(reg *registry.Registry, store Store, logger log.Log, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:     reg,
		store:        store,
		log:          logger,
		tickInterval: time.Second,
		states:       map[string]*providerState{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure registers interval/enabled settings for providerID, called by
// the supervisor while wiring each configured provider. Calling it again
// for an id already tracked updates the settings without disturbing
// in-flight sync state.
func (s *Scheduler) Configure(providerID string, interval time.Duration, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[providerID]
	if !ok {
		st = &providerState{healthy: true}
		s.states[providerID] = st
	}
	st.enabled = enabled
	st.interval = interval
}

// Run drives the timer wheel until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, id := range s.eligibleNow() {
		p, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		if !s.acquireSlot() {
			continue // at capacity; deferred to the next tick
		}
		go func(p provider.Provider) {
			defer s.releaseSlot()
			s.syncOne(ctx, p)
		}(p)
	}
}

// acquireSlot enforces the in-flight ceiling, defaulting to the number of
// tracked providers (spec.md §4.5) unless WithMaxInFlight pinned a lower
// bound.
func (s *Scheduler) acquireSlot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ceiling := s.maxInFlight
	if ceiling <= 0 {
		ceiling = len(s.states)
	}
	if s.inFlight >= ceiling {
		return false
	}
	s.inFlight++
	return true
}

func (s *Scheduler) releaseSlot() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

func (s *Scheduler) eligibleNow() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ids []string
	for id, st := range s.states {
		if st.enabled && !st.isSyncing && !now.Before(st.nextSync) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Trigger schedules providerID for an immediate sync, unless one is
// already in flight, in which case the trigger is coalesced: no error,
// no extra cycle (spec.md §4.5).
func (s *Scheduler) Trigger(ctx context.Context, providerID string) error {
	s.mu.Lock()
	st, ok := s.states[providerID]
	if !ok {
		s.mu.Unlock()
		return errors.Errorf("scheduler: unknown provider %s", providerID)
	}
	if st.isSyncing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	p, ok := s.registry.Get(providerID)
	if !ok {
		return errors.Errorf("scheduler: provider %s not registered", providerID)
	}

	s.syncOne(ctx, p)
	return nil
}

func (s *Scheduler) syncOne(ctx context.Context, p provider.Provider) {
	id := p.ID()
	release := s.registry.Lease(id)
	defer release()

	s.mu.Lock()
	st := s.states[id]
	st.isSyncing = true
	interval := st.interval
	s.mu.Unlock()

	out, err := p.Sync(ctx)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	st.isSyncing = false
	st.lastSync = &now

	if err != nil {
		s.handleSyncError(ctx, p, st, interval, err)
		return
	}

	if applyErr := s.applyOutput(ctx, id, out); applyErr != nil {
		s.log.WithField("provider", id).Errorf("applying sync output: %v", applyErr)
		st.lastError = applyErr.Error()
		st.errorCount++
		st.consecutiveFailures++
		st.nextSync = now.Add(backoff(interval, st.errorCount))
		return
	}

	st.lastSuccess = &now
	st.lastError = ""
	st.itemsSynced += len(out.Items)
	st.errorCount = 0
	st.consecutiveFailures = 0
	st.healthy = true
	st.nextSync = now.Add(interval)

	if err := s.store.UpdateSyncState(ctx, id, now); err != nil {
		s.log.WithField("provider", id).Errorf("persisting sync_state: %v", err)
	}
}

func (s *Scheduler) handleSyncError(ctx context.Context, p provider.Provider, st *providerState, interval time.Duration, err error) {
	now := s.now()
	st.lastError = err.Error()

	var perr *provider.Error
	if errors.As(err, &perr) && perr.Kind == provider.RateLimited {
		st.nextSync = now.Add(time.Duration(perr.RetryAfterSeconds) * time.Second)
		return
	}

	st.errorCount++
	st.consecutiveFailures++
	st.nextSync = now.Add(backoff(interval, st.errorCount))

	if st.consecutiveFailures >= maxConsecutiveFailures {
		st.healthy = false
	}

	if health, healthErr := p.HealthCheck(ctx); healthErr == nil {
		s.log.WithField("provider", p.ID()).Infof("health_check after failed sync: healthy=%v message=%q", health.IsHealthy, health.Message)
	}
}

func (s *Scheduler) applyOutput(ctx context.Context, providerID string, out provider.SyncOutput) error {
	if err := s.store.UpsertStreams(ctx, out.Streams); err != nil {
		return errors.Wrapf(err, "upserting streams for %s", providerID)
	}
	if err := s.store.UpsertItems(ctx, out.Items); err != nil {
		return errors.Wrapf(err, "upserting items for %s", providerID)
	}
	return nil
}

// backoff computes min(interval * 2^errorCount, interval * 8), the
// doubling-with-a-cap rule from spec.md §4.5, reset to errorCount=0 on
// success.
func backoff(interval time.Duration, errorCount int) time.Duration {
	if interval <= 0 {
		return 0
	}
	shift := errorCount
	if shift > 3 {
		shift = 3 // 2^3 == 8, the cap
	}
	return interval * time.Duration(uint64(1)<<uint(shift))
}

// Status returns a snapshot of every tracked provider's sync state, for
// the sync.status RPC.
func (s *Scheduler) Status() map[string]model.ProviderSyncState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.ProviderSyncState, len(s.states))
	for id, st := range s.states {
		nextSync := st.nextSync
		out[id] = model.ProviderSyncState{
			ProviderID:  id,
			IsSyncing:   st.isSyncing,
			IsHealthy:   st.healthy,
			LastSync:    st.lastSync,
			LastSuccess: st.lastSuccess,
			LastError:   st.lastError,
			ItemsSynced: st.itemsSynced,
			NextSync:    &nextSync,
		}
	}
	return out
}
