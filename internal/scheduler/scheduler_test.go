package scheduler

import (
	"context"
	"testing"
	"time"

	"scryforge/internal/log"
	"scryforge/internal/model"
	"scryforge/internal/provider"
	"scryforge/internal/provider/dummy"
	"scryforge/internal/registry"
)

type fakeStore struct {
	streams        []model.Stream
	items          []model.Item
	syncStateCalls int
}

func (f *fakeStore) UpsertStreams(ctx context.Context, streams []model.Stream) error {
	f.streams = append(f.streams, streams...)
	return nil
}

func (f *fakeStore) UpsertItems(ctx context.Context, items []model.Item) error {
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeStore) UpdateSyncState(ctx context.Context, providerID string, lastSync time.Time) error {
	f.syncStateCalls++
	return nil
}

func TestTriggerRunsSyncAndUpdatesStatus(t *testing.T) {
	reg := registry.New(nil)
	p := dummy.New()
	if err := reg.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	store := &fakeStore{}
	sched := New(reg, store, log.NewStd())
	sched.Configure(p.ID(), time.Minute, true)

	if err := sched.Trigger(context.Background(), p.ID()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	status := sched.Status()[p.ID()]
	if status.IsSyncing {
		t.Error("expected sync to have completed")
	}
	if status.LastSuccess == nil {
		t.Error("expected LastSuccess to be set after a successful sync")
	}
	if status.ItemsSynced != 2 {
		t.Errorf("ItemsSynced = %d, want 2", status.ItemsSynced)
	}
	if len(store.streams) != 1 || len(store.items) != 2 {
		t.Errorf("expected sync output applied to store, got %d streams, %d items", len(store.streams), len(store.items))
	}
	if store.syncStateCalls != 1 {
		t.Errorf("expected durable sync_state update, got %d calls", store.syncStateCalls)
	}
}

func TestTriggerCoalescesWhileSyncing(t *testing.T) {
	reg := registry.New(nil)
	p := dummy.New()
	if err := reg.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	sched := New(reg, &fakeStore{}, log.NewStd())
	sched.Configure(p.ID(), time.Minute, true)

	sched.mu.Lock()
	sched.states[p.ID()].isSyncing = true
	sched.mu.Unlock()

	if err := sched.Trigger(context.Background(), p.ID()); err != nil {
		t.Fatalf("coalesced Trigger returned error: %v", err)
	}
	if p.SyncCount != 0 {
		t.Errorf("expected coalesced trigger not to invoke Sync, SyncCount = %d", p.SyncCount)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	interval := time.Minute
	cases := []struct {
		errorCount int
		want       time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 8 * time.Minute}, // capped at interval * 8
	}
	for _, c := range cases {
		got := backoff(interval, c.errorCount)
		if got != c.want {
			t.Errorf("backoff(%v, %d) = %v, want %v", interval, c.errorCount, got, c.want)
		}
	}
}

func TestSyncFailureAppliesBackoffAndTracksConsecutiveFailures(t *testing.T) {
	reg := registry.New(nil)
	p := dummy.New()
	p.SyncErr = provider.NewNetworkError("boom")
	if err := reg.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	sched := New(reg, &fakeStore{}, log.NewStd())
	sched.Configure(p.ID(), time.Minute, true)

	if err := sched.Trigger(context.Background(), p.ID()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	status := sched.Status()[p.ID()]
	if status.LastError == "" {
		t.Error("expected LastError to be recorded")
	}
	if status.NextSync == nil || !status.NextSync.After(time.Now()) {
		t.Error("expected NextSync pushed into the future by backoff")
	}
}

func TestRateLimitedSetsNextSyncFromRetryAfter(t *testing.T) {
	reg := registry.New(nil)
	p := dummy.New()
	p.SyncErr = provider.NewRateLimited(30)
	if err := reg.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sched := New(reg, &fakeStore{}, log.NewStd())
	sched.now = func() time.Time { return fixedNow }
	sched.Configure(p.ID(), time.Hour, true)

	if err := sched.Trigger(context.Background(), p.ID()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	status := sched.Status()[p.ID()]
	want := fixedNow.Add(30 * time.Second)
	if status.NextSync == nil || !status.NextSync.Equal(want) {
		t.Errorf("NextSync = %v, want %v (interval ignored per rate-limit pass-through)", status.NextSync, want)
	}
}
