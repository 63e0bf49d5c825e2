package model

import "time"

// ProviderHealth reports connectivity without mutating the cache.
type ProviderHealth struct {
	IsHealthy  bool
	Message    string
	LastSync   *time.Time
	ErrorCount int
}

// SyncResult is the outcome of one provider.Sync() invocation.
type SyncResult struct {
	Success      bool
	ItemsAdded   int
	ItemsUpdated int
	ItemsRemoved int
	Errors       []string
	DurationMs   int64
}

// ProviderSyncState is the scheduler's externally observable per-provider
// snapshot, returned by the sync.status RPC.
type ProviderSyncState struct {
	ProviderID  string     `json:"provider_id"`
	IsSyncing   bool       `json:"is_syncing"`
	IsHealthy   bool       `json:"is_healthy"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	ItemsSynced int        `json:"items_synced"`
	NextSync    *time.Time `json:"next_sync,omitempty"`
}
