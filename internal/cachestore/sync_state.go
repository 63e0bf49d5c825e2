package cachestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// GetSyncState returns the last durable sync timestamp for providerID, or
// ok=false if the provider has never synced. This durably persists the
// scheduler's last_sync across process restarts, per spec.md §4.4's
// sync_state relation.
func (s *Store) GetSyncState(ctx context.Context, providerID string) (time.Time, bool, error) {
	var lastSync time.Time
	err := s.db.GetContext(ctx, &lastSync, `SELECT last_sync FROM sync_state WHERE provider_id = ?`, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, errors.Wrapf(err, "reading sync_state for %s", providerID)
	}
	return lastSync, true, nil
}

// UpdateSyncState upserts the last-sync timestamp for providerID.
func (s *Store) UpdateSyncState(ctx context.Context, providerID string, lastSync time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state(provider_id, last_sync, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET last_sync = excluded.last_sync, updated_at = excluded.updated_at`,
		providerID, lastSync, now)
	if err != nil {
		return errors.Wrapf(err, "updating sync_state for %s", providerID)
	}
	return nil
}
