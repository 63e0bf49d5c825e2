package cachestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"scryforge/internal/model"
)

// UpsertStreams inserts or updates streams in a single transaction.
// last_updated is taken as the max of the incoming and existing value, so
// that I-S3 (monotonic non-decreasing last_updated between successful
// syncs) holds even if a provider resubmits a stale timestamp.
func (s *Store) UpsertStreams(ctx context.Context, streams []model.Stream) error {
	if len(streams) == 0 {
		return nil
	}

	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, st := range streams {
			if err := st.Validate(); err != nil {
				return err
			}

			var existing streamRow
			err := tx.Get(&existing, `SELECT * FROM streams WHERE id = ?`, string(st.ID))
			switch {
			case err == nil:
				if existing.LastUpdated.Valid && st.LastUpdated != nil && existing.LastUpdated.Time.After(*st.LastUpdated) {
					st.LastUpdated = &existing.LastUpdated.Time
				}
				row, convErr := rowFromStream(st, existing.CreatedAt, now)
				if convErr != nil {
					return convErr
				}
				if _, execErr := tx.NamedExec(`
					UPDATE streams SET name=:name, provider_id=:provider_id, stream_type=:stream_type,
						custom_tag=:custom_tag, icon=:icon, unread_count=:unread_count,
						total_count=:total_count, last_updated=:last_updated,
						metadata_json=:metadata_json, updated_at=:updated_at
					WHERE id=:id`, row); execErr != nil {
					return errors.Wrapf(execErr, "updating stream %s", st.ID)
				}
			case errors.Is(err, sql.ErrNoRows):
				row, convErr := rowFromStream(st, now, now)
				if convErr != nil {
					return convErr
				}
				if _, execErr := tx.NamedExec(`
					INSERT INTO streams(id, name, provider_id, stream_type, custom_tag, icon,
						unread_count, total_count, last_updated, metadata_json, created_at, updated_at)
					VALUES (:id, :name, :provider_id, :stream_type, :custom_tag, :icon,
						:unread_count, :total_count, :last_updated, :metadata_json, :created_at, :updated_at)`, row); execErr != nil {
					return errors.Wrapf(execErr, "inserting stream %s", st.ID)
				}
			default:
				return errors.Wrapf(err, "looking up stream %s", st.ID)
			}
		}
		return nil
	})
}

// GetStreams returns every cached stream.
func (s *Store) GetStreams(ctx context.Context) ([]model.Stream, error) {
	var rows []streamRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM streams ORDER BY name COLLATE NOCASE`); err != nil {
		return nil, errors.Wrap(err, "selecting streams")
	}

	streams := make([]model.Stream, 0, len(rows))
	for _, r := range rows {
		st, err := r.toModel()
		if err != nil {
			return nil, err
		}
		streams = append(streams, st)
	}
	return streams, nil
}

// GetStream returns a single stream by id, or ErrNotFound.
func (s *Store) GetStream(ctx context.Context, id model.StreamID) (model.Stream, error) {
	var row streamRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM streams WHERE id = ?`, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Stream{}, ErrNotFound
		}
		return model.Stream{}, errors.Wrapf(err, "selecting stream %s", id)
	}
	return row.toModel()
}

// DeleteStreamsForProvider removes every stream owned by providerID,
// cascading to its items per I-2 ("Deleting a Stream cascades to its
// Items"). Used when a provider is removed from the registry.
func (s *Store) DeleteStreamsForProvider(ctx context.Context, providerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM streams WHERE provider_id = ?`, providerID)
	if err != nil {
		return errors.Wrapf(err, "deleting streams for provider %s", providerID)
	}
	return nil
}
