package cachestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"scryforge/internal/model"
)

// UpsertItems inserts or updates items in a single transaction, atomically
// per spec.md §5 ordering guarantee (1). On conflict: content fields are
// overwritten, is_read/is_saved/is_archived are preserved (I-3), tags and
// metadata are merged with incoming values winning (I-4). After the
// upsert, any stream now exceeding maxItemsPerStream is pruned, skipping
// saved or archived items (spec.md §4.4 Retention).
func (s *Store) UpsertItems(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	touchedStreams := map[model.StreamID]bool{}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, it := range items {
			touchedStreams[it.StreamID] = true

			var existingRow itemRow
			err := tx.Get(&existingRow, `SELECT * FROM items WHERE id = ?`, string(it.ID))
			switch {
			case err == nil:
				existing, convErr := existingRow.toModel()
				if convErr != nil {
					return convErr
				}
				merged := it.MergeFlags(existing).MergeTagsAndMetadata(existing)
				row, convErr := rowFromItem(merged, existingRow.CreatedAt, now)
				if convErr != nil {
					return convErr
				}
				if _, execErr := tx.NamedExec(`
					UPDATE items SET stream_id=:stream_id, title=:title, content_type=:content_type,
						content_data_json=:content_data_json, author_name=:author_name,
						author_email=:author_email, author_url=:author_url, author_avatar=:author_avatar,
						published=:published, updated=:updated, url=:url, thumbnail_url=:thumbnail_url,
						is_read=:is_read, is_saved=:is_saved, is_archived=:is_archived,
						tags_json=:tags_json, metadata_json=:metadata_json, updated_at=:updated_at
					WHERE id=:id`, row); execErr != nil {
					return errors.Wrapf(execErr, "updating item %s", it.ID)
				}
			case errors.Is(err, sql.ErrNoRows):
				row, convErr := rowFromItem(it, now, now)
				if convErr != nil {
					return convErr
				}
				if _, execErr := tx.NamedExec(`
					INSERT INTO items(id, stream_id, title, content_type, content_data_json,
						author_name, author_email, author_url, author_avatar, published, updated,
						url, thumbnail_url, is_read, is_saved, is_archived, tags_json, metadata_json,
						created_at, updated_at)
					VALUES (:id, :stream_id, :title, :content_type, :content_data_json,
						:author_name, :author_email, :author_url, :author_avatar, :published, :updated,
						:url, :thumbnail_url, :is_read, :is_saved, :is_archived, :tags_json, :metadata_json,
						:created_at, :updated_at)`, row); execErr != nil {
					return errors.Wrapf(execErr, "inserting item %s", it.ID)
				}
			default:
				return errors.Wrapf(err, "looking up item %s", it.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for streamID := range touchedStreams {
		if err := s.pruneStream(ctx, streamID); err != nil {
			return err
		}
	}
	return nil
}

// pruneStream deletes oldest-by-published items in excess of
// maxItemsPerStream, never touching saved or archived items.
func (s *Store) pruneStream(ctx context.Context, streamID model.StreamID) error {
	if s.maxItemsPerStream <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE id IN (
			SELECT id FROM items
			WHERE stream_id = ? AND is_saved = 0 AND is_archived = 0
			ORDER BY published DESC, id ASC
			LIMIT -1 OFFSET ?
		)`, string(streamID), s.maxItemsPerStream)
	if err != nil {
		return errors.Wrapf(err, "pruning stream %s", streamID)
	}
	return nil
}

// ItemsQuery parameterizes GetItems.
type ItemsQuery struct {
	Limit      *int
	Offset     *int
	IsRead     *bool
	IsSaved    *bool
	IsArchived *bool
}

// GetItems returns items in stream ordered published DESC then id ASC for
// stable pagination, per spec.md §4.4. It returns ErrNotFound if streamID
// does not name a cached stream, so a provider removed from the registry
// (and its streams cascaded away, see DeleteStreamsForProvider) reports
// NotFound rather than an empty result.
func (s *Store) GetItems(ctx context.Context, streamID model.StreamID, q ItemsQuery) ([]model.Item, error) {
	if _, err := s.GetStream(ctx, streamID); err != nil {
		return nil, err
	}

	if q.Limit != nil && *q.Limit == 0 {
		return []model.Item{}, nil
	}

	query := `SELECT * FROM items WHERE stream_id = ?`
	args := []interface{}{string(streamID)}

	if q.IsRead != nil {
		query += ` AND is_read = ?`
		args = append(args, boolToInt(*q.IsRead))
	}
	if q.IsSaved != nil {
		query += ` AND is_saved = ?`
		args = append(args, boolToInt(*q.IsSaved))
	}
	if q.IsArchived != nil {
		query += ` AND is_archived = ?`
		args = append(args, boolToInt(*q.IsArchived))
	}

	query += ` ORDER BY published DESC, id ASC`

	if q.Limit != nil {
		query += ` LIMIT ?`
		args = append(args, *q.Limit)
		if q.Offset != nil {
			query += ` OFFSET ?`
			args = append(args, *q.Offset)
		}
	} else if q.Offset != nil {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, *q.Offset)
	}

	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrapf(err, "selecting items for stream %s", streamID)
	}

	return rowsToItems(rows)
}

// GetItem returns a single item by id, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id model.ItemID) (model.Item, error) {
	var row itemRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM items WHERE id = ?`, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Item{}, ErrNotFound
		}
		return model.Item{}, errors.Wrapf(err, "selecting item %s", id)
	}
	return row.toModel()
}

// GetItemsByIDs returns items matching the given ids, in no particular
// order; ids that don't exist are silently omitted.
func (s *Store) GetItemsByIDs(ctx context.Context, ids []model.ItemID) ([]model.Item, error) {
	if len(ids) == 0 {
		return []model.Item{}, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}

	query, args, err := sqlx.In(`SELECT * FROM items WHERE id IN (?)`, strs)
	if err != nil {
		return nil, errors.Wrap(err, "building IN query")
	}

	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting items by id")
	}
	return rowsToItems(rows)
}

// GetAllItems returns every cached item ordered published DESC then id
// ASC, used by unified views and the empty-query search path.
func (s *Store) GetAllItems(ctx context.Context) ([]model.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM items ORDER BY published DESC, id ASC`); err != nil {
		return nil, errors.Wrap(err, "selecting all items")
	}
	return rowsToItems(rows)
}

// GetSavedItems returns every item with is_saved = true, used by the
// unified:saved view.
func (s *Store) GetSavedItems(ctx context.Context) ([]model.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM items WHERE is_saved = 1 ORDER BY published DESC, id ASC`); err != nil {
		return nil, errors.Wrap(err, "selecting saved items")
	}
	return rowsToItems(rows)
}

func rowsToItems(rows []itemRow) ([]model.Item, error) {
	items := make([]model.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- State mutations (idempotent single-row operations, spec.md §4.4) ---

func (s *Store) setFlag(ctx context.Context, id model.ItemID, column string, value bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		boolToInt(value), time.Now().UTC(), string(id))
	if err != nil {
		return errors.Wrapf(err, "setting %s on item %s", column, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkRead(ctx context.Context, id model.ItemID) error      { return s.setFlag(ctx, id, "is_read", true) }
func (s *Store) MarkUnread(ctx context.Context, id model.ItemID) error    { return s.setFlag(ctx, id, "is_read", false) }
func (s *Store) MarkSaved(ctx context.Context, id model.ItemID) error     { return s.setFlag(ctx, id, "is_saved", true) }
func (s *Store) MarkUnsaved(ctx context.Context, id model.ItemID) error   { return s.setFlag(ctx, id, "is_saved", false) }
func (s *Store) MarkArchived(ctx context.Context, id model.ItemID) error  { return s.setFlag(ctx, id, "is_archived", true) }
func (s *Store) Unarchive(ctx context.Context, id model.ItemID) error     { return s.setFlag(ctx, id, "is_archived", false) }
