package cachestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"scryforge/internal/model"
)

// CreateLocalCollection persists a new local:-owned collection, per
// spec.md §3: "collections created by the local owner are mutated by
// collections.create/add_item/remove_item RPC calls."
func (s *Store) CreateLocalCollection(ctx context.Context, id model.CollectionID, name string) (model.Collection, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_collections(id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		string(id), name, now, now)
	if err != nil {
		return model.Collection{}, errors.Wrapf(err, "creating local collection %s", id)
	}
	return model.Collection{ID: id, Name: name, IsEditable: true, Owner: model.OwnerLocal}, nil
}

// GetLocalCollections returns every local:-owned collection.
func (s *Store) GetLocalCollections(ctx context.Context) ([]model.Collection, error) {
	type row struct {
		ID          string `db:"id"`
		Name        string `db:"name"`
		Description string `db:"description"`
		Icon        string `db:"icon"`
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, coalesce(description,'') as description, coalesce(icon,'') as icon FROM local_collections`); err != nil {
		return nil, errors.Wrap(err, "selecting local collections")
	}

	collections := make([]model.Collection, 0, len(rows))
	for _, r := range rows {
		count, err := s.localCollectionItemCount(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		collections = append(collections, model.Collection{
			ID: model.CollectionID(r.ID), Name: r.Name, Description: r.Description,
			Icon: r.Icon, ItemCount: count, IsEditable: true, Owner: model.OwnerLocal,
		})
	}
	return collections, nil
}

func (s *Store) localCollectionItemCount(ctx context.Context, id string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT count(*) FROM local_collection_items WHERE collection_id = ?`, id); err != nil {
		return 0, errors.Wrapf(err, "counting items in collection %s", id)
	}
	return count, nil
}

// AddToLocalCollection appends itemID to the end of the collection's item
// order (spec.md §4.1's ordering-is-observable contract, applied to local
// collections as well). Returns ErrNotFound if the collection doesn't
// exist.
func (s *Store) AddToLocalCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.Get(&exists, `SELECT count(*) FROM local_collections WHERE id = ?`, string(id)); err != nil {
			return errors.Wrapf(err, "checking collection %s", id)
		}
		if exists == 0 {
			return ErrNotFound
		}

		var maxPos sql.NullInt64
		if err := tx.Get(&maxPos, `SELECT max(position) FROM local_collection_items WHERE collection_id = ?`, string(id)); err != nil {
			return errors.Wrap(err, "finding max position")
		}
		nextPos := int64(0)
		if maxPos.Valid {
			nextPos = maxPos.Int64 + 1
		}

		_, err := tx.Exec(`
			INSERT INTO local_collection_items(collection_id, item_id, position) VALUES (?, ?, ?)
			ON CONFLICT(collection_id, item_id) DO NOTHING`, string(id), string(itemID), nextPos)
		if err != nil {
			return errors.Wrapf(err, "adding item %s to collection %s", itemID, id)
		}
		return nil
	})
}

// RemoveFromLocalCollection removes itemID from the collection.
func (s *Store) RemoveFromLocalCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM local_collection_items WHERE collection_id = ? AND item_id = ?`, string(id), string(itemID))
	if err != nil {
		return errors.Wrapf(err, "removing item %s from collection %s", itemID, id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLocalCollectionItemIDs returns the item ids in a local collection in
// their preserved insertion order.
func (s *Store) GetLocalCollectionItemIDs(ctx context.Context, id model.CollectionID) ([]model.ItemID, error) {
	var strs []string
	if err := s.db.SelectContext(ctx, &strs, `SELECT item_id FROM local_collection_items WHERE collection_id = ? ORDER BY position ASC`, string(id)); err != nil {
		return nil, errors.Wrapf(err, "selecting items for collection %s", id)
	}
	ids := make([]model.ItemID, len(strs))
	for i, s := range strs {
		ids[i] = model.ItemID(s)
	}
	return ids, nil
}
