package cachestore

import (
	"context"

	"github.com/pkg/errors"

	"scryforge/internal/model"
)

// SearchFTS runs matchQuery against the items_fts shadow index and returns
// matching item ids ordered by relevance (bm25 rank) then published DESC,
// per spec.md §4.6's FTS-rank-then-recency ordering rule. An empty
// matchQuery returns no rows; callers fall back to GetAllItems for the
// empty-residue case.
func (s *Store) SearchFTS(ctx context.Context, matchQuery string) ([]model.ItemID, error) {
	if matchQuery == "" {
		return nil, nil
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT items.id FROM items_fts
		JOIN items ON items.rowid = items_fts.rowid
		WHERE items_fts MATCH ?
		ORDER BY bm25(items_fts), items.published DESC`, matchQuery)
	if err != nil {
		return nil, errors.Wrap(err, "running fts query")
	}
	defer rows.Close()

	var ids []model.ItemID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning fts row")
		}
		ids = append(ids, model.ItemID(id))
	}
	return ids, rows.Err()
}
