package search

import (
	"context"
	"strings"

	"scryforge/internal/cachestore"
	"scryforge/internal/model"
)

// MaxResults is the mandatory result cap from spec.md §4.6.
const MaxResults = 100

// Store is the subset of cachestore.Store the search engine depends on.
type Store interface {
	SearchFTS(ctx context.Context, matchQuery string) ([]model.ItemID, error)
	GetAllItems(ctx context.Context) ([]model.Item, error)
	GetItemsByIDs(ctx context.Context, ids []model.ItemID) ([]model.Item, error)
}

var _ Store = (*cachestore.Store)(nil)

// Engine evaluates query strings against the durable cache.
type Engine struct {
	store Store
}

// New builds a search Engine over store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Filters is the structured filter record accepted alongside a query
// string by the search.query RPC (spec.md §8 scenario 4: a filter record
// can select is_saved independently of any query text).
type Filters struct {
	IsSaved *bool
	IsRead  *bool
}

// Query parses raw and returns matching items, FTS-rank ordered when a
// free-text residue is present, else published DESC, capped at
// MaxResults. An empty query returns the most recent items.
func (e *Engine) Query(ctx context.Context, raw string) ([]model.Item, error) {
	return e.QueryWithFilters(ctx, raw, Filters{})
}

// QueryWithFilters is Query plus a structured filter record, applied as
// an additional conjunction on top of any query-string field constraints.
func (e *Engine) QueryWithFilters(ctx context.Context, raw string, filters Filters) ([]model.Item, error) {
	pq := Parse(raw)
	if filters.IsSaved != nil {
		pq.IsSaved = filters.IsSaved
	}
	if filters.IsRead != nil {
		pq.IsRead = filters.IsRead
	}

	var candidates []model.Item
	if pq.Residue == "" {
		items, err := e.store.GetAllItems(ctx)
		if err != nil {
			return nil, err
		}
		candidates = items
	} else {
		ids, err := e.store.SearchFTS(ctx, ftsMatchExpr(pq.Residue))
		if err != nil {
			return nil, err
		}
		items, err := e.store.GetItemsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		candidates = reorder(items, ids)
	}

	filtered := make([]model.Item, 0, len(candidates))
	for _, it := range candidates {
		if matches(it, pq) {
			filtered = append(filtered, it)
		}
	}

	if len(filtered) > MaxResults {
		filtered = filtered[:MaxResults]
	}
	return filtered, nil
}

// ftsMatchExpr joins residue tokens with AND, the FTS5 default, making the
// intent explicit for quoted-phrase tokens mixed with bare terms.
func ftsMatchExpr(residue string) string {
	fields := tokenPattern.FindAllString(residue, -1)
	return strings.Join(fields, " AND ")
}

// reorder re-sequences items to match the id order returned by SearchFTS,
// since GetItemsByIDs does not guarantee order is preserved.
func reorder(items []model.Item, order []model.ItemID) []model.Item {
	byID := make(map[model.ItemID]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]model.Item, 0, len(order))
	for _, id := range order {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

func matches(it model.Item, pq ParsedQuery) bool {
	owner := model.Owner(string(it.StreamID))

	for _, p := range pq.ProvidersIn {
		if owner != p {
			return false
		}
	}
	for _, p := range pq.ProvidersOut {
		if owner == p {
			return false
		}
	}
	for _, st := range pq.Streams {
		if string(it.StreamID) != st && !strings.HasSuffix(string(it.StreamID), ":"+st) {
			return false
		}
	}
	for _, w := range pq.TitleWords {
		if !strings.Contains(strings.ToLower(it.Title), strings.ToLower(w)) {
			return false
		}
	}
	for _, w := range pq.ContentWords {
		if !strings.Contains(strings.ToLower(contentText(it)), strings.ToLower(w)) {
			return false
		}
	}
	for _, ty := range pq.Types {
		if string(it.Content.Type) != ty {
			return false
		}
	}
	if pq.IsRead != nil && it.IsRead != *pq.IsRead {
		return false
	}
	if pq.IsSaved != nil && it.IsSaved != *pq.IsSaved {
		return false
	}
	if pq.RequirePublish && it.Published == nil {
		return false
	}
	if pq.SinceCutoff != nil && (it.Published == nil || it.Published.Before(*pq.SinceCutoff)) {
		return false
	}
	if pq.DateFrom != nil && (it.Published == nil || it.Published.Before(*pq.DateFrom)) {
		return false
	}
	if pq.DateTo != nil && (it.Published == nil || !it.Published.Before(*pq.DateTo)) {
		return false
	}
	return true
}

func contentText(it model.Item) string {
	c := it.Content
	switch {
	case c.BodyText != "":
		return c.BodyText
	case c.Body != "":
		return c.Body
	case c.FullContent != "":
		return c.FullContent
	case c.Summary != "":
		return c.Summary
	case c.Description != "":
		return c.Description
	default:
		return ""
	}
}
