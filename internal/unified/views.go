// Package unified computes the three synthetic, read-only aggregate
// views described in spec.md §4.6: unified:feeds, unified:saved, and
// unified:collections. None of these views are persisted; they are
// assembled fresh from the cache and live providers on every request.
package unified

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"scryforge/internal/cachestore"
	"scryforge/internal/model"
	"scryforge/internal/provider"
	"scryforge/internal/registry"
)

// Store is the subset of cachestore.Store the unified views depend on.
type Store interface {
	GetStreams(ctx context.Context) ([]model.Stream, error)
	GetItems(ctx context.Context, streamID model.StreamID, q cachestore.ItemsQuery) ([]model.Item, error)
	GetSavedItems(ctx context.Context) ([]model.Item, error)
	GetLocalCollections(ctx context.Context) ([]model.Collection, error)
}

var _ Store = (*cachestore.Store)(nil)

// Views assembles the unified aggregate views.
type Views struct {
	store    Store
	registry *registry.Registry
}

// New builds a Views aggregator over store and reg.
func New(store Store, reg *registry.Registry) *Views {
	return &Views{store: store, registry: reg}
}

// Feeds returns unified:feeds — every item belonging to a Feed-kind
// stream, across all providers, ordered published DESC.
func (v *Views) Feeds(ctx context.Context) ([]model.Item, error) {
	streams, err := v.store.GetStreams(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing streams for unified:feeds")
	}

	var items []model.Item
	for _, st := range streams {
		if st.Kind != model.KindFeed {
			continue
		}
		streamItems, err := v.store.GetItems(ctx, st.ID, cachestore.ItemsQuery{})
		if err != nil {
			return nil, errors.Wrapf(err, "listing items for stream %s", st.ID)
		}
		items = append(items, streamItems...)
	}

	sortByPublishedDesc(items)
	return items, nil
}

// Saved returns unified:saved — every item with is_saved = true across
// all providers, backed directly by the durable is_saved column.
func (v *Views) Saved(ctx context.Context) ([]model.Item, error) {
	items, err := v.store.GetSavedItems(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing items for unified:saved")
	}
	sortByPublishedDesc(items)
	return items, nil
}

// Collections returns unified:collections — every collection exposed by
// a provider's HasCollections facet, plus locally-owned collections
// persisted in the cache.
func (v *Views) Collections(ctx context.Context) ([]model.Collection, error) {
	var collections []model.Collection

	for _, p := range v.registry.List() {
		facet, err := provider.AsHasCollections(p)
		if err != nil {
			continue
		}
		provided, err := facet.ListCollections(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "listing collections for provider %s", p.ID())
		}
		collections = append(collections, provided...)
	}

	local, err := v.store.GetLocalCollections(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing local collections for unified:collections")
	}
	collections = append(collections, local...)

	sort.Slice(collections, func(i, j int) bool { return collections[i].Name < collections[j].Name })
	return collections, nil
}

func sortByPublishedDesc(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := items[i].Published, items[j].Published
		switch {
		case pi == nil && pj == nil:
			return items[i].ID < items[j].ID
		case pi == nil:
			return false
		case pj == nil:
			return true
		case pi.Equal(*pj):
			return items[i].ID < items[j].ID
		default:
			return pi.After(*pj)
		}
	})
}
