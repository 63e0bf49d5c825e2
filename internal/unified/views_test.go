package unified

import (
	"context"
	"testing"
	"time"

	"scryforge/internal/cachestore"
	"scryforge/internal/model"
	"scryforge/internal/provider/dummy"
	"scryforge/internal/registry"
)

type fakeStore struct {
	streams []model.Stream
	items   map[model.StreamID][]model.Item
	saved   []model.Item
	local   []model.Collection
}

func (f *fakeStore) GetStreams(ctx context.Context) ([]model.Stream, error) {
	return f.streams, nil
}

func (f *fakeStore) GetItems(ctx context.Context, streamID model.StreamID, q cachestore.ItemsQuery) ([]model.Item, error) {
	return f.items[streamID], nil
}

func (f *fakeStore) GetSavedItems(ctx context.Context) ([]model.Item, error) {
	return f.saved, nil
}

func (f *fakeStore) GetLocalCollections(ctx context.Context) ([]model.Collection, error) {
	return f.local, nil
}

func TestFeedsAggregatesOnlyFeedKindStreamsOrderedByPublishedDesc(t *testing.T) {
	feedStream := model.NewStreamID("dummy", "feed", "inbox")
	collStream := model.NewStreamID("dummy", "collection", "favorites")
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		streams: []model.Stream{
			{ID: feedStream, ProviderID: "dummy", Kind: model.KindFeed},
			{ID: collStream, ProviderID: "dummy", Kind: model.KindCollection},
		},
		items: map[model.StreamID][]model.Item{
			feedStream: {
				{ID: model.NewItemID("dummy", "old"), StreamID: feedStream, Published: &t1},
				{ID: model.NewItemID("dummy", "new"), StreamID: feedStream, Published: &t2},
			},
			collStream: {
				{ID: model.NewItemID("dummy", "should-not-appear"), StreamID: collStream, Published: &t2},
			},
		},
	}

	v := New(store, registry.New(nil))
	items, err := v.Feeds(context.Background())
	if err != nil {
		t.Fatalf("Feeds: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 feed items, got %d: %v", len(items), items)
	}
	if items[0].ID != model.NewItemID("dummy", "new") {
		t.Errorf("expected newest first, got %s", items[0].ID)
	}
}

func TestSavedDelegatesToStore(t *testing.T) {
	t1 := time.Now()
	store := &fakeStore{saved: []model.Item{{ID: model.NewItemID("dummy", "a"), Published: &t1}}}
	v := New(store, registry.New(nil))

	items, err := v.Saved(context.Background())
	if err != nil {
		t.Fatalf("Saved: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 saved item, got %d", len(items))
	}
}

func TestCollectionsMergesProviderAndLocal(t *testing.T) {
	reg := registry.New(nil)
	if err := reg.Register(context.Background(), dummy.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	store := &fakeStore{local: []model.Collection{
		{ID: model.NewCollectionID("local", "reading-list"), Name: "Reading List", IsEditable: true, Owner: model.OwnerLocal},
	}}
	v := New(store, reg)

	collections, err := v.Collections(context.Background())
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(collections) != 2 {
		t.Fatalf("expected 2 collections (1 provider + 1 local), got %d: %v", len(collections), collections)
	}
}
