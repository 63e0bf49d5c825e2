// Package provider defines the capability contract every external source
// implements: a mandatory base capability plus five optional facets,
// discriminated at runtime by Capabilities() rather than by type
// switching or reflection, per spec.md §4.1's design note.
package provider

import (
	"context"

	"scryforge/internal/model"
)

// Capabilities is the plain record of booleans a provider returns to
// declare which facets it implements.
type Capabilities struct {
	HasFeeds       bool
	HasCollections bool
	HasSavedItems  bool
	HasCommunities bool
	HasTasks       bool
}

// Provider is the mandatory base capability every provider implements.
type Provider interface {
	// ID is the unique, kebab-case provider identifier.
	ID() string
	// Name is the display name.
	Name() string

	// HealthCheck probes connectivity without mutating the cache.
	HealthCheck(ctx context.Context) (model.ProviderHealth, error)

	// Sync performs one incremental synchronization cycle.
	Sync(ctx context.Context) (SyncOutput, error)

	Capabilities() Capabilities

	AvailableActions(ctx context.Context, item model.Item) ([]Action, error)
	ExecuteAction(ctx context.Context, item model.Item, action Action) (ActionResult, error)
}

// SyncOutput carries everything one sync cycle produced; the scheduler
// folds this into model.SyncResult counts and feeds streams/items to the
// cache store.
type SyncOutput struct {
	Streams []model.Stream
	Items   []model.Item
}

// HasFeeds is the facet for feed-like sources.
type HasFeeds interface {
	ListFeeds(ctx context.Context) ([]model.Stream, error)
	GetFeedItems(ctx context.Context, feedID model.StreamID, opts FeedItemsOptions) ([]model.Item, error)
}

// FeedItemsOptions parameterizes HasFeeds.GetFeedItems.
type FeedItemsOptions struct {
	Limit       *int
	Offset      *int
	Since       *int64 // unix seconds
	IncludeRead bool
}

// HasCollections is the facet for collection-like sources. AddToCollection,
// RemoveFromCollection, and CreateCollection are only meaningful on
// collections that report IsEditable == true.
type HasCollections interface {
	ListCollections(ctx context.Context) ([]model.Collection, error)
	GetCollectionItems(ctx context.Context, id model.CollectionID) ([]model.Item, error)

	AddToCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error
	RemoveFromCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error
	CreateCollection(ctx context.Context, name string) (model.Collection, error)
}

// HasSavedItems is the facet for saved-items-like sources.
type HasSavedItems interface {
	GetSavedItems(ctx context.Context, opts SavedItemsOptions) ([]model.Item, error)
	IsSaved(ctx context.Context, itemID model.ItemID) (bool, error)
	SaveItem(ctx context.Context, itemID model.ItemID) error
	UnsaveItem(ctx context.Context, itemID model.ItemID) error
}

// SavedItemsOptions parameterizes HasSavedItems.GetSavedItems. Category is
// matched against item tags (see SPEC_FULL.md §C.3).
type SavedItemsOptions struct {
	Limit    *int
	Offset   *int
	Category *string
}

// HasCommunities is the facet for community-like sources.
type HasCommunities interface {
	ListCommunities(ctx context.Context) ([]model.Collection, error)
	GetCommunity(ctx context.Context, id string) (model.Collection, error)
}

// HasTasks is the facet for task-like sources.
type HasTasks interface {
	CompleteTask(ctx context.Context, taskID model.ItemID) error
	UncompleteTask(ctx context.Context, taskID model.ItemID) error
}

// AsHasCollections probes p for the HasCollections facet.
func AsHasCollections(p Provider) (HasCollections, error) {
	if !p.Capabilities().HasCollections {
		return nil, NewNotSupported("collections")
	}
	f, ok := p.(HasCollections)
	if !ok {
		return nil, NewNotSupported("collections")
	}
	return f, nil
}

// AsHasSavedItems probes p for the HasSavedItems facet.
func AsHasSavedItems(p Provider) (HasSavedItems, error) {
	if !p.Capabilities().HasSavedItems {
		return nil, NewNotSupported("saved_items")
	}
	f, ok := p.(HasSavedItems)
	if !ok {
		return nil, NewNotSupported("saved_items")
	}
	return f, nil
}
