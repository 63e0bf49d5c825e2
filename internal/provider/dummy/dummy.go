// Package dummy implements a static, in-memory provider used by tests and
// local development, grounded on original_source/providers/provider-dummy:
// a fixed "inbox" feed with a handful of items, an editable collection,
// and a saved-items facet, all driven from fixture data rather than any
// real external service.
package dummy

import (
	"context"
	"sync"
	"time"

	"scryforge/internal/model"
	"scryforge/internal/provider"
)

const ProviderID = "dummy"

// Provider is a scriptable reference implementation of every facet,
// letting registry/scheduler/rpc tests exercise the full provider
// contract without a real external dependency.
type Provider struct {
	mu             sync.Mutex
	streams        []model.Stream
	items          map[model.StreamID][]model.Item
	savedTags      map[model.ItemID]bool
	communities    []model.Collection
	completedTasks map[model.ItemID]bool

	// SyncErr, when set, makes the next Sync() call fail with this error
	// instead of returning fixture data; used to exercise scheduler
	// backoff and RateLimited propagation.
	SyncErr error
	// SyncCount tracks how many times Sync has been invoked, for
	// single-flight and coalescing tests.
	SyncCount int
}

// New returns a dummy provider seeded with one feed stream
// "dummy:feed:inbox" containing two items, matching spec.md §8 scenario 1.
func New() *Provider {
	streamID := model.NewStreamID(ProviderID, "feed", "inbox")

	published1 := mustParse("2025-01-01T00:00:00Z")
	published2 := mustParse("2025-01-02T00:00:00Z")

	items := []model.Item{
		{
			ID:        model.NewItemID(ProviderID, "a"),
			StreamID:  streamID,
			Title:     "First dummy item",
			Content:   model.Content{Type: model.ContentText, Body: "hello from dummy"},
			Published: &published1,
			Tags:      []string{"test"},
			Metadata:  map[string]string{},
		},
		{
			ID:        model.NewItemID(ProviderID, "b"),
			StreamID:  streamID,
			Title:     "Second dummy item",
			Content:   model.Content{Type: model.ContentText, Body: "more dummy content"},
			Published: &published2,
			Tags:      []string{"test"},
			Metadata:  map[string]string{},
		},
	}

	return &Provider{
		streams: []model.Stream{
			{
				ID:         streamID,
				Name:       "Dummy Inbox",
				ProviderID: ProviderID,
				Kind:       model.KindFeed,
				Icon:       "inbox",
			},
		},
		items:     map[model.StreamID][]model.Item{streamID: items},
		savedTags: map[model.ItemID]bool{},
		communities: []model.Collection{
			{ID: model.NewCollectionID(ProviderID, "general"), Name: "General", IsEditable: false},
		},
		completedTasks: map[model.ItemID]bool{},
	}
}

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "Dummy Provider" }

func (p *Provider) HealthCheck(ctx context.Context) (model.ProviderHealth, error) {
	return model.ProviderHealth{IsHealthy: true}, nil
}

func (p *Provider) Sync(ctx context.Context) (provider.SyncOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SyncCount++

	if p.SyncErr != nil {
		err := p.SyncErr
		p.SyncErr = nil
		return provider.SyncOutput{}, err
	}

	var items []model.Item
	for _, is := range p.items {
		items = append(items, is...)
	}

	return provider.SyncOutput{
		Streams: append([]model.Stream(nil), p.streams...),
		Items:   items,
	}, nil
}

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		HasFeeds:       true,
		HasCollections: true,
		HasSavedItems:  true,
		HasCommunities: true,
		HasTasks:       true,
	}
}

func (p *Provider) AvailableActions(ctx context.Context, item model.Item) ([]provider.Action, error) {
	return []provider.Action{
		{ID: "open", Name: "Open", Kind: provider.ActionOpen},
		{ID: "mark_read", Name: "Mark read", Kind: provider.ActionMarkRead},
	}, nil
}

func (p *Provider) ExecuteAction(ctx context.Context, item model.Item, action provider.Action) (provider.ActionResult, error) {
	return provider.ActionResult{Success: true}, nil
}

// HasFeeds facet.

func (p *Provider) ListFeeds(ctx context.Context) ([]model.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Stream(nil), p.streams...), nil
}

func (p *Provider) GetFeedItems(ctx context.Context, feedID model.StreamID, opts provider.FeedItemsOptions) ([]model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, ok := p.items[feedID]
	if !ok {
		return nil, provider.NewStreamNotFound(string(feedID))
	}

	if opts.Limit != nil && *opts.Limit == 0 {
		return []model.Item{}, nil
	}

	result := append([]model.Item(nil), items...)
	if opts.Limit != nil && *opts.Limit < len(result) {
		result = result[:*opts.Limit]
	}
	return result, nil
}

// HasCollections facet: a single editable "favorites" collection, local to
// this provider's storage, mirroring upstream per spec.md §3 lifecycle note.

func (p *Provider) ListCollections(ctx context.Context) ([]model.Collection, error) {
	return []model.Collection{
		{ID: model.NewCollectionID(ProviderID, "favorites"), Name: "Favorites", IsEditable: true},
	}, nil
}

func (p *Provider) GetCollectionItems(ctx context.Context, id model.CollectionID) ([]model.Item, error) {
	return []model.Item{}, nil
}

func (p *Provider) AddToCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
	return nil
}

func (p *Provider) RemoveFromCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
	return nil
}

func (p *Provider) CreateCollection(ctx context.Context, name string) (model.Collection, error) {
	return model.Collection{ID: model.NewCollectionID(ProviderID, name), Name: name, IsEditable: true}, nil
}

// HasSavedItems facet.

func (p *Provider) GetSavedItems(ctx context.Context, opts provider.SavedItemsOptions) ([]model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []model.Item
	for _, items := range p.items {
		for _, it := range items {
			if !p.savedTags[it.ID] {
				continue
			}
			if opts.Category != nil {
				tagged := false
				for _, tag := range it.Tags {
					tagged = tagged || tag == *opts.Category
				}
				if !tagged {
					continue
				}
			}
			result = append(result, it)
		}
	}
	return result, nil
}

func (p *Provider) IsSaved(ctx context.Context, itemID model.ItemID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.savedTags[itemID], nil
}

func (p *Provider) SaveItem(ctx context.Context, itemID model.ItemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.savedTags[itemID] = true
	return nil
}

func (p *Provider) UnsaveItem(ctx context.Context, itemID model.ItemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.savedTags, itemID)
	return nil
}

// HasCommunities facet: a single read-only "general" community.

func (p *Provider) ListCommunities(ctx context.Context) ([]model.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Collection(nil), p.communities...), nil
}

func (p *Provider) GetCommunity(ctx context.Context, id string) (model.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.communities {
		if string(c.ID) == id {
			return c, nil
		}
	}
	return model.Collection{}, provider.NewItemNotFound(id)
}

// HasTasks facet: completion state over the fixture items, toggled
// independently of is_read/is_saved.

func (p *Provider) CompleteTask(ctx context.Context, taskID model.ItemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completedTasks[taskID] = true
	return nil
}

func (p *Provider) UncompleteTask(ctx context.Context, taskID model.ItemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.completedTasks, taskID)
	return nil
}
