package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"scryforge/internal/cachestore"
	"scryforge/internal/log"
	"scryforge/internal/model"
	"scryforge/internal/provider"
	"scryforge/internal/provider/dummy"
	"scryforge/internal/registry"
	"scryforge/internal/search"
	"scryforge/internal/unified"
)

// fakeStore backs both the rpc.Store and search/unified Store interfaces
// with an in-memory fixture, avoiding a real sqlite dependency in these
// dispatch-focused tests.
type fakeStore struct {
	streams []model.Stream
	items   map[model.ItemID]*model.Item

	localCollections map[model.CollectionID]string
	localItems       map[model.CollectionID][]model.ItemID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:            map[model.ItemID]*model.Item{},
		localCollections: map[model.CollectionID]string{},
		localItems:       map[model.CollectionID][]model.ItemID{},
	}
}

func (f *fakeStore) GetStreams(ctx context.Context) ([]model.Stream, error) { return f.streams, nil }

func (f *fakeStore) GetItems(ctx context.Context, streamID model.StreamID, q cachestore.ItemsQuery) ([]model.Item, error) {
	var out []model.Item
	for _, it := range f.items {
		if it.StreamID == streamID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAllItems(ctx context.Context) ([]model.Item, error) {
	var out []model.Item
	for _, it := range f.items {
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeStore) GetSavedItems(ctx context.Context) ([]model.Item, error) {
	var out []model.Item
	for _, it := range f.items {
		if it.IsSaved {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) SearchFTS(ctx context.Context, matchQuery string) ([]model.ItemID, error) {
	return nil, nil
}

func (f *fakeStore) GetItemsByIDs(ctx context.Context, ids []model.ItemID) ([]model.Item, error) {
	var out []model.Item
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, id model.ItemID) error {
	return f.setFlag(id, func(it *model.Item) { it.IsRead = true })
}
func (f *fakeStore) MarkUnread(ctx context.Context, id model.ItemID) error {
	return f.setFlag(id, func(it *model.Item) { it.IsRead = false })
}
func (f *fakeStore) MarkSaved(ctx context.Context, id model.ItemID) error {
	return f.setFlag(id, func(it *model.Item) { it.IsSaved = true })
}
func (f *fakeStore) MarkUnsaved(ctx context.Context, id model.ItemID) error {
	return f.setFlag(id, func(it *model.Item) { it.IsSaved = false })
}
func (f *fakeStore) MarkArchived(ctx context.Context, id model.ItemID) error {
	return f.setFlag(id, func(it *model.Item) { it.IsArchived = true })
}

func (f *fakeStore) setFlag(id model.ItemID, mutate func(*model.Item)) error {
	it, ok := f.items[id]
	if !ok {
		return cachestore.ErrNotFound
	}
	mutate(it)
	return nil
}

func (f *fakeStore) GetLocalCollections(ctx context.Context) ([]model.Collection, error) {
	var out []model.Collection
	for id, name := range f.localCollections {
		out = append(out, model.Collection{ID: id, Name: name, IsEditable: true, Owner: model.OwnerLocal})
	}
	return out, nil
}

func (f *fakeStore) CreateLocalCollection(ctx context.Context, id model.CollectionID, name string) (model.Collection, error) {
	f.localCollections[id] = name
	return model.Collection{ID: id, Name: name, IsEditable: true, Owner: model.OwnerLocal}, nil
}

func (f *fakeStore) AddToLocalCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
	f.localItems[id] = append(f.localItems[id], itemID)
	return nil
}

func (f *fakeStore) RemoveFromLocalCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
	ids := f.localItems[id]
	out := ids[:0]
	for _, existing := range ids {
		if existing != itemID {
			out = append(out, existing)
		}
	}
	f.localItems[id] = out
	return nil
}

func (f *fakeStore) GetLocalCollectionItemIDs(ctx context.Context, id model.CollectionID) ([]model.ItemID, error) {
	return f.localItems[id], nil
}

type fakeScheduler struct {
	triggered []string
	status    map[string]model.ProviderSyncState
}

func (f *fakeScheduler) Trigger(ctx context.Context, providerID string) error {
	f.triggered = append(f.triggered, providerID)
	return nil
}

func (f *fakeScheduler) Status() map[string]model.ProviderSyncState { return f.status }

func newTestHandler(t *testing.T) (*Handler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	reg := registry.New(nil)
	if err := reg.Register(context.Background(), dummy.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h := New(store, reg, search.New(store), unified.New(store, reg), &fakeScheduler{status: map[string]model.ProviderSyncState{}}, log.NewStd())
	return h, store
}

func paramsOf(t *testing.T, args ...interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshaling params: %v", err)
	}
	return raw
}

func TestStreamsList(t *testing.T) {
	h, store := newTestHandler(t)
	store.streams = []model.Stream{{ID: model.NewStreamID("dummy", "feed", "inbox"), ProviderID: "dummy", Kind: model.KindFeed}}

	resp := h.Handle(context.Background(), Request{JSONRPC: "2.0", Method: "streams.list", ID: json.RawMessage("1")})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	streams, ok := resp.Result.([]model.Stream)
	if !ok || len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %#v", resp.Result)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), Request{JSONRPC: "2.0", Method: "bogus.method", ID: json.RawMessage("1")})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected MethodNotFound, got %+v", resp.Error)
	}
}

func TestNotJSONRPC2IsInvalidRequest(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), Request{Method: "streams.list", ID: json.RawMessage("1")})
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected InvalidRequest, got %+v", resp.Error)
	}
}

func TestMarkReadNotFoundMapsToNotFoundCode(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "items.mark_read", ID: json.RawMessage("1"),
		Params: paramsOf(t, "missing:item"),
	})
	if resp.Error == nil || resp.Error.Code != CodeNotFound {
		t.Fatalf("expected NotFound, got %+v", resp.Error)
	}
}

func TestMarkReadIdempotentThroughRPC(t *testing.T) {
	h, store := newTestHandler(t)
	published := time.Now()
	itemID := model.NewItemID("dummy", "a")
	store.items[itemID] = &model.Item{ID: itemID, StreamID: model.NewStreamID("dummy", "feed", "inbox"), Published: &published}

	for i := 0; i < 2; i++ {
		resp := h.Handle(context.Background(), Request{
			JSONRPC: "2.0", Method: "items.mark_read", ID: json.RawMessage("1"),
			Params: paramsOf(t, string(itemID)),
		})
		if resp.Error != nil {
			t.Fatalf("call %d: unexpected error %+v", i, resp.Error)
		}
	}
	if !store.items[itemID].IsRead {
		t.Error("expected item to be marked read")
	}
}

func TestCollectionsCreateAddRemoveRoundTrip(t *testing.T) {
	h, store := newTestHandler(t)
	itemID := model.NewItemID("dummy", "a")
	store.items[itemID] = &model.Item{ID: itemID, StreamID: model.NewStreamID("dummy", "feed", "inbox")}

	createResp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "collections.create", ID: json.RawMessage("1"),
		Params: paramsOf(t, "Reading"),
	})
	if createResp.Error != nil {
		t.Fatalf("create: %+v", createResp.Error)
	}
	coll, ok := createResp.Result.(model.Collection)
	if !ok || coll.ID.Owner() != model.OwnerLocal {
		t.Fatalf("expected a local-owned collection, got %#v", createResp.Result)
	}

	addResp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "collections.add_item", ID: json.RawMessage("2"),
		Params: paramsOf(t, string(coll.ID), string(itemID)),
	})
	if addResp.Error != nil {
		t.Fatalf("add_item: %+v", addResp.Error)
	}

	itemsResp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "collections.items", ID: json.RawMessage("3"),
		Params: paramsOf(t, string(coll.ID)),
	})
	if itemsResp.Error != nil {
		t.Fatalf("items: %+v", itemsResp.Error)
	}
	items, ok := itemsResp.Result.([]model.Item)
	if !ok || len(items) != 1 || items[0].ID != itemID {
		t.Fatalf("expected [%s], got %#v", itemID, itemsResp.Result)
	}

	removeResp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "collections.remove_item", ID: json.RawMessage("4"),
		Params: paramsOf(t, string(coll.ID), string(itemID)),
	})
	if removeResp.Error != nil {
		t.Fatalf("remove_item: %+v", removeResp.Error)
	}

	afterResp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "collections.items", ID: json.RawMessage("5"),
		Params: paramsOf(t, string(coll.ID)),
	})
	after, _ := afterResp.Result.([]model.Item)
	if len(after) != 0 {
		t.Fatalf("expected empty after remove, got %#v", after)
	}
}

func TestSearchQueryFiltersBySavedFlagViaFilterRecord(t *testing.T) {
	h, store := newTestHandler(t)
	streamID := model.NewStreamID("dummy", "feed", "inbox")
	store.items[model.NewItemID("dummy", "a")] = &model.Item{ID: model.NewItemID("dummy", "a"), StreamID: streamID, IsSaved: true}
	store.items[model.NewItemID("dummy", "b")] = &model.Item{ID: model.NewItemID("dummy", "b"), StreamID: streamID, IsSaved: false}

	resp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "search.query", ID: json.RawMessage("1"),
		Params: paramsOf(t, "", map[string]interface{}{"is_saved": true}),
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	items, ok := resp.Result.([]model.Item)
	if !ok || len(items) != 1 || !items[0].IsSaved {
		t.Fatalf("expected exactly the saved item, got %#v", resp.Result)
	}
}

func TestSyncTriggerDelegatesToScheduler(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "sync.trigger", ID: json.RawMessage("1"),
		Params: paramsOf(t, "dummy"),
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestSaveBestEffortPropagatesToProvider(t *testing.T) {
	h, store := newTestHandler(t)
	itemID := model.NewItemID("dummy", "a")
	store.items[itemID] = &model.Item{ID: itemID, StreamID: model.NewStreamID("dummy", "feed", "inbox")}

	resp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0", Method: "items.save", ID: json.RawMessage("1"),
		Params: paramsOf(t, string(itemID)),
	})
	if resp.Error != nil {
		t.Fatalf("save: %+v", resp.Error)
	}
	if !store.items[itemID].IsSaved {
		t.Fatal("expected local is_saved to be set before the RPC returns")
	}

	p, ok := h.registry.Get("dummy")
	if !ok {
		t.Fatal("expected dummy provider registered")
	}
	facet, err := provider.AsHasSavedItems(p)
	if err != nil {
		t.Fatalf("AsHasSavedItems: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		saved, err := facet.IsSaved(context.Background(), itemID)
		if err != nil {
			t.Fatalf("IsSaved: %v", err)
		}
		if saved {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected best-effort save propagation to reach the provider")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBatchRequestsAreDispatchedIndividually(t *testing.T) {
	h, store := newTestHandler(t)
	store.streams = []model.Stream{{ID: model.NewStreamID("dummy", "feed", "inbox"), ProviderID: "dummy", Kind: model.KindFeed}}

	reqs := []Request{
		{JSONRPC: "2.0", Method: "streams.list", ID: json.RawMessage("1")},
		{JSONRPC: "2.0", Method: "bogus", ID: json.RawMessage("2")},
	}
	var resps []Response
	for _, r := range reqs {
		resps = append(resps, h.Handle(context.Background(), r))
	}
	if len(resps) != 2 || resps[0].Error != nil || resps[1].Error == nil {
		t.Fatalf("unexpected batch results: %#v", resps)
	}
}
