package rpc

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"scryforge/internal/cachestore"
	"scryforge/internal/log"
	"scryforge/internal/model"
	"scryforge/internal/provider"
	"scryforge/internal/registry"
	"scryforge/internal/search"
	"scryforge/internal/unified"
)

// Store is the subset of cachestore.Store the RPC handler depends on.
type Store interface {
	GetStreams(ctx context.Context) ([]model.Stream, error)
	GetItems(ctx context.Context, streamID model.StreamID, q cachestore.ItemsQuery) ([]model.Item, error)
	MarkRead(ctx context.Context, id model.ItemID) error
	MarkUnread(ctx context.Context, id model.ItemID) error
	MarkSaved(ctx context.Context, id model.ItemID) error
	MarkUnsaved(ctx context.Context, id model.ItemID) error
	MarkArchived(ctx context.Context, id model.ItemID) error
	GetItemsByIDs(ctx context.Context, ids []model.ItemID) ([]model.Item, error)

	CreateLocalCollection(ctx context.Context, id model.CollectionID, name string) (model.Collection, error)
	AddToLocalCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error
	RemoveFromLocalCollection(ctx context.Context, id model.CollectionID, itemID model.ItemID) error
	GetLocalCollectionItemIDs(ctx context.Context, id model.CollectionID) ([]model.ItemID, error)
}

var _ Store = (*cachestore.Store)(nil)

// Scheduler is the subset of scheduler.Scheduler the RPC handler depends
// on.
type Scheduler interface {
	Trigger(ctx context.Context, providerID string) error
	Status() map[string]model.ProviderSyncState
}

// Handler dispatches JSON-RPC 2.0 requests to the hub's subsystems.
type Handler struct {
	store     Store
	registry  *registry.Registry
	search    *search.Engine
	views     *unified.Views
	scheduler Scheduler
	log       log.Log
}

// New builds a Handler wired to every subsystem it dispatches into.
func New(store Store, reg *registry.Registry, searchEngine *search.Engine, views *unified.Views, sched Scheduler, logger log.Log) *Handler {
	return &Handler{store: store, registry: reg, search: searchEngine, views: views, scheduler: sched, log: logger}
}

const unifiedFeeds = "unified:feeds"
const unifiedSaved = "unified:saved"

// Handle dispatches a single request and returns its response. Handle
// never panics outward: an unexpected panic from a method implementation
// is recovered and reported as Internal.
func (h *Handler) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(req.ID, CodeInternal, "internal error")
		}
	}()

	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "not a JSON-RPC 2.0 request")
	}

	args, err := decodeParams(req.Params)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidParams, err.Error())
	}

	result, err := h.dispatch(ctx, req.Method, args)
	if err != nil {
		if errors.Is(err, errMethodNotFound) {
			return errorResponse(req.ID, CodeMethodNotFound, err.Error())
		}
		if errors.Is(err, errInvalidParams) {
			return errorResponse(req.ID, CodeInvalidParams, err.Error())
		}
		code, msg := codeForError(err)
		return errorResponse(req.ID, code, msg)
	}
	return successResponse(req.ID, result)
}

var (
	errMethodNotFound = errors.New("unknown method")
	errInvalidParams  = errors.New("invalid params")
)

func (h *Handler) dispatch(ctx context.Context, method string, args []json.RawMessage) (interface{}, error) {
	switch method {
	case "streams.list":
		return h.store.GetStreams(ctx)

	case "items.list":
		streamID, err := argString(args, 0)
		if err != nil {
			return nil, errors.Wrap(errInvalidParams, err.Error())
		}
		return h.itemsList(ctx, model.StreamID(streamID))

	case "items.mark_read":
		return h.itemMutation(ctx, args, provider.ActionMarkRead, h.store.MarkRead)
	case "items.mark_unread":
		return h.itemMutation(ctx, args, provider.ActionMarkUnread, h.store.MarkUnread)
	case "items.save":
		return h.itemMutation(ctx, args, provider.ActionSave, h.store.MarkSaved)
	case "items.unsave":
		return h.itemMutation(ctx, args, provider.ActionUnsave, h.store.MarkUnsaved)
	case "items.archive":
		return h.itemMutation(ctx, args, provider.ActionArchive, h.store.MarkArchived)

	case "search.query":
		query, err := argString(args, 0)
		if err != nil {
			return nil, errors.Wrap(errInvalidParams, err.Error())
		}
		rawFilters, err := argMapOptional(args, 1)
		if err != nil {
			return nil, errors.Wrap(errInvalidParams, err.Error())
		}
		return h.search.QueryWithFilters(ctx, query, decodeFilters(rawFilters))

	case "collections.list":
		return h.views.Collections(ctx)
	case "collections.items":
		id, err := argString(args, 0)
		if err != nil {
			return nil, errors.Wrap(errInvalidParams, err.Error())
		}
		return h.collectionItems(ctx, model.CollectionID(id))
	case "collections.add_item":
		return h.collectionMutation(ctx, args, h.store.AddToLocalCollection, func(facet provider.HasCollections, ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
			return facet.AddToCollection(ctx, id, itemID)
		})
	case "collections.remove_item":
		return h.collectionMutation(ctx, args, h.store.RemoveFromLocalCollection, func(facet provider.HasCollections, ctx context.Context, id model.CollectionID, itemID model.ItemID) error {
			return facet.RemoveFromCollection(ctx, id, itemID)
		})
	case "collections.create":
		name, err := argString(args, 0)
		if err != nil {
			return nil, errors.Wrap(errInvalidParams, err.Error())
		}
		id := model.NewCollectionID(model.OwnerLocal, uuid.NewString())
		return h.store.CreateLocalCollection(ctx, id, name)

	case "sync.status":
		return h.scheduler.Status(), nil
	case "sync.trigger":
		providerID, err := argString(args, 0)
		if err != nil {
			return nil, errors.Wrap(errInvalidParams, err.Error())
		}
		return nil, h.scheduler.Trigger(ctx, providerID)
	}

	return nil, errors.Wrapf(errMethodNotFound, "%q", method)
}

func decodeFilters(raw map[string]interface{}) search.Filters {
	var f search.Filters
	if v, ok := raw["is_saved"].(bool); ok {
		f.IsSaved = &v
	}
	if v, ok := raw["is_read"].(bool); ok {
		f.IsRead = &v
	}
	return f
}

func (h *Handler) itemsList(ctx context.Context, streamID model.StreamID) ([]model.Item, error) {
	switch string(streamID) {
	case unifiedFeeds:
		return h.views.Feeds(ctx)
	case unifiedSaved:
		return h.views.Saved(ctx)
	}
	return h.store.GetItems(ctx, streamID, cachestore.ItemsQuery{})
}

// itemMutation fulfills a mark_read/mark_unread/save/unsave/archive action
// against the local cache, per spec.md §4.1: these five action kinds are
// always fulfilled by the core before any provider delegation. save/unsave
// additionally reflect to the owning provider's HasSavedItems facet as a
// best-effort, asynchronous follow-up (spec.md §4.7 and the Open Question
// at spec.md:272; see DESIGN.md's Open Question resolutions).
func (h *Handler) itemMutation(ctx context.Context, args []json.RawMessage, kind provider.ActionKind, fn func(context.Context, model.ItemID) error) (interface{}, error) {
	if !provider.IsCoreHandled(kind) {
		return nil, errors.Errorf("action %q is not core-handled", kind)
	}

	idStr, err := argString(args, 0)
	if err != nil {
		return nil, errors.Wrap(errInvalidParams, err.Error())
	}
	id := model.ItemID(idStr)

	if err := fn(ctx, id); err != nil {
		return nil, err
	}

	h.propagateSavedState(kind, id)
	return nil, nil
}

// propagateSavedState reflects a save/unsave to the item's owning provider
// once the local mutation has already succeeded. It never blocks the RPC
// response and never surfaces its own failure: a provider that rejects or
// times out on the follow-up leaves C5 as the source of truth.
func (h *Handler) propagateSavedState(kind provider.ActionKind, id model.ItemID) {
	if kind != provider.ActionSave && kind != provider.ActionUnsave {
		return
	}

	p, ok := h.registry.Get(id.Owner())
	if !ok {
		return
	}
	facet, err := provider.AsHasSavedItems(p)
	if err != nil {
		return
	}

	go func() {
		var err error
		if kind == provider.ActionSave {
			err = facet.SaveItem(context.Background(), id)
		} else {
			err = facet.UnsaveItem(context.Background(), id)
		}
		if err != nil {
			h.log.WithField("provider", p.ID()).Errorf("best-effort %s propagation for %s failed: %v", kind, id, err)
		}
	}()
}

func (h *Handler) collectionItems(ctx context.Context, id model.CollectionID) ([]model.Item, error) {
	if id.Owner() == model.OwnerLocal {
		ids, err := h.store.GetLocalCollectionItemIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		return h.store.GetItemsByIDs(ctx, ids)
	}

	p, ok := h.registry.Get(id.Owner())
	if !ok {
		return nil, provider.NewStreamNotFound(string(id))
	}
	facet, err := provider.AsHasCollections(p)
	if err != nil {
		return nil, err
	}
	return facet.GetCollectionItems(ctx, id)
}

func (h *Handler) collectionMutation(
	ctx context.Context,
	args []json.RawMessage,
	local func(context.Context, model.CollectionID, model.ItemID) error,
	viaProvider func(provider.HasCollections, context.Context, model.CollectionID, model.ItemID) error,
) (interface{}, error) {
	collID, err := argString(args, 0)
	if err != nil {
		return nil, errors.Wrap(errInvalidParams, err.Error())
	}
	itemID, err := argString(args, 1)
	if err != nil {
		return nil, errors.Wrap(errInvalidParams, err.Error())
	}

	id := model.CollectionID(collID)
	if id.Owner() == model.OwnerLocal {
		return nil, local(ctx, id, model.ItemID(itemID))
	}

	p, ok := h.registry.Get(id.Owner())
	if !ok {
		return nil, provider.NewStreamNotFound(collID)
	}
	facet, err := provider.AsHasCollections(p)
	if err != nil {
		return nil, err
	}
	return nil, viaProvider(facet, ctx, id, model.ItemID(itemID))
}
