// Package rss implements the HasFeeds provider facet over plain RSS/Atom
// feeds, grounded on the teacher's feed_manager.go polling loop: a fixed
// set of source URLs fetched and parsed on every Sync, generalized from
// the teacher's home-grown XML unmarshaling to github.com/mmcdole/gofeed
// (the parser dependency present across the retrieval pack) and rate
// limited with golang.org/x/time/rate the way the teacher rate limits its
// hubbub subscription pings (see hubbub.go).
package rss

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"scryforge/internal/model"
	"scryforge/internal/provider"
)

// Provider polls a fixed set of RSS/Atom feed URLs and exposes each as a
// Feed-kind stream.
type Provider struct {
	id      string
	name    string
	sources []source

	parser  *gofeed.Parser
	limiter *rate.Limiter
	client  *http.Client

	mu      sync.Mutex
	streams []model.Stream
	items   map[model.StreamID][]model.Item
}

// WithHTTPClient overrides the default http.Client used to fetch feed
// bodies, letting tests point at an httptest.Server without a real
// network round trip.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

type source struct {
	streamLocal string
	name        string
	url         string
}

// Option customizes a Provider at construction.
type Option func(*Provider)

// WithRateLimit overrides the default one-request-per-second ceiling
// applied across every feed fetched by one Sync call.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(p *Provider) { p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// New builds an RSS provider identified by id, polling the given
// name→url feed sources.
func New(id, name string, feeds map[string]string, opts ...Option) *Provider {
	sources := make([]source, 0, len(feeds))
	for feedName, url := range feeds {
		sources = append(sources, source{streamLocal: slug(url), name: feedName, url: url})
	}

	p := &Provider{
		id:      id,
		name:    name,
		sources: sources,
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		client:  http.DefaultClient,
		items:   map[model.StreamID][]model.Item{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func slug(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

func (p *Provider) ID() string   { return p.id }
func (p *Provider) Name() string { return p.name }

// fetch retrieves and parses one feed URL over p.client, so tests can
// substitute an httptest.Server client without a real network round trip.
func (p *Provider) fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return p.parser.Parse(resp.Body)
}

func (p *Provider) HealthCheck(ctx context.Context) (model.ProviderHealth, error) {
	if len(p.sources) == 0 {
		return model.ProviderHealth{IsHealthy: false, Message: "no feed sources configured"}, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return model.ProviderHealth{}, errors.Wrap(err, "waiting on rate limiter")
	}
	if _, err := p.fetch(ctx, p.sources[0].url); err != nil {
		return model.ProviderHealth{IsHealthy: false, Message: err.Error()}, nil
	}
	return model.ProviderHealth{IsHealthy: true}, nil
}

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{HasFeeds: true}
}

// Sync fetches every configured feed, rate limited to avoid hammering a
// slow or misbehaving source, and returns every stream/item it produced.
// A single feed's fetch failure does not abort the others; it is folded
// into a combined error only if every feed failed.
func (p *Provider) Sync(ctx context.Context) (provider.SyncOutput, error) {
	var (
		streams    []model.Stream
		items      []model.Item
		failures   int
		lastErr    error
		itemsByStr = map[model.StreamID][]model.Item{}
	)

	for _, src := range p.sources {
		if err := p.limiter.Wait(ctx); err != nil {
			return provider.SyncOutput{}, err
		}

		feed, err := p.fetch(ctx, src.url)
		if err != nil {
			failures++
			lastErr = err
			continue
		}

		streamID := model.NewStreamID(p.id, "feed", src.streamLocal)
		streams = append(streams, model.Stream{
			ID:         streamID,
			Name:       feedName(feed, src),
			ProviderID: p.id,
			Kind:       model.KindFeed,
		})

		feedItems := make([]model.Item, 0, len(feed.Items))
		for _, fi := range feed.Items {
			feedItems = append(feedItems, toModelItem(p.id, streamID, fi))
		}
		items = append(items, feedItems...)
		itemsByStr[streamID] = feedItems
	}

	if failures > 0 && failures == len(p.sources) {
		return provider.SyncOutput{}, errors.Wrap(lastErr, "every configured feed failed to fetch")
	}

	p.mu.Lock()
	p.streams = streams
	for id, its := range itemsByStr {
		p.items[id] = its
	}
	p.mu.Unlock()

	return provider.SyncOutput{Streams: streams, Items: items}, nil
}

func feedName(feed *gofeed.Feed, src source) string {
	if feed.Title != "" {
		return feed.Title
	}
	return src.name
}

func toModelItem(providerID string, streamID model.StreamID, fi *gofeed.Item) model.Item {
	localID := fi.GUID
	if localID == "" {
		localID = fi.Link
	}

	var author *model.Author
	if fi.Author != nil {
		author = &model.Author{Name: fi.Author.Name, Email: fi.Author.Email}
	}

	body := fi.Content
	if body == "" {
		body = fi.Description
	}

	return model.Item{
		ID:        model.NewItemID(providerID, slug(providerID+":"+localID)),
		StreamID:  streamID,
		Title:     fi.Title,
		Content:   model.Content{Type: model.ContentArticle, Summary: fi.Description, FullContent: body},
		Author:    author,
		Published: fi.PublishedParsed,
		Updated:   fi.UpdatedParsed,
		URL:       fi.Link,
		Tags:      fi.Categories,
		Metadata:  map[string]string{},
	}
}

// AvailableActions offers the generic open/mark_read pair every feed item
// supports; RSS items have no provider-side action beyond navigation.
func (p *Provider) AvailableActions(ctx context.Context, item model.Item) ([]provider.Action, error) {
	return []provider.Action{
		{ID: "open", Name: "Open", Kind: provider.ActionOpen},
		{ID: "mark_read", Name: "Mark read", Kind: provider.ActionMarkRead},
	}, nil
}

func (p *Provider) ExecuteAction(ctx context.Context, item model.Item, action provider.Action) (provider.ActionResult, error) {
	return provider.ActionResult{}, provider.NewNotSupported(action.ID)
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

	result := append([]model.Item(nil), items...)
	if opts.Since != nil {
		cutoff := time.Unix(*opts.Since, 0)
		filtered := result[:0]
		for _, it := range result {
			if it.Published != nil && it.Published.After(cutoff) {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}
	if opts.Limit != nil && *opts.Limit < len(result) {
		result = result[:*opts.Limit]
	}
	return result, nil
}
