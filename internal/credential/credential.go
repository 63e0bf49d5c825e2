// Package credential implements the narrow token-fetching proxy from
// spec.md §4.8: one interface, a daemon-backed default implementation,
// and a TTL cache shared by both. Token contents are never logged, only
// the (service, account) pair and cache hit/miss outcome.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"scryforge/internal/log"
)

// TokenFetcher resolves a bearer token for a (service, account) pair.
type TokenFetcher interface {
	FetchToken(ctx context.Context, service, account string) (string, error)
}

// ErrDaemonUnavailable indicates the external credential daemon could not
// be reached. Per spec.md §4.8 this is not fatal to daemon startup;
// providers requiring a token surface AuthRequired lazily instead.
var ErrDaemonUnavailable = errors.New("credential: daemon unavailable")

type cacheEntry struct {
	token     string
	expiresAt time.Time
}

type cacheKey struct {
	service string
	account string
}

// CachingFetcher wraps an underlying TokenFetcher with a short TTL cache
// keyed by (service, account), grounded on the teacher's popularity
// package's in-memory scored-cache pattern (popularity/popularity.go).
type CachingFetcher struct {
	underlying TokenFetcher
	ttl        time.Duration
	log        log.Log
	now        func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// NewCachingFetcher wraps underlying with a ttl-bounded cache.
func NewCachingFetcher(underlying TokenFetcher, ttl time.Duration, logger log.Log) *CachingFetcher {
	return &CachingFetcher{
		underlying: underlying,
		ttl:        ttl,
		log:        logger,
		now:        time.Now,
		cache:      map[cacheKey]cacheEntry{},
	}
}

// FetchToken returns a cached token if still fresh, else fetches and
// caches a new one.
func (c *CachingFetcher) FetchToken(ctx context.Context, service, account string) (string, error) {
	key := cacheKey{service: service, account: account}
	now := c.now()

	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()

	if ok && now.Before(entry.expiresAt) {
		c.log.WithField("service", service).WithField("account", account).Debug("token cache hit")
		return entry.token, nil
	}

	c.log.WithField("service", service).WithField("account", account).Debug("token cache miss")
	token, err := c.underlying.FetchToken(ctx, service, account)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{token: token, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	return token, nil
}
