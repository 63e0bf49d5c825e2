package credential

import (
	"context"
	"sync"

	"scryforge/internal/provider"
)

// MemoryFetcher is an in-memory map-backed TokenFetcher, for tests and
// providers configured without an external credential daemon.
type MemoryFetcher struct {
	mu     sync.RWMutex
	tokens map[cacheKey]string
}

// NewMemoryFetcher returns an empty MemoryFetcher.
func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{tokens: map[cacheKey]string{}}
}

// Set installs a token for (service, account).
func (m *MemoryFetcher) Set(service, account, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[cacheKey{service: service, account: account}] = token
}

// FetchToken returns the installed token, or AuthRequired if none was set,
// matching how a real provider would surface a missing credential lazily.
func (m *MemoryFetcher) FetchToken(ctx context.Context, service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[cacheKey{service: service, account: account}]
	if !ok {
		return "", provider.NewAuthRequired("no token configured for " + service + "/" + account)
	}
	return token, nil
}
