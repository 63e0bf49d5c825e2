package credential

import (
	"context"
	"testing"
	"time"

	"scryforge/internal/log"
)

type countingFetcher struct {
	calls int
	token string
	err   error
}

func (c *countingFetcher) FetchToken(ctx context.Context, service, account string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.token, nil
}

func TestCachingFetcherCachesWithinTTL(t *testing.T) {
	inner := &countingFetcher{token: "tok-1"}
	fixedNow := time.Now()
	c := NewCachingFetcher(inner, time.Minute, log.NewStd())
	c.now = func() time.Time { return fixedNow }

	for i := 0; i < 3; i++ {
		tok, err := c.FetchToken(context.Background(), "gmail", "alice")
		if err != nil {
			t.Fatalf("FetchToken: %v", err)
		}
		if tok != "tok-1" {
			t.Errorf("token = %q, want tok-1", tok)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 underlying call within TTL, got %d", inner.calls)
	}
}

func TestCachingFetcherRefetchesAfterExpiry(t *testing.T) {
	inner := &countingFetcher{token: "tok-1"}
	now := time.Now()
	c := NewCachingFetcher(inner, time.Minute, log.NewStd())
	c.now = func() time.Time { return now }

	if _, err := c.FetchToken(context.Background(), "gmail", "alice"); err != nil {
		t.Fatalf("FetchToken: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.FetchToken(context.Background(), "gmail", "alice"); err != nil {
		t.Fatalf("FetchToken: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected refetch after TTL expiry, got %d calls", inner.calls)
	}
}

func TestMemoryFetcherReturnsAuthRequiredWhenUnset(t *testing.T) {
	m := NewMemoryFetcher()
	_, err := m.FetchToken(context.Background(), "gmail", "alice")
	if err == nil {
		t.Fatal("expected AuthRequired error for unset token")
	}
}

func TestMemoryFetcherReturnsSetToken(t *testing.T) {
	m := NewMemoryFetcher()
	m.Set("gmail", "alice", "tok-abc")

	tok, err := m.FetchToken(context.Background(), "gmail", "alice")
	if err != nil {
		t.Fatalf("FetchToken: %v", err)
	}
	if tok != "tok-abc" {
		t.Errorf("token = %q, want tok-abc", tok)
	}
}
