package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"scryforge/internal/model"
	"scryforge/internal/provider"
)

const fixtureFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>First post</title>
      <link>https://example.test/1</link>
      <guid>https://example.test/1</guid>
      <description>hello world</description>
      <pubDate>Wed, 01 Jan 2025 00:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.test/2</link>
      <guid>https://example.test/2</guid>
      <description>more content</description>
      <pubDate>Thu, 02 Jan 2025 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestProvider(t *testing.T, body string, status int) (*Provider, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	p := New("rss", "Test RSS", map[string]string{"example": ts.URL}, WithRateLimit(1000, 10), WithHTTPClient(ts.Client()))
	return p, ts
}

func TestSyncParsesFeedIntoStreamAndItems(t *testing.T) {
	p, _ := newTestProvider(t, fixtureFeed, http.StatusOK)

	out, err := p.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(out.Streams))
	}
	if out.Streams[0].Kind != model.KindFeed {
		t.Errorf("expected Feed kind, got %s", out.Streams[0].Kind)
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out.Items))
	}
	if out.Items[0].Title != "First post" {
		t.Errorf("unexpected title: %s", out.Items[0].Title)
	}
}

func TestListFeedsAndGetFeedItemsAfterSync(t *testing.T) {
	p, _ := newTestProvider(t, fixtureFeed, http.StatusOK)
	if _, err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	feeds, err := p.ListFeeds(context.Background())
	if err != nil || len(feeds) != 1 {
		t.Fatalf("ListFeeds: %v, %d feeds", err, len(feeds))
	}

	items, err := p.GetFeedItems(context.Background(), feeds[0].ID, provider.FeedItemsOptions{})
	if err != nil {
		t.Fatalf("GetFeedItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestGetFeedItemsUnknownStreamReturnsStreamNotFound(t *testing.T) {
	p, _ := newTestProvider(t, fixtureFeed, http.StatusOK)
	if _, err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	_, err := p.GetFeedItems(context.Background(), model.NewStreamID("rss", "feed", "missing"), provider.FeedItemsOptions{})
	if err == nil {
		t.Fatal("expected an error for an unknown feed id")
	}
}

func TestSyncFailsWhenEveryFeedFails(t *testing.T) {
	p, _ := newTestProvider(t, "not xml", http.StatusInternalServerError)
	if _, err := p.Sync(context.Background()); err == nil {
		t.Fatal("expected Sync to fail when the only feed errors")
	}
}

func TestHealthCheckReportsUnhealthyWithNoSources(t *testing.T) {
	p := New("rss-empty", "Empty", map[string]string{})
	health, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if health.IsHealthy {
		t.Error("expected unhealthy with no configured sources")
	}
}
