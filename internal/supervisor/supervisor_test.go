package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scryforge/internal/config"
	"scryforge/internal/log"
	"scryforge/internal/provider/dummy"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Daemon: config.Daemon{
			BindAddress: filepath.Join(t.TempDir(), "hub.sock"),
			LogLevel:    "info",
		},
		Cache: config.Cache{
			Path:              ":memory:",
			MaxItemsPerStream: 1000,
		},
		Providers: map[string]config.ProviderConfig{
			dummy.ProviderID: {Enabled: true, SyncIntervalMinutes: 30},
		},
	}
}

func TestNewRegistersConfiguredProviders(t *testing.T) {
	s, err := New(testConfig(t), log.NewStd())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Shutdown()

	if _, ok := s.Registry().Get(dummy.ProviderID); !ok {
		t.Fatal("expected dummy provider to be registered")
	}
}

func TestUnknownConfiguredProviderIsSkippedNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers["nonexistent"] = config.ProviderConfig{Enabled: true, SyncIntervalMinutes: 30}

	s, err := New(cfg, log.NewStd())
	if err != nil {
		t.Fatalf("New should not fail on an unknown provider id: %v", err)
	}
	defer s.Shutdown()

	if _, ok := s.Registry().Get("nonexistent"); ok {
		t.Fatal("did not expect the unknown provider to be registered")
	}
}

func TestStartAndShutdownOverUnixSocket(t *testing.T) {
	s, err := New(testConfig(t), log.NewStd())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.WithGraceTimeout(500 * time.Millisecond)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdownIsSafeBeforeStart(t *testing.T) {
	s, err := New(testConfig(t), log.NewStd())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown before Start: %v", err)
	}
}

func TestWaitReturnsAfterContextCancel(t *testing.T) {
	s, err := New(testConfig(t), log.NewStd())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Wait(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}
