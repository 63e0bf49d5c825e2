// Command scryforge-hub runs the background hub daemon: it opens the
// durable cache, registers configured providers, starts the sync
// scheduler, and serves the JSON-RPC interface until signaled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"scryforge/internal/config"
	"scryforge/internal/log"
	"scryforge/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scryforge-hub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logFile string

	flags := pflag.NewFlagSet("scryforge-hub", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to config.toml (default: $XDG_CONFIG_HOME/scryforge/config.toml)")
	flags.StringVar(&logFile, "log-file", "-", "log output path, or - for stderr")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if level := os.Getenv("SCRYFORGE_LOG"); level != "" {
		cfg.Daemon.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := log.WithLogrus(log.Config{Level: cfg.Daemon.LogLevel, File: logFile})

	sup, err := supervisor.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing hub: %w", err)
	}

	if err := sup.Start(); err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("scryforge-hub started")
	if err := sup.Wait(ctx); err != nil {
		return fmt.Errorf("shutting down hub: %w", err)
	}
	logger.Info("scryforge-hub stopped cleanly")
	return nil
}
