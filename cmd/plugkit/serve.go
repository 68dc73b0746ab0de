package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/plugkit/internal/api"
	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/lock"
	"github.com/mattjoyce/plugkit/internal/log"
	"github.com/mattjoyce/plugkit/internal/metrics"
)

func printServeHelp() {
	fmt.Println("Usage: plugkit serve [--config PATH] [--listen HOST:PORT]")
	fmt.Println("Serves plugins and run history read-only over HTTP until interrupted.")
	fmt.Println("Only one server may use a state database at a time.")
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listen := fs.String("listen", "", "Override api.listen")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: plugkit serve [--config PATH] [--listen HOST:PORT]")
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	setupLogging(cfg, os.Stderr)
	logger := log.WithComponent("serve")

	lk, err := lock.AcquirePIDLock(lock.PathForState(cfg.State.Path))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			fmt.Fprintf(os.Stderr, "Another plugkit server is using %s: %v\n", cfg.State.Path, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	defer func() { _ = lk.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	registry, err := discoverPlugins(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plugin discovery failed: %v\n", err)
		return 1
	}

	logger.Info("plugkit serving",
		"version", currentVersionInfo().Version,
		"listen", cfg.API.Listen,
		"plugins", len(registry.All()),
		"state", cfg.State.Path,
		"lock", lk.Path(),
	)

	srv := api.New(api.Config{Listen: cfg.API.Listen, APIKey: cfg.API.Token}, store, registry, metrics.New(), log.WithComponent("api"))
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("plugkit stopped")
	return 0
}
