package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chronokeeptiming/portal/internal/backup"
	"github.com/chronokeeptiming/portal/internal/config"
	"github.com/chronokeeptiming/portal/internal/control"
	"github.com/chronokeeptiming/portal/internal/coreservices"
	"github.com/chronokeeptiming/portal/internal/daemonrunner"
	"github.com/chronokeeptiming/portal/internal/storage/sqlite"
	"github.com/chronokeeptiming/portal/internal/telemetry"
	"github.com/chronokeeptiming/portal/internal/types"
)

// version is set at build time via -ldflags; "dev" is the fallback used
// by local and test builds.
var version = "dev"

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the portal daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*cfgPath)
		},
	}
}

func runServe(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	lock, err := daemonrunner.Acquire(".", cfg.DBPath, version)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer lock.Close()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("serve: open store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Setup(ctx); err != nil {
		if types.IsDatabaseTooNew(err) || types.IsInvalidVersion(err) {
			return fmt.Errorf("serve: fatal schema error, refusing to start: %w", err)
		}
		return fmt.Errorf("serve: store setup: %w", err)
	}

	meters, err := telemetry.New()
	if err != nil {
		log.Printf("serve: telemetry disabled: %v", err)
		meters = nil
	} else {
		defer meters.Shutdown(context.Background())
	}

	var metrics coreservices.Metrics
	if meters != nil {
		metrics = meters
	}
	services := coreservices.New(store, metrics)

	controlServer := control.NewServer(store, services, services, services.Registry, func() {
		services.KeepAlive.Stop()
		cancel()
	})

	if err := backup.Watch(ctx, cfg.BackupPath, func(snap backup.Snapshot) {
		log.Printf("serve: backup file changed externally (name=%q)", snap.Name)
	}); err != nil {
		log.Printf("serve: backup watch disabled: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("serve: shutdown signal received")
		services.KeepAlive.Stop()
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		services.Processor.Start(gctx)
		return nil
	})
	g.Go(func() error {
		services.Uploader.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return controlServer.Serve(gctx, cfg.ControlAddr)
	})

	log.Printf("serve: portal daemon running (db=%s control=%s)", cfg.DBPath, cfg.ControlAddr)
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Printf("serve: shutdown complete")
	return nil
}
