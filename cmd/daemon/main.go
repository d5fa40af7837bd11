// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command daemon runs the media ingestion gatekeeper: the detect and
// upload worker pools, the HTTP control API and the optional scan-root
// watcher, all backed by one sqlite task store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clearfeed/gatekeeper/internal/api"
	"github.com/clearfeed/gatekeeper/internal/config"
	gklog "github.com/clearfeed/gatekeeper/internal/log"
	"github.com/clearfeed/gatekeeper/internal/notify"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/clearfeed/gatekeeper/internal/supervisor"
	"github.com/clearfeed/gatekeeper/internal/watch"
	"github.com/clearfeed/gatekeeper/internal/worker"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to bootstrap config YAML")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	boot, err := config.LoadBootstrap(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	gklog.Configure(gklog.Config{Level: boot.LogLevel, Service: "gatekeeper"})
	logger := gklog.WithComponent("daemon")
	logger.Info().Str("version", version).Str("listen", boot.Listen).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(boot.DataDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.datadir_failed").Msg("cannot create data dir")
	}

	st, err := store.Open(boot.DBPath, store.DefaultSQLiteConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "startup.store_failed").Msg("cannot open task store")
	}
	defer st.Close()

	detectQ := worker.NewQueue("detect")
	uploadQ := worker.NewQueue("upload")
	registry := worker.NewRegistry()

	sup := &supervisor.Supervisor{Store: st, DetectQ: detectQ, UploadQ: uploadQ}
	if err := sup.Bootstrap(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.recovery_failed").Msg("seed/recovery failed")
	}

	settings, err := st.EffectiveSettings(ctx, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "startup.settings_failed").Msg("cannot resolve settings")
	}

	pools := worker.StartPools(worker.Deps{
		Store:    st,
		Registry: registry,
		DetectQ:  detectQ,
		UploadQ:  uploadQ,
		Notifier: notify.New(),
		Boot:     boot,
	}, settings.ConcurrencyDetect, settings.ConcurrencyUpload)
	defer pools.Stop()

	submit := func(path string) {
		id, err := st.NextID(ctx, func(old int) { registry.Stop(old) })
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("id allocation failed")
			return
		}
		if _, err := st.CreateTask(ctx, id, filepath.Base(path), path); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("task insert failed")
			return
		}
		detectQ.Put(id)
		logger.Info().Int("task_id", id).Str("path", path).Msg("task submitted from scan root")
	}

	if boot.WatchScanRoot && settings.ScanPath != "" {
		w := watch.New(settings.ScanPath, submit)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("scan root watcher stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr: boot.Listen,
		Handler: (&api.Server{
			Store:    st,
			Registry: registry,
			DetectQ:  detectQ,
			UploadQ:  uploadQ,
			Boot:     boot,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Str("event", "http.serve_failed").Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown incomplete")
	}

	logger.Info().Msg("server exiting")
}
