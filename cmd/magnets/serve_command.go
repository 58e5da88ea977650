// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/magnets-moe/processor/internal/anilist"
	"github.com/magnets-moe/processor/internal/api"
	"github.com/magnets-moe/processor/internal/config"
	"github.com/magnets-moe/processor/internal/database"
	"github.com/magnets-moe/processor/internal/metrics"
	"github.com/magnets-moe/processor/internal/proxy"
	"github.com/magnets-moe/processor/internal/reconcile"
	"github.com/magnets-moe/processor/internal/showdb"
	"github.com/magnets-moe/processor/internal/store"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background sync/ingest/match jobs and the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	notifier := store.NewNotifier()
	st := store.New(db, notifier)
	holder := showdb.NewHolder()

	anilistClient := anilist.New(&http.Client{Timeout: 30 * time.Second}, cfg.AnilistUserAgent)
	nyaaClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: proxy.NewRetryTransport(http.DefaultTransport),
	}

	if err := runInitialSetup(ctx, st, holder, anilistClient); err != nil {
		return fmt.Errorf("initial setup: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		reconcile.RunShowSync(groupCtx, st, cfg.ShowSyncInterval, notifier.Subscribe(reconcile.LastShowsUpdateKey), anilistClient, st, st, holder)
		return nil
	})
	group.Go(func() error {
		reconcile.RunScheduleSync(groupCtx, st, cfg.ScheduleSyncInterval, notifier.Subscribe(reconcile.LastScheduleUpdateKey), anilistClient, st)
		return nil
	})
	group.Go(func() error {
		reconcile.RunTorrentIngest(groupCtx, cfg.NyaaPollInterval, notifier.Subscribe(reconcile.MaxNyaaSiIDKey), nyaaClient, st, holder)
		return nil
	})
	group.Go(func() error {
		reconcile.RunRematchLoop(groupCtx, notifier.Subscribe(reconcile.RematchUnmatchedKey), st, holder)
		return nil
	})

	metricsManager := metrics.NewManager(holder, st)

	adminRouter := api.NewRouter(api.Dependencies{Rematch: api.NewRematchHandler(st)})
	adminServer := &http.Server{Addr: cfg.Addr(), Handler: adminRouter}
	group.Go(func() error { return runHTTPServer(groupCtx, adminServer) })

	if cfg.MetricsEnabled {
		metricsRouter := api.NewRouter(api.Dependencies{Metrics: metricsManager})
		metricsServer := &http.Server{Addr: cfg.MetricsAddr(), Handler: metricsRouter}
		group.Go(func() error { return runHTTPServer(groupCtx, metricsServer) })
	}

	return group.Wait()
}

// runInitialSetup performs the one-time synchronous show-catalog load
// the original processor runs before starting its background jobs, so
// the ShowDB and the matcher it backs aren't empty for the entire
// first sync interval on a freshly migrated database.
func runInitialSetup(ctx context.Context, st *store.Store, holder *showdb.Holder, anilistClient *anilist.Client) error {
	pending, err := st.InitialSetupPending(ctx)
	if err != nil {
		return err
	}
	if !pending {
		return reconcile.RefreshShowDB(ctx, st, holder)
	}

	log.Info().Msg("running one-time initial show catalog load")
	if err := anilist.SyncShows(ctx, anilistClient, st); err != nil {
		return fmt.Errorf("initial show sync: %w", err)
	}
	if err := reconcile.RefreshShowDB(ctx, st, holder); err != nil {
		return fmt.Errorf("initial show db build: %w", err)
	}
	if err := st.SetState(ctx, reconcile.LastShowsUpdateKey, time.Now().UTC()); err != nil {
		return err
	}
	return st.SetInitialSetupPending(ctx, false)
}

func runHTTPServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPath == "" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
		return
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}
