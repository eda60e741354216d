// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package main is the entry point for the Reelpulse server.
//
// Reelpulse is the engagement aggregation and ranking engine of a
// short-video platform: it ingests engagement events, maintains
// per-video statistics, materializes trending and viral rankings,
// assembles personalized feeds, and tracks swipe sessions.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, YAML, and env (Koanf v2)
//  2. Storage: BadgerDB for stats records, cursors, and board materializations
//  3. Engine: ingest pipeline (Watermill), ranking refresher, view watchdog,
//     session reaper, websocket hub
//  4. HTTP server: chi REST API plus /metrics and the ranking websocket
//
// All long-running components run under a suture supervision tree and
// shut down gracefully on SIGINT/SIGTERM.
//
// Configuration is namespaced under REELPULSE_, e.g.:
//
//	export REELPULSE_SERVER_PORT=8420
//	export REELPULSE_STORE_PATH=/data/reelpulse
//	export REELPULSE_RANKING_REFRESH_INTERVAL=5s
//	./reelpulse
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

	badger "github.com/dgraph-io/badger/v4"

	"github.com/reelpulse/reelpulse/internal/api"
	"github.com/reelpulse/reelpulse/internal/config"
	"github.com/reelpulse/reelpulse/internal/feed"
	"github.com/reelpulse/reelpulse/internal/ingest"
	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/platform"
	"github.com/reelpulse/reelpulse/internal/ranking"
	"github.com/reelpulse/reelpulse/internal/session"
	"github.com/reelpulse/reelpulse/internal/stats"
	"github.com/reelpulse/reelpulse/internal/supervisor"
	"github.com/reelpulse/reelpulse/internal/supervisor/services"
	"github.com/reelpulse/reelpulse/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reelpulse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Reelpulse starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openBadger(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Err(err).Msg("Store close failed")
		}
	}()

	// Stats store with durable records restored from badger.
	persister := stats.NewBadgerPersister(db, stats.BreakerConfig{
		MaxFailures: cfg.Store.BreakerMaxFailures,
		OpenTimeout: cfg.Store.BreakerOpenTimeout,
	})
	store := stats.NewStore(stats.Options{
		ShardCount:           cfg.Store.StatsShardCount,
		RetryAttempts:        cfg.Store.ApplyRetryAttempts,
		RetryBackoff:         cfg.Store.ApplyRetryBackoff,
		AnalyticsBucketLimit: cfg.Store.AnalyticsBucketLimit,
	}, persister)
	if err := store.Restore(ctx); err != nil {
		return fmt.Errorf("restore stats: %w", err)
	}

	// Ranking index, warm-started from the last persisted materialization
	// so listings are served before the first sweep completes.
	index := ranking.NewIndex()
	var boardStore *ranking.BadgerBoardStore
	if cfg.Ranking.PersistMaterializations {
		boardStore = ranking.NewBadgerBoardStore(db)
		boards, epoch, err := boardStore.LoadBoards()
		if err != nil {
			logging.Err(err).Msg("Board warm start failed, serving empty until first refresh")
		} else if len(boards) > 0 {
			index.Install(boards, time.Now().UTC())
			logging.Info().Int64("persisted_epoch", epoch).Int("scopes", len(boards)).
				Msg("Ranking boards warm-started")
		}
	}
	var persist ranking.MaterializationStore
	if boardStore != nil {
		persist = boardStore
	}
	refresher := ranking.NewRefresher(store, index, ranking.RefresherConfig{
		Interval:       cfg.Ranking.RefreshInterval,
		ViralThreshold: cfg.Ranking.ViralThreshold,
		MaxBoardSize:   cfg.Ranking.MaxBoardSize,
	}, persist)

	// Ingest: watermill pipeline feeding the stats store, fronted by the
	// validating ingestor and the abandoned-view watchdog.
	pipeline, err := ingest.NewPipeline(store, ingest.PipelineConfig{
		CloseTimeout:         cfg.Ingest.RouterCloseTimeout,
		RetryMaxRetries:      cfg.Ingest.RouterRetryCount,
		RetryInitialInterval: cfg.Ingest.RouterRetryInterval,
	})
	if err != nil {
		return fmt.Errorf("build ingest pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logging.Err(err).Msg("Pipeline close failed")
		}
	}()

	ingestor := ingest.NewIngestor(pipeline.Publisher(), store, ingest.Config{
		MinViewSeconds: cfg.Ingest.MinViewSeconds,
		DedupTTL:       cfg.Ingest.DedupTTL,
		DedupMax:       cfg.Ingest.DedupMax,
	})
	watchdog := ingest.NewWatchdog(ingestor, cfg.Ingest.WatchdogInterval, cfg.Ingest.ViewFinalizeAfter)

	// Feed assembly and swipe sessions.
	directory := platform.NewLocalDirectory(store)
	assembler := feed.NewAssembler(index, store, directory, directory, directory, feed.Config{
		DefaultPageSize:     cfg.Feed.DefaultPageSize,
		MaxPageSize:         cfg.Feed.MaxPageSize,
		CandidateMultiplier: cfg.Feed.CandidateMultiplier,
		ChannelCacheTTL:     cfg.Feed.ChannelCacheTTL,
	})

	cursors := session.NewBadgerCursorStore(db, cfg.Session.CursorTTL)
	sessions := session.NewController(assembler, store, ingestor, directory, cursors, session.Config{
		GracePeriod:     cfg.Session.GracePeriod,
		ExcludeSetMax:   cfg.Session.ExcludeSetMax,
		PageSize:        cfg.Feed.DefaultPageSize,
		MinViewSeconds:  cfg.Ingest.MinViewSeconds,
		SwipesPerSecond: cfg.Session.SwipesPerSecond,
		SwipeBurst:      cfg.Session.SwipeBurst,
	})
	reaper := session.NewReaper(sessions, cfg.Session.ReapInterval)

	// Live ranking notifications.
	hub := websocket.NewHub()
	refresher.OnRefresh(hub.BroadcastRankingRefresh)

	handler := api.NewHandler(ingestor, store, assembler, sessions, index, hub)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.API),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddDataService(services.NewBadgerGCService(db, cfg.Store.GCInterval))
	tree.AddEngineService(pipeline)
	tree.AddEngineService(watchdog)
	tree.AddEngineService(refresher)
	tree.AddEngineService(reaper)
	tree.AddEngineService(hub)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	logging.Info().Str("addr", httpServer.Addr).Msg("Reelpulse serving")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}

	logging.Info().Msg("Reelpulse stopped")
	return nil
}

// openBadger opens the durable store. In-memory mode backs tests and
// ephemeral deployments.
func openBadger(cfg config.StoreConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger is noisy at INFO; route nothing through it and
	// rely on the GC service and persister for operational signals.
	opts = opts.WithLogger(nil)

	return badger.Open(opts)
}
