package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mini-rodalies-3d/overlay/internal/api"
	"github.com/mini-rodalies-3d/overlay/internal/config"
	"github.com/mini-rodalies-3d/overlay/internal/db"
	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/eventloop"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/feed"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/markers"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/wsadapter"
	"github.com/mini-rodalies-3d/overlay/internal/static"
	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

const (
	cleanupInterval = 10 * time.Minute
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	logger.Info("starting overlay service",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("window", cfg.InterpolationWindow),
		slog.Duration("retention", cfg.RetentionDuration))

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Static network
	// ═══════════════════════════════════════════════════════
	network, err := static.LoadNetwork(cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to load static network", err)
		os.Exit(1)
	}
	if _, err := static.RefreshIfStale(cfg, network, logger); err != nil {
		// Serving still works from memory
		logging.LogError(logger, "static artifact refresh failed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Snapshot storage
	// ═══════════════════════════════════════════════════════
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to open snapshot store", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Realtime layer
	// ═══════════════════════════════════════════════════════
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	loop := eventloop.New(cfg.FrameInterval, logger)
	go loop.Run(loopCtx)

	hub := wsadapter.NewHub(cfg.AllowedOrigins, logger)
	ip := vehicles.NewInterpolator(vehicles.NewStore(), cfg.InterpolationWindow, logger)
	manager := markers.NewManager(ip, hub, loop, logger)

	if store != nil {
		warmStart(ctx, store, loop, manager, logger)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Background loops
	// ═══════════════════════════════════════════════════════
	if cfg.FeedURL != "" {
		client := feed.NewClient(cfg.FeedURL, cfg.FeedFormat, cfg.FeedScope, logger)
		poller := feed.NewPoller(client, cfg.PollInterval, ingestSink(loop, manager, store, logger), logger)
		go poller.Run(ctx)
	} else {
		logger.Warn("FEED_URL not set, realtime polling disabled")
	}

	if store != nil {
		go runCleanup(ctx, store, cfg.RetentionDuration, logger)
	}
	go runStaticRefresh(ctx, cfg, network, logger)

	// ═══════════════════════════════════════════════════════
	// PHASE 5: HTTP server
	// ═══════════════════════════════════════════════════════
	server := api.NewServer(network, api.NewLoopLayer(loop, manager), hub, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Router(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(logger, "http server failed", err)
			cancel()
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 6: Graceful shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "http shutdown failed", err)
	}
	if err := loop.Do(shutdownCtx, manager.Stop); err != nil {
		logging.LogError(logger, "realtime layer stop failed", err)
	}
	hub.Close()

	stopLoop()
	<-loop.Done()
	logger.Info("goodbye")
}

// openStore returns nil when neither SQLite nor Postgres is configured
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.SnapshotStore, error) {
	var (
		store db.SnapshotStore
		err   error
	)
	switch {
	case cfg.UsesPostgres():
		store, err = db.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	case cfg.DatabasePath != "":
		store, err = db.Connect(cfg.DatabasePath, logger)
	default:
		logger.Info("no database configured, snapshots are not persisted")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// warmStart replays the latest snapshot of every scope so markers appear
// before the first poll completes.
func warmStart(ctx context.Context, store db.SnapshotStore, loop *eventloop.Loop, manager *markers.Manager, logger *slog.Logger) {
	snapshots, err := store.LatestSnapshots(ctx)
	if err != nil {
		if !errors.Is(err, db.ErrNoSnapshot) {
			logging.LogError(logger, "warm start failed", err)
		}
		return
	}

	err = loop.Do(ctx, func() {
		for _, snap := range snapshots {
			manager.IngestBatch(snap.Batch, time.Now())
		}
	})
	if err != nil {
		logging.LogError(logger, "warm start failed", err)
		return
	}
	logging.LogOperation(logger, "warm_start", slog.Int("scopes", len(snapshots)))
}

// ingestSink hands every polled batch to the event loop and, when a store is
// configured, records it.
func ingestSink(loop *eventloop.Loop, manager *markers.Manager, store db.SnapshotStore, logger *slog.Logger) func(context.Context, vehicles.Batch) {
	return func(ctx context.Context, batch vehicles.Batch) {
		polledAt := time.Now()
		if err := loop.Post(func() {
			manager.IngestBatch(batch, time.Now())
		}); err != nil {
			logging.LogError(logger, "batch not ingested", err, slog.String("scope", batch.Scope))
			return
		}

		if store == nil {
			return
		}
		if _, err := store.RecordBatch(ctx, batch, polledAt); err != nil {
			logging.LogError(logger, "failed to record batch", err, slog.String("scope", batch.Scope))
		}
	}
}

func runCleanup(ctx context.Context, store db.SnapshotStore, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := db.Cleanup(ctx, store, retention)
			if err != nil {
				logging.LogError(logger, "cleanup failed", err)
				continue
			}
			if deleted > 0 {
				logging.LogOperation(logger, "snapshots_cleaned", slog.Int64("deleted", deleted))
			}
		case <-ctx.Done():
			logger.Info("cleanup loop stopped")
			return
		}
	}
}

// runStaticRefresh checks artifact freshness once a day
func runStaticRefresh(ctx context.Context, cfg *config.Config, n *geometry.Network, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := static.RefreshIfStale(cfg, n, logger); err != nil {
				logging.LogError(logger, "daily static refresh failed", err)
			}
		case <-ctx.Done():
			logger.Info("static refresh loop stopped")
			return
		}
	}
}
