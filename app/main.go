package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/content-comb/app/adapter"
	"github.com/lysyi3m/content-comb/app/api"
	"github.com/lysyi3m/content-comb/app/cfg"
	"github.com/lysyi3m/content-comb/app/content"
	"github.com/lysyi3m/content-comb/app/database"
	"github.com/lysyi3m/content-comb/app/ingest"
	"github.com/lysyi3m/content-comb/app/logging"
	"github.com/lysyi3m/content-comb/app/metrics"
	"github.com/lysyi3m/content-comb/app/source"
	"github.com/lysyi3m/content-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logger, err := logging.New(logging.Level(appCfg.Debug), appCfg.LogFormat)
	if err != nil {
		slog.Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	slog.Info("Starting Content Comb", "version", appCfg.Version, "db_driver", appCfg.DBDriver)

	db, err := database.NewConnection(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceStore(db)
	itemRepo := database.NewItemStore(db)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}

	registry := source.NewRegistry(configCache, sourceRepo)
	if err := registry.Sync(context.Background()); err != nil {
		slog.Error("Failed to register sources", "error", err)
		os.Exit(1)
	}
	slog.Info("Sources loaded", "count", registry.GetSourceCount(), "dir", appCfg.SourcesDir)

	fetchTimeout := time.Duration(appCfg.FetchTimeout) * time.Second
	httpClient := &http.Client{}

	adapters := map[source.Kind]adapter.Adapter{
		source.KindFeed: adapter.NewFeedAdapter(httpClient, appCfg.UserAgent, fetchTimeout),
	}
	if appCfg.PagedAPIKey != "" {
		adapters[source.KindPagedAPI] = adapter.NewPagedAdapter(httpClient, appCfg.PagedAPIURL, appCfg.PagedAPIKey, appCfg.UserAgent, fetchTimeout)
	} else {
		slog.Warn("Paged API key not set, paged_api sources will fail")
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	pipeline := ingest.NewPipeline(
		adapters,
		content.NewNormalizer(content.DefaultImageChain(), appCfg.ExcerptLength, time.Now),
		source.NewFilterer(),
		ingest.NewEngine(itemRepo, appCfg.BatchSize),
		ingest.NewCheckpointWriter(registry, time.Now),
		time.Now,
	)

	var runLock ingest.RunLock = ingest.NewLocalLock()
	if appCfg.RedisAddr != "" {
		redisLock, err := ingest.NewRedisLock(appCfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "addr", appCfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisLock.Close()
		runLock = redisLock
		slog.Info("Using shared run lock", "addr", appCfg.RedisAddr)
	}

	scheduler := ingest.NewScheduler(registry, pipeline, runLock, collector, appCfg.WorkerCount)

	if appCfg.Schedule != "" {
		incremental := func() ingest.Mode {
			return ingest.Incremental(time.Now(), appCfg.IncrementalDays)
		}
		trigger, err := tasks.NewTrigger(appCfg.Schedule, scheduler, incremental, tasks.DefaultStartupDelay)
		if err != nil {
			slog.Error("Failed to create trigger", "error", err)
			os.Exit(1)
		}
		trigger.Start()
		defer trigger.Stop()
		slog.Info("Scheduled runs enabled", "schedule", appCfg.Schedule, "workers", appCfg.WorkerCount)
	} else {
		slog.Info("Scheduled runs disabled (SCHEDULE not set)")
	}

	apiHandler := api.NewHandler(registry, itemRepo, scheduler, db, appCfg.Version, appCfg.IncrementalDays, appCfg.BackfillDays)
	server := api.NewServer(apiHandler, collector, appCfg.APIAccessKey)

	// Triggered runs answer synchronously, so writes get a long deadline.
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Deferred calls stop the trigger, release Redis and close the database.
}
