// Package main wires together the jobscout service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/api"
	"github.com/mattsolle/jobscout/internal/archive"
	"github.com/mattsolle/jobscout/internal/clock/system"
	"github.com/mattsolle/jobscout/internal/config"
	"github.com/mattsolle/jobscout/internal/events"
	"github.com/mattsolle/jobscout/internal/jobs"
	"github.com/mattsolle/jobscout/internal/logging"
	"github.com/mattsolle/jobscout/internal/metrics"
	"github.com/mattsolle/jobscout/internal/scheduler"
	"github.com/mattsolle/jobscout/internal/scraper"
	"github.com/mattsolle/jobscout/internal/scraper/source"
	"github.com/mattsolle/jobscout/internal/seencache"
	"github.com/mattsolle/jobscout/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewJobStore(ctx, postgres.Config{
		DSN:      cfg.DB.DSN(),
		MaxConns: cfg.DB.MaxConns(),
		MinConns: cfg.DB.MinConns(),
	})
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	defer store.Close()

	sources, closeSources := buildSources(cfg.Scraper, logger)
	defer closeSources()
	runner := scraper.NewRunner(sources, logger.Named("scraper"))

	var seen jobs.SeenCache
	if cfg.Cache.Enabled {
		cache, err := seencache.New(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL())
		if err != nil {
			logger.Fatal("seen cache init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := cache.Close(); closeErr != nil {
				logger.Warn("seen cache close failed", zap.Error(closeErr))
			}
		}()
		seen = cache
	}

	var archiver jobs.Archiver
	if cfg.Archive.Enabled {
		blobStore, err := buildBlobStore(ctx, cfg.Archive)
		if err != nil {
			logger.Fatal("archive init failed", zap.Error(err))
		}
		archiver = archive.NewCSV(blobStore, cfg.Archive.Prefix, system.New())
	}

	var publisher jobs.Publisher
	if cfg.Events.Enabled {
		pub, err := events.NewPubSub(ctx, cfg.Events.ProjectID, cfg.Events.Topic)
		if err != nil {
			logger.Fatal("events init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Warn("events close failed", zap.Error(closeErr))
			}
		}()
		publisher = pub
	}

	svc := jobs.NewService(runner, store, seen, archiver, publisher, cfg.Events.Topic, logger.Named("service"))
	apiServer := api.NewServer(svc, store, logger.Named("api"))

	if len(cfg.Schedules) > 0 {
		sched, err := scheduler.New(cfg.Schedules, svc, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("scheduler init failed", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started",
			zap.String("app", cfg.App.Name),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildSources constructs one source per configured board. The returned
// closer tears down any headless browser allocators.
func buildSources(cfg config.ScraperConfig, logger *zap.Logger) (map[string]scraper.Source, func()) {
	sources := make(map[string]scraper.Source, len(cfg.Boards))
	var closers []func()
	for name, board := range cfg.Boards {
		switch board.Kind {
		case "api":
			sources[name] = source.NewAPI(source.APIConfig{
				Site:     name,
				BaseURL:  board.BaseURL,
				AppID:    board.AppID,
				AppKey:   board.AppKey,
				Country:  board.Country,
				PageSize: board.PageSize,
				Timeout:  cfg.Timeout(),
			})
		case "html":
			sources[name] = source.NewHTML(source.BoardConfig{
				Site:      name,
				SearchURL: board.SearchURL,
				UserAgent: cfg.UserAgent,
				Timeout:   cfg.Timeout(),
				Selectors: board.Selectors,
			}, logger.Named("source"))
		case "rendered":
			rendered := source.NewRendered(source.RenderedConfig{
				Site:        name,
				SearchURL:   board.SearchURL,
				UserAgent:   cfg.UserAgent,
				NavTimeout:  time.Duration(board.NavTimeoutSeconds) * time.Second,
				MaxParallel: board.MaxParallel,
				Selectors:   board.Selectors,
			}, logger.Named("source"))
			sources[name] = rendered
			closers = append(closers, rendered.Close)
		}
	}
	return sources, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}

func buildBlobStore(ctx context.Context, cfg config.ArchiveConfig) (archive.BlobStore, error) {
	switch cfg.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return archive.NewGCS(client, cfg.Bucket)
	default:
		return archive.NewLocal(cfg.BaseDir)
	}
}
