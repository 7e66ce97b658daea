package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/garnizeh/jobcard/api"
	"github.com/garnizeh/jobcard/internal/config"
	"github.com/garnizeh/jobcard/internal/device"
	"github.com/garnizeh/jobcard/internal/idgen"
	"github.com/garnizeh/jobcard/internal/jobs"
	"github.com/garnizeh/jobcard/internal/notify"
	"github.com/garnizeh/jobcard/internal/probe"
	"github.com/garnizeh/jobcard/internal/repository/remote"
	"github.com/garnizeh/jobcard/internal/repository/sqlite"
	"github.com/garnizeh/jobcard/internal/service"
	"github.com/garnizeh/jobcard/internal/syncer"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("err", err))
	os.Exit(1)
}

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid config", err)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting jobcard server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx := context.Background()

	// Local cache
	local, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fatal(logger, "failed to open local store", err)
	}

	// Central store; connections are made lazily
	remoteDB, err := remote.Open(cfg.Remote, logger)
	if err != nil {
		fatal(logger, "failed to configure remote store", err)
	}
	central := remote.New(remoteDB, logger)

	deviceID, err := device.Load(cfg.DeviceIDPath)
	if err != nil {
		fatal(logger, "failed to load device id", err)
	}
	logger.Info("device identity", slog.String("device_id", deviceID))

	checker := probe.New(cfg.Remote.Address(), cfg.Remote.ProbeTimeout, logger)
	feed := notify.NewFeed(cfg.Sync.EventBuffer, logger)

	gen := idgen.New(central, local, checker, deviceID, idgen.WithLogger(logger))
	svc := service.New(local, central, gen, checker, service.WithNotifier(feed), service.WithLogger(logger))
	engine := syncer.New(local, central, checker, deviceID,
		syncer.WithNotifier(feed),
		syncer.WithLogger(logger),
		syncer.WithHashCost(cfg.Sync.PasswordHashCost),
	)

	// Background jobs
	jobCtx, stopJobs := context.WithCancel(ctx)
	pool := jobs.NewWorkerPool(jobs.NewRepository(local.DB()), map[string]jobs.Handler{
		jobs.TypeSyncDownload: jobs.NewDownloadHandler(engine, logger),
	}, logger, cfg.Sync.Workers)
	pool.Start(jobCtx)

	handler, err := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Service:  svc,
		Engine:   engine,
		Events:   feed,
		Queue:    pool,
		DeviceID: deviceID,
	})
	if err != nil {
		fatal(logger, "failed to set up routes", err)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: 2 * cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server failed to start", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}

	stopJobs()
	pool.Stop()

	if err := central.Close(); err != nil {
		logger.Error("error closing remote store", slog.Any("err", err))
	}
	if err := local.Close(); err != nil {
		logger.Error("error closing local store", slog.Any("err", err))
	}

	logger.Info("server exited")
}
